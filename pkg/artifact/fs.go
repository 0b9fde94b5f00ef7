package artifact

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
)

// DefaultDir is the directory used when none is configured.
const DefaultDir = "generated_code"

// FileStore writes artifacts to a directory on the local filesystem.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at dir. The directory is created
// lazily on the first Persist.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{dir: dir}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Persist writes code to a new file and returns its path. The write goes
// through a temp file and rename so a partially written artifact is never
// visible under its final name.
func (s *FileStore) Persist(ctx context.Context, code string, lang api.Language, backend string, when time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", api.NewStorageError("persist artifact", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", api.NewStorageError("create artifact directory", err)
	}

	path := filepath.Join(s.dir, Name(backend, lang, when, api.ShortToken()))

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return "", api.NewStorageError("create temp file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		cleanup()
		return "", api.NewStorageError("write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", api.NewStorageError("close artifact", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", api.NewStorageError("chmod artifact", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", api.NewStorageError("rename artifact", err)
	}
	return path, nil
}

// Read returns the content of a file previously written by Persist. Paths
// outside the store directory are rejected.
func (s *FileStore) Read(_ context.Context, path string) ([]byte, error) {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, api.NewStorageError("resolve artifact directory", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, api.NewStorageError("resolve artifact path", err)
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return nil, api.NewNotFoundError("artifact not found: " + path)
	}

	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, api.NewNotFoundError("artifact not found: " + path)
	}
	if err != nil {
		return nil, api.NewStorageError("read artifact", err)
	}
	return data, nil
}
