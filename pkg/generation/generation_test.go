package generation

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/artifact"
	"github.com/rhuss/codesmith/pkg/provider/stub"
)

type fakeCompleter struct {
	text string
	err  error

	mu     sync.Mutex
	prompt string
	model  string
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, prompt, model string) (string, error) {
	f.mu.Lock()
	f.prompt, f.model = prompt, model
	f.mu.Unlock()
	return f.text, f.err
}

type failingStore struct{ err error }

func (s failingStore) Persist(context.Context, string, api.Language, string, time.Time) (string, error) {
	return "", s.err
}

func (s failingStore) Read(context.Context, string) ([]byte, error) { return nil, s.err }

func fixedClock() time.Time { return time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC) }

func TestPrompt(t *testing.T) {
	got := Prompt("reverse a string")
	want := "Generate clean and well-commented code to accomplish the following task:\n\nreverse a string\n\nOnly include the code. Mention the programming language at the top."
	assert.Equal(t, want, got)
}

func TestPromptKeepsFormatVerbs(t *testing.T) {
	assert.Contains(t, Prompt("print 100%s done"), "print 100%s done")
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	fc := &fakeCompleter{text: "\n  # Python\nprint('hi')\n\n"}
	g := &Generator{Completer: fc, Store: artifact.NewFileStore(dir), Clock: fixedClock}

	ref, err := g.Generate(context.Background(), api.GenerationTask{Task: "say hi", Model: "fake-1"})
	require.NoError(t, err)

	assert.Equal(t, "# Python\nprint('hi')", ref.Artifact.Code)
	assert.Equal(t, api.LanguagePython, ref.Artifact.Language)
	assert.Equal(t, "fake", ref.Artifact.Backend)
	assert.Equal(t, "fake-1", ref.Artifact.Model)
	assert.Equal(t, fixedClock(), ref.Artifact.CreatedAt)
	assert.Equal(t, "fake-1", fc.model)
	assert.Contains(t, fc.prompt, "say hi")

	assert.True(t, strings.HasPrefix(ref.Path, dir))
	assert.Contains(t, ref.Path, "fake_python_20240301_123045_")
	assert.True(t, strings.HasSuffix(ref.Path, ".py"))

	data, err := os.ReadFile(ref.Path)
	require.NoError(t, err)
	assert.Equal(t, ref.Artifact.Code, string(data))
}

func TestGenerateUnknownLanguage(t *testing.T) {
	g := &Generator{
		Completer: &fakeCompleter{text: "SELECT 1;"},
		Store:     artifact.NewFileStore(t.TempDir()),
		Clock:     fixedClock,
	}
	ref, err := g.Generate(context.Background(), api.GenerationTask{Task: "query", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, api.LanguageUnknown, ref.Artifact.Language)
	assert.True(t, strings.HasSuffix(ref.Path, ".txt"))
}

func TestGenerateGrok(t *testing.T) {
	g := &Generator{Completer: stub.NewGrok(), Store: artifact.NewFileStore(t.TempDir())}
	ref, err := g.Generate(context.Background(), api.GenerationTask{Task: "anything"})
	require.NoError(t, err)
	assert.Equal(t, stub.GrokContent, ref.Artifact.Code)
	assert.Equal(t, api.LanguagePython, ref.Artifact.Language)
	assert.Contains(t, ref.Path, "grok_python_")
	assert.Equal(t, "grok-1", ref.Artifact.Model)
}

func TestGenerateErrors(t *testing.T) {
	cause := errors.New("HTTP 401: invalid api key")

	tests := []struct {
		name     string
		comp     *fakeCompleter
		store    artifact.Store
		wantKind api.ErrorKind
	}{
		{"backend failure", &fakeCompleter{err: cause}, artifact.NewFileStore(t.TempDir()), api.ErrorKindBackend},
		{"empty result", &fakeCompleter{text: "   \n\t"}, artifact.NewFileStore(t.TempDir()), api.ErrorKindEmptyResult},
		{"storage failure", &fakeCompleter{text: "# Go\npackage main"}, failingStore{err: api.NewStorageError("disk full", nil)}, api.ErrorKindStorage},
		{"plain storage error", &fakeCompleter{text: "# Go\npackage main"}, failingStore{err: errors.New("boom")}, api.ErrorKindStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Generator{Completer: tt.comp, Store: tt.store}
			_, err := g.Generate(context.Background(), api.GenerationTask{Task: "task", Model: "m"})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, api.KindOf(err))
		})
	}
}

func TestGenerateBackendErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	g := &Generator{Completer: &fakeCompleter{err: cause}, Store: artifact.NewFileStore(t.TempDir())}

	_, err := g.Generate(context.Background(), api.GenerationTask{Task: "task", Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "fake", apiErr.Backend)
	assert.Contains(t, err.Error(), "connection refused")
}
