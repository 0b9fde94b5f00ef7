// Package artifact persists generated code under a unique, descriptive name.
package artifact

import (
	"context"
	"strings"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
)

// Store persists generated code and returns a locator for it.
//
// Implementations must be safe for concurrent use and must produce distinct
// locators for concurrent calls, even for identical inputs.
type Store interface {
	// Persist writes code and returns its locator. Failures are reported as
	// *api.Error of kind storage_error.
	Persist(ctx context.Context, code string, lang api.Language, backend string, when time.Time) (string, error)

	// Read returns the content stored at a locator previously returned by
	// Persist. A locator that does not exist yields a not_found error.
	Read(ctx context.Context, path string) ([]byte, error)
}

const timestampLayout = "20060102_150405"

// Name builds the artifact base name
// <backend>_<language>_<YYYYMMDD_HHMMSS>_<token>.<ext>.
func Name(backend string, lang api.Language, when time.Time, token string) string {
	return sanitize(backend) + "_" +
		sanitize(lang.String()) + "_" +
		when.Format(timestampLayout) + "_" +
		token + "." + lang.Extension()
}

// sanitize lower-cases s and keeps only characters that are safe in a file
// name. "C++" and "C#" keep their symbols.
func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '#', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

// Kind returns a short label for the store implementation, used in metrics.
func Kind(s Store) string {
	switch s.(type) {
	case *FileStore:
		return "fs"
	case *S3Store:
		return "s3"
	default:
		return "custom"
	}
}
