// Package sandbox executes untrusted code out of process and reports a
// structured verdict.
//
// The Local executor runs each artifact as a subprocess in a private temp
// directory, with an allowlisted environment, its own process group, a
// wall-clock deadline, kernel resource limits (Linux), and bounded output
// capture. Every failure mode is returned as verdict data; Execute never
// returns an error and never panics on user code.
package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rhuss/codesmith/pkg/api"
)

// Executor runs code and reports the outcome.
//
// Implementations must be safe for concurrent use and must return a
// well-formed terminal verdict for every call, including when ctx is
// cancelled or its deadline passes.
type Executor interface {
	Execute(ctx context.Context, code string, lang api.Language) api.ExecutionVerdict
}

// LanguageShell selects the POSIX shell runner. It is only registered when
// Config.EnableShell is set and is never produced by the classifier.
const LanguageShell api.Language = "Shell"

// Limits are per-process kernel resource limits. Zero disables a limit.
type Limits struct {
	// CPUSeconds caps CPU time. Zero derives a cap from the run timeout.
	CPUSeconds uint64

	// MemoryBytes caps the address space. Runtimes that reserve large
	// virtual ranges (JVM, Go, V8) need generous values.
	MemoryBytes uint64

	OpenFiles     uint64
	FileSizeBytes uint64
}

// Config controls the Local executor.
type Config struct {
	// Timeout is the wall-clock budget for one run, build steps included.
	Timeout time.Duration

	// MaxConcurrent bounds the number of runs in flight.
	MaxConcurrent int

	// MaxOutputBytes caps captured stdout and stderr, each.
	MaxOutputBytes int

	Limits Limits

	// TempDir is the parent for per-run directories. Empty uses os.TempDir.
	TempDir string

	// CacheDir holds toolchain caches shared by all runs, such as the Go
	// build cache. Empty uses a codesmith directory under os.UserCacheDir.
	CacheDir string

	// EnableShell registers the LanguageShell runner.
	EnableShell bool

	// Runners replaces the default runner candidates when non-nil.
	Runners []Runner
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxConcurrent:  4,
		MaxOutputBytes: 1 << 20,
		Limits: Limits{
			OpenFiles:     1024,
			FileSizeBytes: 64 << 20,
		},
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = d.MaxOutputBytes
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir()
	}
	if c.Limits.CPUSeconds == 0 {
		c.Limits.CPUSeconds = uint64(c.Timeout/time.Second) + 1
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "codesmith", "sandbox")
}
