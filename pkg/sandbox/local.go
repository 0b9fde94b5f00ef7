package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/observability"
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// orphaned grandchildren after the process exits or is killed.
const waitDelay = 2 * time.Second

// inheritedEnv lists the host variables passed through to runs.
var inheritedEnv = []string{"PATH", "LANG", "LC_ALL", "TZ"}

// Local executes code as a subprocess on the host.
type Local struct {
	cfg     Config
	runners map[api.Language]Runner
	sem     *semaphore.Weighted
}

var _ Executor = (*Local)(nil)

// NewLocal creates a Local executor. Runners whose tools are not installed
// are skipped; their languages yield the unsupported-language verdict.
func NewLocal(cfg Config) *Local {
	return newLocal(cfg, exec.LookPath)
}

func newLocal(cfg Config, lookPath func(string) (string, error)) *Local {
	cfg.applyDefaults()

	candidates := cfg.Runners
	if candidates == nil {
		candidates = DefaultRunners()
	}
	if cfg.EnableShell {
		candidates = append(slices.Clone(candidates), shellRunner())
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o700); err != nil {
		slog.Warn("sandbox cache directory unavailable, runs use private caches", "dir", cfg.CacheDir, "error", err)
		cfg.CacheDir = ""
	}

	runners := make(map[api.Language]Runner)
	for _, c := range candidates {
		if _, ok := runners[c.Language]; ok {
			continue
		}
		r, ok := c.resolve(lookPath)
		if !ok {
			debug.Log("sandbox", "runner not available", "language", c.Language, "file", c.File)
			continue
		}
		runners[c.Language] = r
	}

	return &Local{
		cfg:     cfg,
		runners: runners,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Supported returns the languages with a registered runner, sorted.
func (l *Local) Supported() []api.Language {
	out := make([]api.Language, 0, len(l.runners))
	for lang := range l.runners {
		out = append(out, lang)
	}
	slices.Sort(out)
	return out
}

// Timeout returns the configured per-run wall-clock budget.
func (l *Local) Timeout() time.Duration { return l.cfg.Timeout }

// Warm runs the warm-up command of every registered runner against the
// shared cache directory, so that the first artifact of a language does not
// pay for a cold toolchain inside its run budget. Resource limits are not
// applied to warm-up commands.
func (l *Local) Warm(ctx context.Context) error {
	if l.cfg.CacheDir == "" {
		return nil
	}
	dir, err := os.MkdirTemp(l.cfg.TempDir, "codesmith-warm-*")
	if err != nil {
		return fmt.Errorf("sandbox warm-up: %w", err)
	}
	defer os.RemoveAll(dir)

	g, ctx := errgroup.WithContext(ctx)
	for _, lang := range l.Supported() {
		runner := l.runners[lang]
		if len(runner.Warm) == 0 {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			args := l.expand(runner.Warm, dir)
			cmd := exec.CommandContext(ctx, args[0], args[1:]...)
			cmd.Dir = dir
			cmd.Env = l.environ(dir, runner)
			cmd.WaitDelay = waitDelay
			if out, err := cmd.CombinedOutput(); err != nil {
				return fmt.Errorf("warm %s runner: %w: %s", lang, err, lastLine(string(out), nil))
			}
			slog.Info("sandbox runner warmed", "language", lang, "duration", time.Since(start))
			return nil
		})
	}
	return g.Wait()
}

// Execute runs code in a fresh subprocess and returns its verdict.
func (l *Local) Execute(ctx context.Context, code string, lang api.Language) api.ExecutionVerdict {
	start := time.Now()
	r := &run{lang: lang, state: api.ExecutionIdle}

	v := l.execute(ctx, r, code)
	v.State = r.state
	v.Duration = time.Since(start)

	observability.RecordExecution(lang.String(), string(v.State), v.Duration)
	debug.Log("sandbox", "run finished",
		"language", lang,
		"state", v.State,
		"exit_code", v.ExitCode,
		"duration", v.Duration,
		"reason", v.FailureReason,
	)
	return v
}

func (l *Local) execute(ctx context.Context, r *run, code string) api.ExecutionVerdict {
	runner, ok := l.runners[r.lang]
	if !ok {
		r.to(api.ExecutionUnsupported)
		return api.Unsupported()
	}
	r.to(api.ExecutionRunning)

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return r.interrupted(ctx, "", "")
	}
	defer l.sem.Release(1)
	observability.SandboxInflight.Inc()
	defer observability.SandboxInflight.Dec()

	dir, err := os.MkdirTemp(l.cfg.TempDir, "codesmith-run-*")
	if err != nil {
		return r.fault(-1, "sandbox setup: "+err.Error(), "", "")
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, runner.File), []byte(code), 0o600); err != nil {
		return r.fault(-1, "sandbox setup: "+err.Error(), "", "")
	}

	runCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	stdout := acquireCapture(l.cfg.MaxOutputBytes)
	defer releaseCapture(stdout)
	stderr := acquireCapture(l.cfg.MaxOutputBytes)
	defer releaseCapture(stderr)

	env := l.environ(dir, runner)
	for i, step := range runner.Steps {
		err := l.runStep(runCtx, dir, l.expand(step, dir), env, stdout, stderr)
		if err == nil {
			continue
		}
		if runCtx.Err() != nil {
			return r.interrupted(ctx, stdout.Text(), stderr.Text())
		}

		build := i < len(runner.Steps)-1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason := faultReason(runner, stderr.raw())
			if reason == "" {
				reason = exitErr.Error()
			}
			if build {
				reason = "build failed: " + reason
			}
			return r.fault(exitErr.ExitCode(), reason, stdout.Text(), stderr.Text())
		}
		return r.fault(-1, fmt.Sprintf("start %s: %v", filepath.Base(step[0]), err), stdout.Text(), stderr.Text())
	}

	r.to(api.ExecutionSucceeded)
	return api.ExecutionVerdict{
		Success: true,
		Stdout:  stdout.Text(),
		Stderr:  stderr.Text(),
	}
}

func (l *Local) runStep(ctx context.Context, dir string, args, env []string, stdout, stderr *captureBuffer) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap anything the program left running in the background.
	defer killProcessGroup(cmd)

	if err := applyLimits(cmd.Process.Pid, l.cfg.Limits); err != nil {
		debug.Log("sandbox", "resource limits not applied", "pid", cmd.Process.Pid, "error", err)
	}

	err := cmd.Wait()
	if errors.Is(err, exec.ErrWaitDelay) && ctx.Err() == nil {
		// Exited cleanly; a background child held the pipes open.
		return nil
	}
	return err
}

func (l *Local) environ(dir string, runner Runner) []string {
	env := make([]string, 0, len(inheritedEnv)+len(runner.Env)+2)
	for _, k := range inheritedEnv {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	env = append(env, "HOME="+dir, "TMPDIR="+dir)
	return append(env, l.expand(runner.Env, dir)...)
}

// expand substitutes the run directory and the shared cache into args.
// Without a shared cache each run gets a private one inside its directory.
func (l *Local) expand(args []string, dir string) []string {
	cache := l.cfg.CacheDir
	if cache == "" {
		cache = filepath.Join(dir, ".cache")
	}
	return expand(args, dir, cache)
}

// faultReason extracts the fault message from a failed step's stderr.
func faultReason(r Runner, stderr string) string {
	if r.Fault != nil {
		if reason := r.Fault(stderr); reason != "" {
			return reason
		}
	}
	return lastLine(stderr, nil)
}

// run tracks the state of one execution.
type run struct {
	lang  api.Language
	state api.ExecutionState
}

func (r *run) to(next api.ExecutionState) {
	if err := api.ValidateExecutionTransition(r.state, next); err != nil {
		slog.Warn("sandbox state transition rejected", "language", r.lang, "error", err.Message)
		return
	}
	r.state = next
}

func (r *run) fault(exitCode int, reason, stdout, stderr string) api.ExecutionVerdict {
	r.to(api.ExecutionFaulted)
	return api.ExecutionVerdict{
		Stdout:        stdout,
		Stderr:        stderr,
		FailureReason: reason,
		ExitCode:      exitCode,
	}
}

// interrupted builds the verdict for a run stopped by its deadline or by
// the caller. Partial output is kept.
func (r *run) interrupted(ctx context.Context, stdout, stderr string) api.ExecutionVerdict {
	if errors.Is(ctx.Err(), context.Canceled) {
		return r.fault(-1, api.ReasonCancelled, stdout, stderr)
	}
	r.to(api.ExecutionTimedOut)
	return api.ExecutionVerdict{
		Stdout:        stdout,
		Stderr:        stderr,
		FailureReason: api.ReasonTimeout,
		ExitCode:      -1,
	}
}
