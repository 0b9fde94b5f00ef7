// Command sandbox-server runs an HTTP server inside agent-sandbox pods
// that executes code in isolated subprocesses.
//
// Configuration:
//
//	SANDBOX_PORT           - Listen port (default: 8080)
//	SANDBOX_MAX_CONCURRENT - Max concurrent executions (default: 3)
//	SANDBOX_TIMEOUT        - Per-run wall-clock budget (default: 30s)
//	SANDBOX_MAX_OUTPUT     - Captured bytes per stream (default: 1048576)
//	SANDBOX_TEMP_DIR       - Parent directory for run directories
//	CODESMITH_DEBUG        - Debug categories (e.g. "sandbox")
//	CODESMITH_LOG_LEVEL    - Log level (default: INFO)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/sandbox"
	"github.com/rhuss/codesmith/pkg/sandbox/remote"
)

func main() {
	debug.Init("", "", envOr("CODESMITH_LOG_FORMAT", "json"))

	port := envOr("SANDBOX_PORT", "8080")
	maxConcurrent := envOrInt("SANDBOX_MAX_CONCURRENT", 3)
	timeout, err := time.ParseDuration(envOr("SANDBOX_TIMEOUT", "30s"))
	if err != nil {
		slog.Error("invalid SANDBOX_TIMEOUT", "error", err)
		os.Exit(1)
	}

	local := sandbox.NewLocal(sandbox.Config{
		Timeout:        timeout,
		MaxConcurrent:  maxConcurrent,
		MaxOutputBytes: envOrInt("SANDBOX_MAX_OUTPUT", 1<<20),
		TempDir:        os.Getenv("SANDBOX_TEMP_DIR"),
		CacheDir:       os.Getenv("SANDBOX_CACHE_DIR"),
		EnableShell:    true,
	})
	if len(local.Supported()) == 0 {
		slog.Error("no supported runtime found in PATH")
		os.Exit(1)
	}

	srv := remote.NewServer(local, maxConcurrent)
	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeout + 30*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := local.Warm(ctx); err != nil {
			slog.Warn("runner warm-up failed, first runs may be slow", "error", err)
		}
	}()

	go func() {
		slog.Info("sandbox server starting",
			"port", port,
			"languages", local.Supported(),
			"max_concurrent", maxConcurrent,
			"timeout", timeout,
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down sandbox server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
