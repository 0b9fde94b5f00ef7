// Command server runs the codesmith HTTP API.
//
// Configuration is read from a YAML file (--config, CODESMITH_CONFIG,
// ./config.yaml or /etc/codesmith/config.yaml), a .env file, and
// CODESMITH_* environment variables. See pkg/config.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/codesmith/pkg/app"
	"github.com/rhuss/codesmith/pkg/auth"
	"github.com/rhuss/codesmith/pkg/config"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/mcpserver"
	"github.com/rhuss/codesmith/pkg/transport"
	transporthttp "github.com/rhuss/codesmith/pkg/transport/http"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	go func() {
		if err := a.Warm(ctx); err != nil {
			slog.Warn("sandbox warm-up failed, first runs may be slow", "error", err)
		}
	}()

	adapterCfg := transporthttp.DefaultConfig()
	adapterCfg.MaxBodySize = cfg.Server.MaxBodyBytes

	opts := []transporthttp.Option{
		transporthttp.WithConfig(adapterCfg),
		transporthttp.WithSummarizer(a.Summarizer),
		transporthttp.WithArtifacts(a.Artifacts),
	}
	if a.History != nil {
		opts = append(opts, transporthttp.WithHistory(a.History))
	}
	adapter := transporthttp.NewAdapter(a.Pipeline, opts...)

	bypass := slices.Clone(auth.DefaultBypassEndpoints)
	if m := cfg.Observability.Metrics; m.Enabled {
		adapter.Handle("GET "+m.Path, promhttp.Handler())
		bypass = append(bypass, m.Path)
	}
	if cfg.MCP.Enabled {
		adapter.Handle(cfg.MCP.Path, mcpserver.New(a.Pipeline, version).Handler())
		slog.Info("mcp endpoint enabled", "path", cfg.MCP.Path)
	}

	chain, err := app.NewAuthChain(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	authMW := auth.Middleware(chain, app.NewRateLimiter(&cfg.Auth.RateLimit), bypass)

	srv := transporthttp.NewServer(adapter,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled),
		transporthttp.WithMiddleware(transport.Middleware(authMW)),
	)

	slog.Info("server starting",
		"port", cfg.Server.Port,
		"version", version,
		"auth", cfg.Auth.Type,
	)
	return srv.ListenAndServe(ctx)
}
