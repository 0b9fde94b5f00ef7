package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/app"
	"github.com/rhuss/codesmith/pkg/classify"
	"github.com/rhuss/codesmith/pkg/config"
	"github.com/rhuss/codesmith/pkg/debug"
	"github.com/rhuss/codesmith/pkg/mcpserver"
)

var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "codesmith",
		Short:         "Generate, classify, and verify code",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")

	root.AddCommand(
		newGenerateCmd(opts),
		newVerifyCmd(opts),
		newClassifyCmd(),
		newMCPCmd(opts),
	)
	return root
}

// withApp loads configuration and builds the pipeline for one command.
func (o *rootOptions) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var backend, model string

	cmd := &cobra.Command{
		Use:   "generate TASK...",
		Short: "Generate code for a task, store it, and run it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.GenerateRequest{
				Task:    strings.Join(args, " "),
				Backend: backend,
				Model:   model,
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				resp, err := a.Pipeline.CreateGeneration(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "generation backend (default from config)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "verify [FILE]",
		Short: "Run code from a file or stdin and report the verdict",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			req := &api.VerifyRequest{Code: code, Language: language}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				resp, err := a.Pipeline.CreateVerification(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "", "language of the code (default: verify.default_language)")
	return cmd
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [FILE]",
		Short: "Print the language named on the first line of code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), classify.Classify(code))
			return err
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the generate_code and verify_code tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				return mcpserver.New(a.Pipeline, version).ServeStdio(cmd.Context())
			})
		},
	}
}

// readSource reads the named file, or stdin when no file or "-" is given.
func readSource(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
