// Package main is the promptpilot command line: it serves the HTTP and
// websocket API, runs single prompts, optimizes prompts and runs YAML batches
// into a CSV report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/teilomillet/promptpilot"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags override values read from the environment.
type globalFlags struct {
	provider  string
	model     string
	library   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "promptpilot",
		Short: "Compare prompt variations across models",
		Long: `PromptPilot runs prompt variations against hosted LLMs, scores the
results against your criteria, suggests optimized prompts and exports the
comparison as CSV.

Configuration comes from PROMPTPILOT_* environment variables (and .env);
the flags below override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&gf.provider, "provider", "", "LLM provider (google, genai, openai, anthropic, groq, deepseek, echo)")
	pf.StringVarP(&gf.model, "model", "m", "", "Model for new variations")
	pf.StringVar(&gf.library, "library", "", "Library backend (memory, sqlite:<path>, yaml:<path>)")
	pf.StringVarP(&gf.logLevel, "log-level", "l", "", "Log level (off, error, warn, info, debug)")
	pf.StringVar(&gf.logFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(
		newServeCmd(gf),
		newRunCmd(gf),
		newOptimizeCmd(gf),
		newBatchCmd(gf),
	)
	return rootCmd
}

// loadConfig reads the environment and applies any flag overrides.
func loadConfig(gf *globalFlags) (*promptpilot.Config, error) {
	cfg, err := promptpilot.LoadConfig()
	if err != nil {
		return nil, err
	}

	var opts []promptpilot.ConfigOption
	if gf.provider != "" {
		opts = append(opts, promptpilot.SetProvider(gf.provider))
	}
	if gf.model != "" {
		opts = append(opts, promptpilot.SetModel(gf.model))
	}
	if gf.library != "" {
		opts = append(opts, promptpilot.SetLibrary(gf.library))
	}
	if gf.logFormat != "" {
		opts = append(opts, promptpilot.SetLogFormat(gf.logFormat))
	}
	if gf.logLevel != "" {
		var level promptpilot.LogLevel
		if err := level.UnmarshalText([]byte(gf.logLevel)); err != nil {
			return nil, fmt.Errorf("invalid --log-level: %w", err)
		}
		opts = append(opts, promptpilot.SetLogLevel(level))
	}
	promptpilot.ApplyOptions(cfg, opts...)
	return cfg, nil
}

// openApp loads the configuration and wires an App. The caller closes it.
func openApp(ctx context.Context, gf *globalFlags, opts ...promptpilot.Option) (*promptpilot.App, error) {
	cfg, err := loadConfig(gf)
	if err != nil {
		return nil, err
	}
	return promptpilot.New(ctx, cfg, opts...)
}

func closeApp(cmd *cobra.Command, app *promptpilot.App) {
	if err := app.Close(context.Background()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
