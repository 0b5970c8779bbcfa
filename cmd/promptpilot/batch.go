package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teilomillet/promptpilot"
	"github.com/teilomillet/promptpilot/export"
	"github.com/teilomillet/promptpilot/library"
	"github.com/teilomillet/promptpilot/pipeline"
	"github.com/teilomillet/promptpilot/session"
)

// batchFile has the layout of a YAML library, so a saved library can be run
// as a batch directly.
type batchFile struct {
	Prompts []library.SavedPromptVariation `yaml:"prompts"`
}

func readBatch(path string) ([]library.SavedPromptVariation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var f batchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(f.Prompts) == 0 {
		return nil, fmt.Errorf("batch file %s has no prompts", path)
	}
	return f.Prompts, nil
}

func newBatchCmd(gf *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Run every prompt in a YAML file and export the results as CSV",
		Long: `Run every prompt in a YAML file and export the results as CSV.

The file lists prompts the same way a YAML library does:

  prompts:
    - prompt: Write a slogan for a coffee shop
      evaluationCriteria: upbeat, under 10 words
      model: gemini-1.5-pro
    - prompt: Write a tagline for a bakery

Entries without a model use the configured default.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readBatch(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := openApp(ctx, gf, promptpilot.WithoutSeed())
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			for _, entry := range entries {
				if entry.Model == "" {
					entry.Model = app.Config.Model
				}
				v := app.Prompts.Add()
				app.Prompts.LoadSaved(v.ID, entry)
			}

			outcomes := app.Prompts.RunAll(ctx)
			for _, o := range session.Failed(outcomes) {
				notice := pipeline.Describe(pipeline.ActionRun, o.Err)
				fmt.Fprintf(cmd.ErrOrStderr(), "Variation %d: %s: %s\n", o.ID, notice.Title, notice.Message)
			}

			if err := writeReport(cmd.OutOrStdout(), out, app.Prompts.List()); err != nil {
				return err
			}

			summary := session.Summarize(session.Analytics(app.Prompts.List()))
			fmt.Fprintf(cmd.OutOrStdout(), "Ran %d of %d prompts: avg latency %.0fms, avg length %.0f, avg tokens %.0f",
				summary.Runs, len(entries), summary.AvgLatencyMs, summary.AvgLength, summary.AvgTokens)
			if summary.Scored > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", avg quality %.1f", summary.AvgScore)
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if err := session.FirstRateLimited(outcomes); err != nil {
				return errors.New(pipeline.UserMessage(err))
			}
			if failed := session.Failed(outcomes); len(failed) > 0 {
				return fmt.Errorf("%d of %d prompts failed", len(failed), len(outcomes))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", export.Filename, "CSV output path, or - for stdout")
	return cmd
}

func writeReport(stdout io.Writer, path string, variations []session.PromptVariation) (err error) {
	if path == "-" {
		return export.WriteCSV(stdout, variations)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report: %w", cerr)
		}
	}()
	return export.WriteCSV(f, variations)
}
