package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teilomillet/promptpilot/pipeline"
)

func newRunCmd(gf *globalFlags) *cobra.Command {
	var (
		criteria string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one prompt and print the result with its metrics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := openApp(ctx, gf)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			prompt := strings.Join(args, " ")
			res, err := app.Pipeline.Execute(ctx, prompt, app.Config.Model, criteria)
			if err != nil {
				notice := pipeline.Describe(pipeline.ActionRun, err)
				app.Logger.Debug("Run failed", "error", err)
				return fmt.Errorf("%s: %s", notice.Title, notice.Message)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&criteria, "criteria", "c", "", "Evaluation criteria; enables quality scoring")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printResult(w io.Writer, res *pipeline.ExecutionResult) {
	fmt.Fprintln(w, res.Text())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Latency: %dms  Length: %d  Tokens: %d\n", res.LatencyMs(), res.Length(), res.TokenUsage())
	if q := res.Quality(); q != nil {
		fmt.Fprintf(w, "Quality: %d/5  %s\n", q.Score, q.Explanation)
	}
}
