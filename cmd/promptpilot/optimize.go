package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/teilomillet/promptpilot/optimizer"
	"github.com/teilomillet/promptpilot/pipeline"
)

func newOptimizeCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize <prompt>...",
		Short: "Suggest an optimized rewrite for each prompt",
		Long: `Suggest an optimized rewrite for each prompt argument. Prompts are
optimized concurrently, paced by PROMPTPILOT_RPS when set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			app, err := openApp(ctx, gf)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			batch := optimizer.NewBatchPromptOptimizer(app.Pipeline)
			if rps := app.Config.RequestsPerSecond; rps > 0 {
				batch.SetRateLimit(rate.Limit(rps), max(app.Config.Burst, 1))
			}

			examples := make([]optimizer.PromptExample, len(args))
			for i, prompt := range args {
				examples[i] = optimizer.PromptExample{
					Name:   fmt.Sprintf("Prompt %d", i+1),
					Prompt: prompt,
					Model:  app.Config.Model,
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range batch.OptimizePrompts(ctx, examples) {
				fmt.Fprintf(out, "== %s\n", r.Name)
				if r.Error != nil {
					failed++
					notice := pipeline.Describe(pipeline.ActionOptimize, r.Error)
					fmt.Fprintf(out, "%s: %s\n\n", notice.Title, notice.Message)
					continue
				}
				fmt.Fprintf(out, "Original:  %s\nOptimized: %s\nWhy: %s\n\n", r.OriginalPrompt, r.Suggestion.OptimizedPrompt, r.Suggestion.Explanation)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d prompts could not be optimized", failed, len(args))
			}
			return nil
		},
	}
	return cmd
}
