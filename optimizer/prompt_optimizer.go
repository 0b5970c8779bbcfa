// File: optimizer/prompt_optimizer.go

package optimizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/utils"
)

func NewPromptOptimizer(l llm.LLM, opts ...OptimizerOption) *PromptOptimizer {
	optimizer := &PromptOptimizer{
		llm:    l,
		logger: utils.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(optimizer)
	}
	return optimizer
}

// Optimize makes a single call on model and returns the suggested rewrite.
// Failures are returned as-is and never retried here.
func (po *PromptOptimizer) Optimize(ctx context.Context, prompt, model string) (*Suggestion, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("prompt is empty")
	}

	po.logger.Debug("Optimizing prompt", "model", model, "chars", len(prompt))
	resp, err := po.llm.Generate(ctx, po.buildPrompt(prompt),
		llm.WithModel(model),
		llm.WithStructuredResponseSchema[Suggestion](),
	)
	if err != nil {
		return nil, fmt.Errorf("optimization request failed: %w", err)
	}

	suggestion, err := llm.ParseStructured[Suggestion](resp.String())
	if err != nil {
		po.logger.Warn("Unusable optimizer response", "error", err)
		return nil, err
	}
	return suggestion, nil
}

func (po *PromptOptimizer) buildPrompt(prompt string) string {
	var b strings.Builder
	b.WriteString("You are an expert prompt engineer. Your job is to take a user-provided prompt and improve it.\n\n")
	if po.optimizationGoal != "" {
		fmt.Fprintf(&b, "Optimization goal: %s\n\n", po.optimizationGoal)
	}
	if len(po.guidelines) > 0 {
		b.WriteString("Follow these guidelines:\n")
		for _, g := range po.guidelines {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Here is the prompt to improve:\n\n%s\n\n", prompt)
	b.WriteString("Respond with the optimized prompt and an explanation of the changes you made. Be concise. ")
	b.WriteString(`Return a JSON object with the fields "optimizedPrompt" and "explanation".`)
	return b.String()
}
