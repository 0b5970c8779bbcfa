// File: optimizer/types.go

package optimizer

import (
	"context"

	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/utils"
)

// Suggestion is a proposed rewrite of a prompt. It is advisory: nothing
// changes until a caller applies it.
type Suggestion struct {
	OptimizedPrompt string `json:"optimizedPrompt" validate:"required" jsonschema:"description=The optimized version of the prompt."`
	Explanation     string `json:"explanation" jsonschema:"description=An explanation of the changes made to the prompt."`
}

// Optimizer is the optimization capability.
type Optimizer interface {
	Optimize(ctx context.Context, prompt, model string) (*Suggestion, error)
}

type OptimizerOption func(*PromptOptimizer)

// PromptOptimizer asks an LLM to rewrite a prompt in one call.
type PromptOptimizer struct {
	llm              llm.LLM
	logger           utils.Logger
	optimizationGoal string
	guidelines       []string
}

func WithOptimizationGoal(goal string) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.optimizationGoal = goal
	}
}

// WithGuidelines adds rules the rewrite must follow, e.g. "keep it under 50
// words".
func WithGuidelines(guidelines ...string) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.guidelines = append(po.guidelines, guidelines...)
	}
}

func WithLogger(logger utils.Logger) OptimizerOption {
	return func(po *PromptOptimizer) {
		po.logger = logger
	}
}
