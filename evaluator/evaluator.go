// Package evaluator implements the quality judge: an LLM that scores a
// generated result against user-written criteria on a 1 to 5 scale.
package evaluator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/utils"
)

const (
	MinScore = 1
	MaxScore = 5

	// DefaultModel is the fast model used for every evaluation regardless of
	// which model produced the result.
	DefaultModel = "gemini-1.5-flash"
)

// QualityScore is the judge's verdict.
type QualityScore struct {
	Score       int    `json:"score" validate:"min=1,max=5"`
	Explanation string `json:"explanation"`
}

// Evaluator is the evaluation capability.
type Evaluator interface {
	Evaluate(ctx context.Context, originalPrompt, result, criteria string) (*QualityScore, error)
}

// verdict is the wire shape requested from the model. The score arrives as a
// JSON number and may be fractional.
type verdict struct {
	Score       float64 `json:"score" jsonschema:"minimum=1,maximum=5,description=A quality score from 1 to 5 where 5 is best."`
	Explanation string  `json:"explanation" jsonschema:"description=A brief explanation for the given score."`
}

// LLMEvaluator asks an LLM to grade results. It always uses its own model.
type LLMEvaluator struct {
	llm    llm.LLM
	model  string
	logger utils.Logger
}

type Option func(*LLMEvaluator)

func WithModel(model string) Option {
	return func(e *LLMEvaluator) {
		if model != "" {
			e.model = model
		}
	}
}

func WithLogger(logger utils.Logger) Option {
	return func(e *LLMEvaluator) {
		e.logger = logger
	}
}

func NewLLMEvaluator(l llm.LLM, opts ...Option) *LLMEvaluator {
	e := &LLMEvaluator{
		llm:    l,
		model:  DefaultModel,
		logger: utils.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the model every evaluation runs on.
func (e *LLMEvaluator) Model() string { return e.model }

func (e *LLMEvaluator) Evaluate(ctx context.Context, originalPrompt, result, criteria string) (*QualityScore, error) {
	resp, err := e.llm.Generate(ctx, buildPrompt(originalPrompt, result, criteria),
		llm.WithModel(e.model),
		llm.WithStructuredResponseSchema[verdict](),
	)
	if err != nil {
		return nil, fmt.Errorf("evaluation request failed: %w", err)
	}

	v, err := llm.ParseStructured[verdict](resp.String())
	if err != nil {
		return nil, err
	}

	if v.Score < MinScore || v.Score > MaxScore {
		e.logger.Warn("Evaluator returned out-of-range score", "score", v.Score)
		return nil, fmt.Errorf("score %v outside %d..%d", v.Score, MinScore, MaxScore)
	}

	score := &QualityScore{
		Score:       int(math.Round(v.Score)),
		Explanation: strings.TrimSpace(v.Explanation),
	}
	if err := llm.Validate(score); err != nil {
		return nil, fmt.Errorf("invalid quality score: %w", err)
	}
	return score, nil
}

func buildPrompt(originalPrompt, result, criteria string) string {
	var b strings.Builder
	b.WriteString("You are an expert evaluator. Your task is to assess the quality of an AI-generated text based on a given prompt and specific evaluation criteria.\n\n")
	b.WriteString("Please provide a score from 1 to 5 (where 1 is poor and 5 is excellent) and a brief explanation for your rating.\n\n")
	fmt.Fprintf(&b, "**Original Prompt:**\n```\n%s\n```\n\n", originalPrompt)
	fmt.Fprintf(&b, "**Evaluation Criteria:**\n```\n%s\n```\n\n", criteria)
	fmt.Fprintf(&b, "**Generated Result to Evaluate:**\n```\n%s\n```\n", result)
	return b.String()
}
