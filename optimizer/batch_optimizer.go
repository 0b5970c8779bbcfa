// optimizer/batch_optimizer.go

package optimizer

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// BatchPromptOptimizer optimizes several prompts concurrently, paced by a
// rate limiter so a batch does not trip the provider's quota.
type BatchPromptOptimizer struct {
	Optimizer   Optimizer
	rateLimiter *rate.Limiter
}

func NewBatchPromptOptimizer(o Optimizer) *BatchPromptOptimizer {
	return &BatchPromptOptimizer{
		Optimizer:   o,
		rateLimiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func (bpo *BatchPromptOptimizer) SetRateLimit(r rate.Limit, b int) {
	bpo.rateLimiter = rate.NewLimiter(r, b)
}

type PromptExample struct {
	Name   string
	Prompt string
	Model  string
}

type OptimizationResult struct {
	Name           string
	OriginalPrompt string
	Suggestion     *Suggestion
	Error          error
}

// OptimizePrompts returns one result per example, in input order.
func (bpo *BatchPromptOptimizer) OptimizePrompts(ctx context.Context, examples []PromptExample) []OptimizationResult {
	results := make([]OptimizationResult, len(examples))
	var wg sync.WaitGroup
	for i, example := range examples {
		wg.Add(1)
		go func(i int, example PromptExample) {
			defer wg.Done()
			results[i] = OptimizationResult{Name: example.Name, OriginalPrompt: example.Prompt}

			if err := bpo.rateLimiter.Wait(ctx); err != nil {
				results[i].Error = fmt.Errorf("rate limiter error: %w", err)
				return
			}
			results[i].Suggestion, results[i].Error = bpo.Optimizer.Optimize(ctx, example.Prompt, example.Model)
		}(i, example)
	}
	wg.Wait()
	return results
}
