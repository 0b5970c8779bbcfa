package session

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teilomillet/promptpilot/pipeline"
)

// RunOutcome is the result of one variation inside RunAll. Exactly one of
// Result and Err is set.
type RunOutcome struct {
	ID     int
	Result *pipeline.ExecutionResult
	Err    error
}

// RunAll runs every idle variation with a non-empty prompt, in parallel up to
// the configured concurrency. A failing variation does not stop the others.
// Outcomes are in collection order.
func (c *Collection) RunAll(ctx context.Context) []RunOutcome {
	c.mu.Lock()
	var ids []int
	for _, v := range c.variations {
		if v.Status == StatusIdle && strings.TrimSpace(v.Prompt) != "" {
			ids = append(ids, v.ID)
		}
	}
	c.mu.Unlock()

	outcomes := make([]RunOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i].ID = id
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					outcomes[i].Err = err
					return nil
				}
			}
			outcomes[i].Result, outcomes[i].Err = c.Run(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	c.logger.Info("Run all finished", "runs", len(outcomes), "failed", failed)
	return outcomes
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []RunOutcome) []RunOutcome {
	var out []RunOutcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// FirstRateLimited returns the first rate-limited outcome error, if any.
func FirstRateLimited(outcomes []RunOutcome) error {
	for _, o := range outcomes {
		if pipeline.IsRateLimited(o.Err) {
			return o.Err
		}
	}
	return nil
}
