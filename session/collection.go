package session

import (
	"context"
	"slices"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/teilomillet/promptpilot/library"
	"github.com/teilomillet/promptpilot/optimizer"
	"github.com/teilomillet/promptpilot/pipeline"
	"github.com/teilomillet/promptpilot/telemetry"
	"github.com/teilomillet/promptpilot/utils"
)

// Executor runs and optimizes prompts. *pipeline.Pipeline implements it.
type Executor interface {
	Execute(ctx context.Context, prompt, model, criteria string) (*pipeline.ExecutionResult, error)
	Optimize(ctx context.Context, prompt, model string) (*optimizer.Suggestion, error)
}

// Collection is the ordered set of prompt variations. All methods are safe
// for concurrent use; capability calls are made without holding the lock.
type Collection struct {
	exec         Executor
	logger       utils.Logger
	metrics      *telemetry.Metrics
	defaultModel string
	concurrency  int
	limiter      *rate.Limiter
	seed         bool

	mu         sync.Mutex
	variations []PromptVariation
	nextID     int
	version    uint64
	subs       map[int]chan Snapshot
	nextSub    int
}

type Option func(*Collection)

// WithSeed starts the collection with the example coffee slogan card.
func WithSeed() Option {
	return func(c *Collection) { c.seed = true }
}

func WithDefaultModel(model string) Option {
	return func(c *Collection) {
		if model != "" {
			c.defaultModel = model
		}
	}
}

func WithLogger(logger utils.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Collection) { c.metrics = m }
}

// WithConcurrency bounds the number of simultaneous runs started by RunAll.
func WithConcurrency(n int) Option {
	return func(c *Collection) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRateLimit paces the runs started by RunAll. A zero limit disables it.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Collection) {
		if r > 0 {
			c.limiter = rate.NewLimiter(r, max(burst, 1))
		}
	}
}

func New(exec Executor, opts ...Option) *Collection {
	c := &Collection{
		exec:         exec,
		logger:       utils.NewNopLogger(),
		defaultModel: DefaultModel,
		concurrency:  4,
		nextID:       1,
		subs:         make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.seed {
		c.variations = append(c.variations, PromptVariation{
			ID:     c.allocID(),
			Prompt: SeedPrompt,
			Model:  c.defaultModel,
		})
	}
	c.metrics.SetCards(len(c.variations), 0)
	return c
}

func (c *Collection) allocID() int {
	id := c.nextID
	c.nextID++
	return id
}

func (c *Collection) indexLocked(id int) int {
	return slices.IndexFunc(c.variations, func(v PromptVariation) bool { return v.ID == id })
}

func (c *Collection) listLocked() []PromptVariation {
	return append([]PromptVariation{}, c.variations...)
}

// Add appends a blank variation on the default model and returns it.
func (c *Collection) Add() PromptVariation {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := PromptVariation{ID: c.allocID(), Model: c.defaultModel}
	c.variations = append(c.variations, v)
	c.publishLocked()
	return v
}

// Update merges patch into the variation. It reports false for an unknown id.
func (c *Collection) Update(id int, patch Patch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	patch.apply(&c.variations[i])
	c.publishLocked()
	return true
}

// Remove deletes the variation, keeping the order of the others.
func (c *Collection) Remove(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.variations = slices.Delete(c.variations, i, i+1)
	c.publishLocked()
	return true
}

func (c *Collection) Get(id int) (PromptVariation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return PromptVariation{}, false
	}
	return c.variations[i], true
}

func (c *Collection) List() []PromptVariation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listLocked()
}

// LoadSaved copies a library entry's prompt, criteria and model into the
// variation. The id and any prior result are kept.
func (c *Collection) LoadSaved(id int, saved library.SavedPromptVariation) bool {
	model := saved.Model
	return c.Update(id, Patch{
		Prompt:             &saved.Prompt,
		EvaluationCriteria: &saved.EvaluationCriteria,
		Model:              &model,
	})
}

// ToSaved copies the variation's prompt, criteria and model into a library
// entry. The entry has no ID until a store saves it.
func (c *Collection) ToSaved(id int) (library.SavedPromptVariation, bool) {
	v, ok := c.Get(id)
	if !ok {
		return library.SavedPromptVariation{}, false
	}
	return library.SavedPromptVariation{
		Prompt:             v.Prompt,
		EvaluationCriteria: v.EvaluationCriteria,
		Model:              v.Model,
	}, true
}

// begin marks the variation busy and returns a copy of it. It fails with
// ErrNotFound, ErrBusy or pipeline.ErrEmptyInput.
func (c *Collection) begin(id int, status Status) (PromptVariation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return PromptVariation{}, ErrNotFound
	}
	v := c.variations[i]
	if v.Status != StatusIdle {
		return PromptVariation{}, ErrBusy
	}
	if strings.TrimSpace(v.Prompt) == "" {
		return PromptVariation{}, pipeline.ErrEmptyInput
	}
	c.variations[i].Status = status
	c.publishLocked()
	return v, nil
}

// finish returns the variation to idle and, when res is non-nil, stores it.
// It reports false when the variation was removed in the meantime.
func (c *Collection) finish(id int, res *pipeline.ExecutionResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.variations[i].Status = StatusIdle
	if res != nil {
		c.variations[i].Result = res
	}
	c.publishLocked()
	return true
}

// Run executes the variation's prompt and stores the result. On failure the
// previous result is kept. If the variation is removed while the run is in
// flight, the result is discarded and the variation stays removed.
func (c *Collection) Run(ctx context.Context, id int) (*pipeline.ExecutionResult, error) {
	v, err := c.begin(id, StatusRunning)
	if err != nil {
		return nil, err
	}

	res, err := c.exec.Execute(ctx, v.Prompt, v.Model, v.EvaluationCriteria)
	if err != nil {
		res = nil
	}
	if !c.finish(id, res) {
		c.logger.Debug("Dropping result for removed variation", "id", id)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Optimize asks for a rewrite of the variation's prompt. The variation is not
// changed; see ApplyOptimization.
func (c *Collection) Optimize(ctx context.Context, id int) (*optimizer.Suggestion, error) {
	v, err := c.begin(id, StatusOptimizing)
	if err != nil {
		return nil, err
	}
	suggestion, err := c.exec.Optimize(ctx, v.Prompt, v.Model)
	c.finish(id, nil)
	return suggestion, err
}

// ApplyOptimization replaces the variation's prompt with the suggestion.
func (c *Collection) ApplyOptimization(id int, s optimizer.Suggestion) bool {
	return c.Update(id, Patch{Prompt: &s.OptimizedPrompt})
}

// Subscribe returns a channel that receives the current snapshot and then a
// new one after every mutation. Slow subscribers only see the latest
// snapshot. cancel closes the channel.
func (c *Collection) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- Snapshot{Version: c.version, Variations: c.listLocked()}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Collection) publishLocked() {
	c.version++

	withResult := 0
	for _, v := range c.variations {
		if v.Result != nil {
			withResult++
		}
	}
	c.metrics.SetCards(len(c.variations), withResult)

	if len(c.subs) == 0 {
		return
	}
	snap := Snapshot{Version: c.version, Variations: c.listLocked()}
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
