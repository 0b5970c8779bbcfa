package optimizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/providers"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Name() string { return "mock" }

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (*providers.Response, error) {
	cfg := &llm.GenerateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	args := m.Called(prompt, cfg.Model)
	if resp := args.Get(0); resp != nil {
		return resp.(*providers.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestOptimize(t *testing.T) {
	m := &mockLLM{}
	m.On("Generate", mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Write a slogan") && strings.Contains(p, "keep it short")
	}), "gemini-1.5-pro").Return(
		providers.NewTextResponse("```json\n{\"optimizedPrompt\": \"Write a 5-word slogan\", \"explanation\": \"More specific.\"}\n```", nil),
		nil,
	).Once()

	po := NewPromptOptimizer(m, WithGuidelines("keep it short"), WithOptimizationGoal("clarity"))
	suggestion, err := po.Optimize(context.Background(), "Write a slogan", "gemini-1.5-pro")
	require.NoError(t, err)
	assert.Equal(t, &Suggestion{OptimizedPrompt: "Write a 5-word slogan", Explanation: "More specific."}, suggestion)
	m.AssertExpectations(t)
}

func TestOptimizeFailures(t *testing.T) {
	t.Run("empty prompt makes no call", func(t *testing.T) {
		m := &mockLLM{}
		_, err := NewPromptOptimizer(m).Optimize(context.Background(), "  ", "gemini-1.5-flash")
		require.Error(t, err)
		m.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("llm error propagates once", func(t *testing.T) {
		m := &mockLLM{}
		boom := llm.NewLLMError(llm.ErrorTypeRateLimit, "429", nil)
		m.On("Generate", mock.Anything, mock.Anything).Return(nil, boom).Once()

		_, err := NewPromptOptimizer(m).Optimize(context.Background(), "p", "gemini-1.5-flash")
		require.ErrorIs(t, err, boom)
		m.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("missing optimized prompt fails validation", func(t *testing.T) {
		m := &mockLLM{}
		m.On("Generate", mock.Anything, mock.Anything).Return(providers.NewTextResponse(`{"explanation": "none"}`, nil), nil)

		_, err := NewPromptOptimizer(m).Optimize(context.Background(), "p", "gemini-1.5-flash")
		assert.Error(t, err)
	})
}

type fixedOptimizer struct{}

func (fixedOptimizer) Optimize(_ context.Context, prompt, _ string) (*Suggestion, error) {
	if prompt == "bad" {
		return nil, errors.New("refused")
	}
	return &Suggestion{OptimizedPrompt: prompt + "!", Explanation: "louder"}, nil
}

func TestBatchPromptOptimizer(t *testing.T) {
	bpo := NewBatchPromptOptimizer(fixedOptimizer{})
	bpo.SetRateLimit(rate.Inf, 1)

	results := bpo.OptimizePrompts(context.Background(), []PromptExample{
		{Name: "a", Prompt: "one"},
		{Name: "b", Prompt: "bad"},
		{Name: "c", Prompt: "three"},
	})
	require.Len(t, results, 3)
	assert.Equal(t, "one!", results[0].Suggestion.OptimizedPrompt)
	assert.EqualError(t, results[1].Error, "refused")
	assert.Equal(t, "c", results[2].Name)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bpo.SetRateLimit(rate.Limit(0.001), 0)
	results = bpo.OptimizePrompts(ctx, []PromptExample{{Name: "late", Prompt: "x"}})
	assert.ErrorContains(t, results[0].Error, "rate limiter")
}
