package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teilomillet/promptpilot/llm"
	"github.com/teilomillet/promptpilot/providers"
)

type scriptedLLM struct {
	reply  string
	err    error
	model  string
	prompt string
	calls  int
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Generate(_ context.Context, prompt string, opts ...llm.GenerateOption) (*providers.Response, error) {
	cfg := &llm.GenerateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	s.calls++
	s.model = cfg.Model
	s.prompt = prompt
	if s.err != nil {
		return nil, s.err
	}
	return providers.NewTextResponse(s.reply, nil), nil
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    *QualityScore
		wantErr bool
	}{
		{"integer score", `{"score": 4, "explanation": "Upbeat and short."}`, &QualityScore{4, "Upbeat and short."}, false},
		{"fractional score rounds", `{"score": 4.6, "explanation": " ok "}`, &QualityScore{5, "ok"}, false},
		{"fenced reply", "```json\n{\"score\": 1, \"explanation\": \"off topic\"}\n```", &QualityScore{1, "off topic"}, false},
		{"score too high", `{"score": 9, "explanation": "wow"}`, nil, true},
		{"score too low", `{"score": 0, "explanation": "meh"}`, nil, true},
		{"score just above range", `{"score": 5.4, "explanation": "great"}`, nil, true},
		{"score just below range", `{"score": 0.6, "explanation": "poor"}`, nil, true},
		{"not json", `five stars`, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &scriptedLLM{reply: tc.reply}
			got, err := NewLLMEvaluator(s).Evaluate(context.Background(), "Write a slogan", "Wake up!", "upbeat")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateUsesFixedModel(t *testing.T) {
	s := &scriptedLLM{reply: `{"score": 3, "explanation": "fine"}`}
	e := NewLLMEvaluator(s)
	_, err := e.Evaluate(context.Background(), "Write a slogan", "Wake up!", "must mention coffee")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, s.model)
	assert.Equal(t, 1, s.calls)
	assert.Contains(t, s.prompt, "must mention coffee")
	assert.Contains(t, s.prompt, "Wake up!")

	e = NewLLMEvaluator(s, WithModel("gemini-2.0-flash"))
	assert.Equal(t, "gemini-2.0-flash", e.Model())
	e = NewLLMEvaluator(s, WithModel(""))
	assert.Equal(t, DefaultModel, e.Model())
}

func TestEvaluateError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewLLMEvaluator(&scriptedLLM{err: boom}).Evaluate(context.Background(), "p", "r", "c")
	assert.ErrorIs(t, err, boom)
}
