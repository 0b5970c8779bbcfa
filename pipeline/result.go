package pipeline

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/teilomillet/promptpilot/evaluator"
)

// ExecutionResult is the outcome of one successful run. It is immutable:
// Length is derived from Text and latency is never negative.
type ExecutionResult struct {
	text       string
	quality    *evaluator.QualityScore
	length     int
	latency    time.Duration
	tokenUsage int64
}

// NewExecutionResult builds a result, deriving Length from text and clamping
// latency at zero.
func NewExecutionResult(text string, latency time.Duration, tokenUsage int64, quality *evaluator.QualityScore) *ExecutionResult {
	if latency < 0 {
		latency = 0
	}
	if tokenUsage < 0 {
		tokenUsage = 0
	}
	var q *evaluator.QualityScore
	if quality != nil {
		copied := *quality
		q = &copied
	}
	return &ExecutionResult{
		text:       text,
		quality:    q,
		length:     utf8.RuneCountInString(text),
		latency:    latency,
		tokenUsage: tokenUsage,
	}
}

func (r *ExecutionResult) Text() string { return r.text }

// Length is the number of characters (runes) in Text.
func (r *ExecutionResult) Length() int { return r.length }

func (r *ExecutionResult) Latency() time.Duration { return r.latency }

func (r *ExecutionResult) LatencyMs() int64 { return r.latency.Milliseconds() }

func (r *ExecutionResult) TokenUsage() int64 { return r.tokenUsage }

// Quality returns a copy of the evaluation, or nil when none was requested.
func (r *ExecutionResult) Quality() *evaluator.QualityScore {
	if r.quality == nil {
		return nil
	}
	q := *r.quality
	return &q
}

type resultJSON struct {
	Result     string                  `json:"result"`
	Quality    *evaluator.QualityScore `json:"quality,omitempty"`
	Length     int                     `json:"length"`
	Latency    int64                   `json:"latency"`
	TokenUsage int64                   `json:"tokenUsage"`
}

func (r *ExecutionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Result:     r.text,
		Quality:    r.quality,
		Length:     r.length,
		Latency:    r.LatencyMs(),
		TokenUsage: r.tokenUsage,
	})
}

// UnmarshalJSON ignores any encoded length and recomputes it from the text.
func (r *ExecutionResult) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = *NewExecutionResult(raw.Result, time.Duration(raw.Latency)*time.Millisecond, raw.TokenUsage, raw.Quality)
	return nil
}
