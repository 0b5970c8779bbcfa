// Package session owns the ordered collection of prompt variations and their
// run and optimize lifecycle.
package session

import (
	"errors"
	"fmt"

	"github.com/teilomillet/promptpilot/pipeline"
)

var (
	ErrNotFound = errors.New("prompt variation not found")
	// ErrBusy is returned when a run or optimization is already in flight
	// for the same variation.
	ErrBusy = errors.New("prompt variation is busy")
)

const (
	DefaultModel = "gemini-1.5-flash"
	SeedPrompt   = `Write a short, upbeat marketing slogan for a new brand of coffee called "Morning Star".`
)

type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusOptimizing
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusOptimizing:
		return "optimizing"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = StatusIdle
	case "running":
		*s = StatusRunning
	case "optimizing":
		*s = StatusOptimizing
	default:
		return fmt.Errorf("invalid status: %s", text)
	}
	return nil
}

// PromptVariation is one card. Result is nil until a run succeeds and is
// replaced whole by later runs.
type PromptVariation struct {
	ID                 int                       `json:"id"`
	Prompt             string                    `json:"prompt"`
	EvaluationCriteria string                    `json:"evaluationCriteria"`
	Model              string                    `json:"model"`
	Result             *pipeline.ExecutionResult `json:"result"`
	Status             Status                    `json:"status"`
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Prompt             *string `json:"prompt,omitempty"`
	EvaluationCriteria *string `json:"evaluationCriteria,omitempty"`
	Model              *string `json:"model,omitempty"`
}

func (p Patch) apply(v *PromptVariation) {
	if p.Prompt != nil {
		v.Prompt = *p.Prompt
	}
	if p.EvaluationCriteria != nil {
		v.EvaluationCriteria = *p.EvaluationCriteria
	}
	if p.Model != nil {
		v.Model = *p.Model
	}
}

// Snapshot is the collection as of one mutation.
type Snapshot struct {
	Version    uint64            `json:"version"`
	Variations []PromptVariation `json:"variations"`
}
