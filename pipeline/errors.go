package pipeline

import (
	"errors"
	"fmt"

	"github.com/teilomillet/promptpilot/llm"
)

var (
	// ErrEmptyInput is returned before any capability call when the prompt is
	// empty or whitespace only.
	ErrEmptyInput = errors.New("prompt is empty")

	// ErrRateLimited matches, through errors.Is, any CapabilityError caused by
	// a quota or rate-limit response.
	ErrRateLimited = errors.New("rate limited")
)

type Capability string

const (
	CapabilityGeneration   Capability = "generation"
	CapabilityEvaluation   Capability = "evaluation"
	CapabilityOptimization Capability = "optimization"
)

// CapabilityError wraps a failure of one of the remote capabilities.
type CapabilityError struct {
	Capability  Capability
	RateLimited bool
	Err         error
}

func newCapabilityError(c Capability, err error) *CapabilityError {
	return &CapabilityError{
		Capability:  c,
		RateLimited: llm.IsRateLimit(err),
		Err:         err,
	}
}

func (e *CapabilityError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("%s rate limited: %v", e.Capability, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

func (e *CapabilityError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited
}

// IsRateLimited reports whether err is a rate-limited capability failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Action is the user operation an error is reported for.
type Action int

const (
	ActionRun Action = iota
	ActionOptimize
)

// Notice is the title and message shown to a user for a failed action.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

const (
	msgRateLimited    = "Rate limit exceeded. Please wait a moment before trying again."
	msgRunFailed      = "Failed to get a result from the AI."
	msgOptimizeFailed = "Failed to optimize the prompt."
)

// Describe maps err to the notice shown for action.
func Describe(action Action, err error) Notice {
	if errors.Is(err, ErrEmptyInput) {
		if action == ActionOptimize {
			return Notice{Title: "Empty Prompt", Message: "Please enter a prompt to optimize."}
		}
		return Notice{Title: "Empty Prompt", Message: "Please enter a prompt before running."}
	}
	if IsRateLimited(err) {
		return Notice{Title: "Error", Message: msgRateLimited}
	}
	if action == ActionOptimize {
		return Notice{Title: "Error", Message: msgOptimizeFailed}
	}
	return Notice{Title: "Error", Message: msgRunFailed}
}

// UserMessage is Describe(ActionRun, err).Message.
func UserMessage(err error) string {
	return Describe(ActionRun, err).Message
}
