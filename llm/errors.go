package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of an error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeProvider
	ErrorTypeRequest
	ErrorTypeResponse
	ErrorTypeAPI
	ErrorTypeRateLimit
	ErrorTypeAuthentication
	ErrorTypeInvalidInput
)

// LLMError is the transport-level error returned by every LLM implementation.
type LLMError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.TypeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.TypeString(), e.Message)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

func (e *LLMError) TypeString() string {
	switch e.Type {
	case ErrorTypeProvider:
		return "ProviderError"
	case ErrorTypeRequest:
		return "RequestError"
	case ErrorTypeResponse:
		return "ResponseError"
	case ErrorTypeAPI:
		return "APIError"
	case ErrorTypeRateLimit:
		return "RateLimitError"
	case ErrorTypeAuthentication:
		return "AuthenticationError"
	case ErrorTypeInvalidInput:
		return "InvalidInputError"
	default:
		return "UnknownError"
	}
}

// LoggableFields returns key/value pairs for structured logging.
func (e *LLMError) LoggableFields() []any {
	return []any{
		"error_type", e.TypeString(),
		"message", e.Message,
		"status_code", e.StatusCode,
	}
}

func NewLLMError(errType ErrorType, message string, err error) *LLMError {
	return &LLMError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// newAPIError maps a non-2xx status code to an error type.
func newAPIError(statusCode int, body string) *LLMError {
	errType := ErrorTypeAPI
	switch statusCode {
	case http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = ErrorTypeAuthentication
	case http.StatusBadRequest:
		errType = ErrorTypeInvalidInput
	}
	if strings.Contains(body, "RESOURCE_EXHAUSTED") {
		errType = ErrorTypeRateLimit
	}
	return &LLMError{
		Type:       errType,
		Message:    fmt.Sprintf("API error: status code %d", statusCode),
		StatusCode: statusCode,
		Err:        errors.New(truncate(body, 512)),
	}
}

var rateLimitMarkers = []string{"429", "resource_exhausted", "rate limit", "rate_limit", "too many requests", "quota"}

// IsRateLimit reports whether err is, or wraps, a rate-limit failure. A
// provider error with a known HTTP status is classified by its type alone;
// other errors, such as those from the GenAI SDK, are matched on their text.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var llmErr *LLMError
	if errors.As(err, &llmErr) {
		if llmErr.Type == ErrorTypeRateLimit {
			return true
		}
		if llmErr.StatusCode != 0 {
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryable reports whether another attempt could succeed. Rate limits are
// never retried: the user is told to wait instead.
func retryable(err error) bool {
	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		return false
	}
	switch llmErr.Type {
	case ErrorTypeRequest, ErrorTypeAPI, ErrorTypeResponse:
		return llmErr.StatusCode == 0 || llmErr.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
