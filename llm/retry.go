package llm

import "time"

// RetryStrategy decides whether and when a failed call is attempted again.
type RetryStrategy interface {
	ShouldRetry(err error) bool
	NextDelay() time.Duration
}

// DefaultRetryStrategy implements exponential backoff over retryable errors.
// With MaxRetries 0, the default, nothing is retried.
type DefaultRetryStrategy struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	attempts    int
}

func (s *DefaultRetryStrategy) ShouldRetry(err error) bool {
	if s.attempts >= s.MaxRetries {
		return false
	}
	return retryable(err)
}

const maxShiftAmount = 30 // Cap at 2^30 to prevent overflow

func (s *DefaultRetryStrategy) NextDelay() time.Duration {
	s.attempts++
	shiftAmount := min(s.attempts-1, maxShiftAmount)
	delay := s.InitialWait * time.Duration(1<<shiftAmount)
	if s.MaxWait > 0 && delay > s.MaxWait {
		delay = s.MaxWait
	}
	return delay
}
