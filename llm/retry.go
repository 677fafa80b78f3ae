package llm

import "time"

// RetryConfig holds retry configuration for completion requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the pause before the retry attempt.
	BackoffBase time.Duration
}

// DefaultRetryConfig allows a single retry on transient network failure.
// Auth and rate-limit errors are classified fatal and never retried.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 2,
		BackoffBase: 500 * time.Millisecond,
	}
}
