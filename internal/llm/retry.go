package llm

import "time"

// RetryConfig holds retry configuration for model requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per call.
	MaxAttempts int

	// BackoffBase is multiplied by the attempt number before the next try
	// (linear backoff).
	BackoffBase time.Duration

	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration
}

// DefaultRetryConfig returns sensible retry defaults for model requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BackoffBase:    1500 * time.Millisecond,
		AttemptTimeout: 45 * time.Second,
	}
}
