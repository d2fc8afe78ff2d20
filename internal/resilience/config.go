package resilience

import (
	"time"
)

// FromFetchConfig builds the retry policy for document fetches. backoffSecs
// is the base delay after a rate-limit signal; later retries double it.
func FromFetchConfig(maxRetries, backoffSecs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries > 0 {
		cfg.MaxAttempts = maxRetries
	}
	if backoffSecs > 0 {
		cfg.InitialBackoff = time.Duration(backoffSecs) * time.Second
		cfg.MaxBackoff = 8 * cfg.InitialBackoff
	}
	return cfg
}

// FromBreakerConfig builds the portal breaker policy from the municipal
// threshold and cooldown settings.
func FromBreakerConfig(threshold, cooldownSecs int) BreakerConfig {
	cfg := DefaultBreakerConfig()
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}
