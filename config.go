package mediastore

import "time"

// Configuration defaults for the connection supervisor
const (
	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = 200 * time.Millisecond
	DefaultBackoffMultiplier = 1.5
	DefaultBackoffCeiling    = 3 * time.Second

	DefaultBreakerMaxFailures = 3
	DefaultBreakerRecovery    = 30 * time.Second
	DefaultBreakerSuccesses   = 2

	DefaultAvailabilityTTL = 10 * time.Second
	DefaultProbeTimeout    = 500 * time.Millisecond
	DefaultProbesPerSecond = 2.0
)

// SupervisorConfig holds retry, circuit breaker and probe configuration
// for a ConnectionSupervisor.
type SupervisorConfig struct {
	// Retry envelope for backend calls
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	BackoffCeiling    time.Duration

	// Circuit breaker thresholds
	BreakerMaxFailures int
	BreakerRecovery    time.Duration
	BreakerSuccesses   int

	// Local availability cache and probe limits
	AvailabilityTTL time.Duration
	ProbeTimeout    time.Duration
	ProbesPerSecond float64
}

// DefaultSupervisorConfig returns the default supervisor configuration
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		MaxAttempts:        DefaultMaxAttempts,
		InitialBackoff:     DefaultInitialBackoff,
		BackoffMultiplier:  DefaultBackoffMultiplier,
		BackoffCeiling:     DefaultBackoffCeiling,
		BreakerMaxFailures: DefaultBreakerMaxFailures,
		BreakerRecovery:    DefaultBreakerRecovery,
		BreakerSuccesses:   DefaultBreakerSuccesses,
		AvailabilityTTL:    DefaultAvailabilityTTL,
		ProbeTimeout:       DefaultProbeTimeout,
		ProbesPerSecond:    DefaultProbesPerSecond,
	}
}

// Validate checks if the SupervisorConfig is valid
func (c SupervisorConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "MaxAttempts",
			"value":  c.MaxAttempts,
			"reason": "must be >= 1",
		})
	}
	if c.InitialBackoff <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "InitialBackoff",
			"value":  c.InitialBackoff,
			"reason": "must be positive",
		})
	}
	if c.BackoffMultiplier < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "BackoffMultiplier",
			"value":  c.BackoffMultiplier,
			"reason": "must be >= 1",
		})
	}
	if c.BackoffCeiling < c.InitialBackoff {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "BackoffCeiling",
			"value":  c.BackoffCeiling,
			"reason": "must be >= InitialBackoff",
		})
	}
	if c.BreakerMaxFailures < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "BreakerMaxFailures",
			"value":  c.BreakerMaxFailures,
			"reason": "must be >= 1",
		})
	}
	if c.BreakerSuccesses < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "BreakerSuccesses",
			"value":  c.BreakerSuccesses,
			"reason": "must be >= 1",
		})
	}
	return nil
}
