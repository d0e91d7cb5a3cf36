package mediastore

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ConnectionSupervisor owns the pooled Redis connection and hides transient
// failure handling behind a small acquire-and-run contract.
//
// It wraps every backend call with a circuit breaker and bounded retries,
// and keeps a short-lived local view of backend availability so a down
// backend is not hammered with redundant probes.
//
// A single supervisor is safe for concurrent use and is meant to be shared
// by every RecordStore talking to the same Redis.
type ConnectionSupervisor struct {
	mu      sync.Mutex
	opts    *redis.Options
	cfg     SupervisorConfig
	client  *redis.Client
	breaker *CircuitBreaker
	probes  *rate.Limiter
	logger  Logger
	metrics Metrics

	// last-known-availability cache
	availOK    bool
	availUntil time.Time
}

// NewConnectionSupervisor creates a supervisor for the given Redis options.
// cfg fields left at zero values are replaced by defaults.
func NewConnectionSupervisor(opts *redis.Options, cfg SupervisorConfig, logger Logger, metrics Metrics) (*ConnectionSupervisor, error) {
	def := DefaultSupervisorConfig()
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.BackoffCeiling == 0 {
		cfg.BackoffCeiling = def.BackoffCeiling
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = def.BreakerMaxFailures
	}
	if cfg.BreakerRecovery == 0 {
		cfg.BreakerRecovery = def.BreakerRecovery
	}
	if cfg.BreakerSuccesses == 0 {
		cfg.BreakerSuccesses = def.BreakerSuccesses
	}
	if cfg.AvailabilityTTL == 0 {
		cfg.AvailabilityTTL = def.AvailabilityTTL
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.ProbesPerSecond == 0 {
		cfg.ProbesPerSecond = def.ProbesPerSecond
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	cs := &ConnectionSupervisor{
		opts:    opts,
		cfg:     cfg,
		probes:  rate.NewLimiter(rate.Limit(cfg.ProbesPerSecond), 1),
		logger:  logger,
		metrics: metrics,
	}
	cs.breaker = NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerRecovery, cfg.BreakerSuccesses).
		WithStateChangeCallback(func(from, to BreakerState) {
			logger.Warn("circuit breaker state change", "from", string(from), "to", string(to))
			if to == BreakerOpen {
				metrics.Increment(MetricBreakerOpen)
			} else if to == BreakerClosed {
				metrics.Increment(MetricBreakerClosed)
			}
		})
	return cs, nil
}

// Breaker exposes the circuit breaker (for health endpoints and tests)
func (cs *ConnectionSupervisor) Breaker() *CircuitBreaker {
	return cs.breaker
}

// GetClient returns a ready-to-use Redis client.
// Fails with ErrUnavailable if the circuit breaker is open, or
// ErrConnectionFailed if dialing/pinging the backend fails.
func (cs *ConnectionSupervisor) GetClient(ctx context.Context) (*redis.Client, error) {
	if !cs.breaker.Allow() {
		return nil, WithContext(ErrUnavailable, map[string]interface{}{
			"reason": "circuit breaker is open",
		})
	}

	client, err := cs.connect(ctx)
	if err != nil {
		cs.breaker.RecordFailure()
		cs.markAvailability(false)
		return nil, WithContext(ErrConnectionFailed, map[string]interface{}{
			"addr":  cs.opts.Addr,
			"error": err.Error(),
		})
	}
	return client, nil
}

// connect returns the existing client or dials and pings a new one.
func (cs *ConnectionSupervisor) connect(ctx context.Context) (*redis.Client, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.client != nil {
		return cs.client, nil
	}

	client := redis.NewClient(cs.opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	cs.client = client
	cs.logger.Info("connected to backend", "addr", cs.opts.Addr)
	return client, nil
}

// Reconnect drops the current client so the next call dials fresh
func (cs *ConnectionSupervisor) Reconnect() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.client != nil {
		cs.client.Close()
		cs.client = nil
		cs.metrics.Increment(MetricReconnects)
	}
}

// Close releases the pooled connection and resets the breaker
func (cs *ConnectionSupervisor) Close() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var err error
	if cs.client != nil {
		err = cs.client.Close()
		cs.client = nil
	}
	cs.breaker.Reset()
	return err
}

// QuickProbe is a best-effort sub-second liveness check. It never returns an
// error; callers use it as a cheap is-it-worth-trying signal.
//
// Results are cached for the configured availability TTL, and probes beyond
// the configured rate reuse the last known answer.
func (cs *ConnectionSupervisor) QuickProbe(ctx context.Context) bool {
	cs.mu.Lock()
	if time.Now().Before(cs.availUntil) {
		ok := cs.availOK
		cs.mu.Unlock()
		return ok
	}
	cs.mu.Unlock()

	if !cs.probes.Allow() {
		cs.mu.Lock()
		ok := cs.availOK
		cs.mu.Unlock()
		return ok
	}

	probeCtx, cancel := context.WithTimeout(ctx, cs.cfg.ProbeTimeout)
	defer cancel()

	client, err := cs.connect(probeCtx)
	if err == nil {
		err = client.Ping(probeCtx).Err()
	}

	if err != nil {
		cs.metrics.Increment(MetricProbeFailure)
		cs.markAvailability(false)
		return false
	}
	cs.metrics.Increment(MetricProbeSuccess)
	cs.markAvailability(true)
	return true
}

func (cs *ConnectionSupervisor) markAvailability(ok bool) {
	cs.mu.Lock()
	cs.availOK = ok
	cs.availUntil = time.Now().Add(cs.cfg.AvailabilityTTL)
	cs.mu.Unlock()
}

// RunWithRetry executes op, retrying connection/timeout-class errors with
// capped exponential backoff and attempting one reconnect between retries.
// Non-connection errors propagate immediately and are never retried.
// Exhausting attempts surfaces ErrConnectionFailed carrying the last error.
func (cs *ConnectionSupervisor) RunWithRetry(ctx context.Context, op func(ctx context.Context, client *redis.Client) error) error {
	var lastErr error
	backoff := cs.cfg.InitialBackoff

	for attempt := 0; attempt < cs.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			cs.metrics.Increment(MetricRetryAttempts)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(float64(backoff) * cs.cfg.BackoffMultiplier)
			if backoff > cs.cfg.BackoffCeiling {
				backoff = cs.cfg.BackoffCeiling
			}
		}

		if !cs.breaker.Allow() {
			return WithContext(ErrUnavailable, map[string]interface{}{
				"reason": "circuit breaker is open",
			})
		}

		client, err := cs.connect(ctx)
		if err != nil {
			cs.breaker.RecordFailure()
			cs.markAvailability(false)
			lastErr = err
			continue
		}

		err = op(ctx, client)
		if err == nil {
			cs.breaker.RecordSuccess()
			cs.markAvailability(true)
			return nil
		}
		if !isConnectionError(err) {
			// Data errors are the caller's problem, not the connection's
			cs.breaker.RecordSuccess()
			return err
		}

		cs.breaker.RecordFailure()
		cs.markAvailability(false)
		lastErr = err
		cs.logger.Warn("backend call failed, retrying",
			"attempt", attempt+1,
			"max_attempts", cs.cfg.MaxAttempts,
			"error", err,
		)
		cs.Reconnect()
	}

	return WithContext(ErrConnectionFailed, map[string]interface{}{
		"attempts":   cs.cfg.MaxAttempts,
		"last_error": lastErr.Error(),
	})
}

// WithBatch runs fn with a pipeline scoped to one backend round trip.
// If atomic is true the pipeline is a MULTI/EXEC transaction. On a nil
// return from fn the batch is executed; on error it is discarded and the
// error propagates. The pooled connection is released on all exit paths.
//
// fn receives the plain client as well, for reads that must happen before
// the queued writes (existence probes, cache-key scans).
func (cs *ConnectionSupervisor) WithBatch(ctx context.Context, atomic bool, fn func(ctx context.Context, client *redis.Client, pipe redis.Pipeliner) error) error {
	return cs.RunWithRetry(ctx, func(ctx context.Context, client *redis.Client) error {
		var pipe redis.Pipeliner
		if atomic {
			pipe = client.TxPipeline()
		} else {
			pipe = client.Pipeline()
		}

		if err := fn(ctx, client, pipe); err != nil {
			pipe.Discard()
			return err
		}

		_, err := pipe.Exec(ctx)
		return err
	})
}

// isConnectionError reports whether err is a connection/timeout-class error
// worth retrying. Data errors (wrong type, parse failures, redis.Nil) are not.
func isConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
