package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SourceGuardConfig holds the resilience policy applied to every upstream
// source. Backoff and threshold values are tuned parameters, not derived
// invariants.
type SourceGuardConfig struct {
	MaxConcurrent     int           `json:"max_concurrent"`
	MaxRetries        int           `json:"max_retries"`
	BackoffBase       time.Duration `json:"backoff_base"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	BackoffCap        time.Duration `json:"backoff_cap"`
	JitterFraction    float64       `json:"jitter_fraction"`
	FailureThreshold  int           `json:"failure_threshold"`
	OpenTimeout       time.Duration `json:"open_timeout"`
}

// DefaultSourceGuardConfig returns the standard policy: two in-flight
// calls per source, three retries with 1s/x2/30s backoff and 20% jitter,
// breaker opens after three failures and cools down for 60s.
func DefaultSourceGuardConfig() SourceGuardConfig {
	return SourceGuardConfig{
		MaxConcurrent:     2,
		MaxRetries:        3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2,
		BackoffCap:        30 * time.Second,
		JitterFraction:    0.2,
		FailureThreshold:  3,
		OpenTimeout:       60 * time.Second,
	}
}

type sourceState struct {
	breaker *CircuitBreaker
	slots   chan struct{}
}

// SourceGuard protects calls to flaky upstream data sources with a
// per-source concurrency gate, a classified retry wrapper and a circuit
// breaker. All upstream fetches go through Do.
type SourceGuard struct {
	config SourceGuardConfig
	logger *logrus.Logger

	mu      sync.Mutex
	sources map[string]*sourceState

	// sleep is swapped out by tests so retries do not wall-clock wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSourceGuard creates a guard with defaults applied for any zero
// config field.
func NewSourceGuard(config SourceGuardConfig, logger *logrus.Logger) *SourceGuard {
	def := DefaultSourceGuardConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = def.BackoffBase
	}
	if config.BackoffMultiplier <= 1 {
		config.BackoffMultiplier = def.BackoffMultiplier
	}
	if config.BackoffCap <= 0 {
		config.BackoffCap = def.BackoffCap
	}
	if config.JitterFraction <= 0 {
		config.JitterFraction = def.JitterFraction
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}

	return &SourceGuard{
		config:  config,
		logger:  logger,
		sources: make(map[string]*sourceState),
		sleep:   sleepContext,
	}
}

// Do executes fn under the guard for the named source: fast-fails while
// the breaker is open, waits for a concurrency slot, retries retryable
// failures with capped exponential backoff and feeds every failure into
// the breaker. A context timeout counts as a failure, not as a silent
// omission.
func (g *SourceGuard) Do(ctx context.Context, source string, fn func(context.Context) error) error {
	st := g.state(source)

	// Check before waiting for a slot so open-circuit callers fail fast
	// without consuming capacity.
	if err := st.breaker.Allow(); err != nil {
		return err
	}

	select {
	case st.slots <- struct{}{}:
	case <-ctx.Done():
		st.breaker.RecordFailure(ClassOther)
		return ctx.Err()
	}
	defer func() { <-st.slots }()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := st.breaker.Allow(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			st.breaker.RecordSuccess()
			return nil
		}
		lastErr = err

		class := ClassifyFailure(err)
		st.breaker.RecordFailure(class)

		g.logger.WithFields(logrus.Fields{
			"source":  source,
			"attempt": attempt,
			"class":   string(class),
			"error":   err.Error(),
		}).Warn("Upstream call failed")

		if !class.Retryable() {
			return err
		}
		if attempt >= g.config.MaxRetries {
			return lastErr
		}

		if err := g.sleep(ctx, g.backoffDelay(attempt)); err != nil {
			st.breaker.RecordFailure(ClassOther)
			return err
		}
	}
}

// BreakerSnapshot returns the breaker state for a source, creating its
// state lazily like any other access.
func (g *SourceGuard) BreakerSnapshot(source string) CircuitBreakerSnapshot {
	return g.state(source).breaker.Snapshot()
}

// Snapshots returns breaker state for every source seen so far.
func (g *SourceGuard) Snapshots() []CircuitBreakerSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]CircuitBreakerSnapshot, 0, len(g.sources))
	for _, st := range g.sources {
		out = append(out, st.breaker.Snapshot())
	}
	return out
}

func (g *SourceGuard) state(source string) *sourceState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if st, ok := g.sources[source]; ok {
		return st
	}

	st := &sourceState{
		breaker: NewCircuitBreaker(source, CircuitBreakerConfig{
			FailureThreshold: g.config.FailureThreshold,
			OpenTimeout:      g.config.OpenTimeout,
		}, g.logger),
		slots: make(chan struct{}, g.config.MaxConcurrent),
	}
	g.sources[source] = st
	return st
}

// backoffDelay computes the capped exponential delay for an attempt with
// the configured jitter applied.
func (g *SourceGuard) backoffDelay(attempt int) time.Duration {
	delay := float64(g.config.BackoffBase)
	for i := 0; i < attempt; i++ {
		delay *= g.config.BackoffMultiplier
		if delay >= float64(g.config.BackoffCap) {
			delay = float64(g.config.BackoffCap)
			break
		}
	}

	jitter := 1 + g.config.JitterFraction*(2*rand.Float64()-1)
	jittered := time.Duration(delay * jitter)
	if jittered > g.config.BackoffCap {
		jittered = g.config.BackoffCap
	}
	return jittered
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
