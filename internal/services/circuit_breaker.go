package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned without attempting any network I/O while a
// source's breaker is open. Callers can distinguish "the provider is down"
// from "we chose not to ask".
var ErrCircuitOpen = errors.New("circuit breaker is open")

// FailureClass buckets upstream failures for retry decisions.
type FailureClass string

const (
	ClassRateLimit   FailureClass = "rate_limit"
	ClassBlocked     FailureClass = "blocked"
	ClassServerError FailureClass = "http_5xx"
	ClassOther       FailureClass = "other"
)

// FetchError is a classified upstream-source failure.
type FetchError struct {
	Source string
	Class  FailureClass
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Class, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps an upstream failure with its classification.
func NewFetchError(source string, class FailureClass, err error) *FetchError {
	return &FetchError{Source: source, Class: class, Err: err}
}

// ClassifyFailure returns the failure class of an error, inspecting an
// explicit FetchError first and falling back to message heuristics for
// adapters that surface raw provider errors.
func ClassifyFailure(err error) FailureClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return ClassRateLimit
	case strings.Contains(msg, "403"), strings.Contains(msg, "forbidden"), strings.Contains(msg, "blocked"):
		return ClassBlocked
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"),
		strings.Contains(msg, "504"), strings.Contains(msg, "server error"):
		return ClassServerError
	default:
		return ClassOther
	}
}

// Retryable reports whether a failure class may be retried. Retrying
// against a provider that says "stop" is itself a failure mode.
func (c FailureClass) Retryable() bool {
	return c != ClassRateLimit && c != ClassBlocked
}

// CircuitBreakerConfig holds the breaker policy for one source.
type CircuitBreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	OpenTimeout      time.Duration `json:"open_timeout"`
}

// CircuitBreakerSnapshot is a point-in-time view of a breaker for
// observability endpoints.
type CircuitBreakerSnapshot struct {
	Source        string    `json:"source"`
	Failures      int       `json:"failures"`
	IsOpen        bool      `json:"is_open"`
	LastFailureAt time.Time `json:"last_failure_at"`
}

// CircuitBreaker guards a single upstream source. Created lazily per
// source; state is mutated only under the mutex so concurrent fetches
// cannot interleave read-modify-write sequences.
type CircuitBreaker struct {
	source string
	config CircuitBreakerConfig
	logger *logrus.Logger

	mu            sync.Mutex
	failures      int
	lastFailureAt time.Time
	open          bool

	// now is swapped out by tests to drive the timeout window.
	now func() time.Time
}

// NewCircuitBreaker creates a breaker with defaults applied.
func NewCircuitBreaker(source string, config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}

	return &CircuitBreaker{
		source: source,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. An open breaker resets to
// closed (half-open retry) once the timeout window has elapsed since the
// last failure with no further failures recorded.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return nil
	}

	if cb.now().Sub(cb.lastFailureAt) > cb.config.OpenTimeout {
		cb.open = false
		cb.failures = 0
		cb.logger.WithFields(logrus.Fields{
			"source": cb.source,
		}).Info("Circuit breaker timeout elapsed, allowing half-open retry")
		return nil
	}

	cb.logger.WithFields(logrus.Fields{
		"source":   cb.source,
		"failures": cb.failures,
	}).Warn("Circuit breaker open, rejecting call")
	return ErrCircuitOpen
}

// RecordSuccess closes the breaker and zeroes the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.open = false
}

// RecordFailure increments the failure counter and opens the breaker at
// the configured threshold.
func (cb *CircuitBreaker) RecordFailure(class FailureClass) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureAt = cb.now()

	if !cb.open && cb.failures >= cb.config.FailureThreshold {
		cb.open = true
		cb.logger.WithFields(logrus.Fields{
			"source":   cb.source,
			"failures": cb.failures,
			"class":    string(class),
		}).Warn("Circuit breaker opened")
	}
}

// IsOpen reports whether the breaker currently rejects calls.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// Snapshot returns the current breaker state.
func (cb *CircuitBreaker) Snapshot() CircuitBreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerSnapshot{
		Source:        cb.source,
		Failures:      cb.failures,
		IsOpen:        cb.open,
		LastFailureAt: cb.lastFailureAt,
	}
}
