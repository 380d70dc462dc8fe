// Package guarded wraps an audit store with a circuit breaker so a broker
// outage degrades to a fallback store instead of stalling the audit worker.
package guarded

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "nftform/pkg/platform/audit"
)

const (
	defaultThreshold = 5
	defaultCooldown  = 30 * time.Second
)

// Store forwards events to primary while it is healthy. After threshold
// consecutive failures the circuit opens and events go to fallback until the
// cooldown expires, at which point one event probes primary again.
type Store struct {
	primary  audit.Store
	fallback audit.Store
	logger   *slog.Logger
	now      func() time.Time

	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	open      bool
}

type Option func(*Store)

func WithThreshold(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.threshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(primary, fallback audit.Store, opts ...Option) *Store {
	s := &Store{
		primary:   primary,
		fallback:  fallback,
		logger:    slog.Default(),
		now:       time.Now,
		threshold: defaultThreshold,
		cooldown:  defaultCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append never loses an event to a primary failure: the event is retried
// against the fallback store in the same call.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if !s.allow() {
		return s.fallback.Append(ctx, event)
	}
	if err := s.primary.Append(ctx, event); err != nil {
		s.recordFailure(err)
		return s.fallback.Append(ctx, event)
	}
	s.recordSuccess()
	return nil
}

// IsOpen reports whether events are currently routed to the fallback.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return true
	}
	// half-open: let a probe through and re-arm the cooldown in case it fails
	if s.now().After(s.openUntil) {
		s.openUntil = s.now().Add(s.cooldown)
		return true
	}
	return false
}

func (s *Store) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.logger.Info("audit sink recovered")
	}
	s.failures = 0
	s.open = false
}

func (s *Store) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if s.failures < s.threshold {
		s.logger.Warn("audit sink append failed", "error", err, "consecutive_failures", s.failures)
		return
	}
	if !s.open {
		s.logger.Error("audit sink circuit opened", "error", err, "cooldown", s.cooldown)
	}
	s.open = true
	s.openUntil = s.now().Add(s.cooldown)
}
