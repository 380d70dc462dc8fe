// Package publisher accepts audit events from request paths and hands them to
// a Store, either inline or through a bounded buffer drained by a worker.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	audit "nftform/pkg/platform/audit"
	"nftform/pkg/requestcontext"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
// The event is dropped; request handling never blocks on audit.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// Publisher stamps events with request metadata and forwards them.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	mu     sync.RWMutex
	inbox  chan audit.Event
	closed bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches Emit to a non-blocking send into a buffer of size n.
// Something must drain Inbox (see worker.Worker).
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan audit.Event, n)
		}
	}
}

// WithLogger sets a logger for dropped-event reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher. Without WithAsyncBuffer every Emit writes
// to store synchronously.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Emit fills in category, timestamp and request metadata from ctx when they
// are unset, then stores or enqueues the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit event dropped",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return ErrBufferFull
	}
}

// Inbox exposes the async buffer for a worker. Nil in synchronous mode.
func (p *Publisher) Inbox() <-chan audit.Event {
	if p.inbox == nil {
		return nil
	}
	return p.inbox
}

// Close stops accepting events and closes the buffer so the worker can drain
// what is left and exit. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.inbox != nil {
		close(p.inbox)
	}
	return nil
}
