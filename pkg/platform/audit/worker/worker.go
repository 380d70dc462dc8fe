package worker

import (
	"context"
	"log/slog"
	"time"

	audit "nftform/pkg/platform/audit"
)

// drainTimeout bounds how long buffered events may take to flush on shutdown.
const drainTimeout = 5 * time.Second

// Worker consumes audit events from a channel and persists them. A failing
// sink is logged and skipped so audit trouble never stops the service.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run appends events until inbox is closed. On ctx cancellation it flushes
// whatever is already buffered under a short deadline, then returns.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.append(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event audit.Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
