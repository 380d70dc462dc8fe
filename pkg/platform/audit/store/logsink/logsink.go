// Package logsink writes audit events as structured log lines. It is the
// sink used when no Kafka brokers are configured.
package logsink

import (
	"context"
	"log/slog"

	audit "nftform/pkg/platform/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger.With("stream", "audit")}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit event",
		slog.String("category", string(event.Category)),
		slog.String("action", event.Action),
		slog.String("subject", event.Subject),
		slog.String("decision", event.Decision),
		slog.String("reason", event.Reason),
		slog.String("request_id", event.RequestID),
		slog.String("client_ip", event.ClientIP),
		slog.String("device", event.Device),
		slog.Time("timestamp", event.Timestamp),
	)
	return nil
}
