package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "nftform/pkg/platform/audit"
)

func TestAppendWritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	sink := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Append(context.Background(), audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Action:    string(audit.EventRecoveryFailed),
		Subject:   audit.HashSubject("a@x.com"),
		Decision:  "denied",
		Reason:    "no_match",
		RequestID: "req-1",
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "audit event", line["msg"])
	assert.Equal(t, "audit", line["stream"])
	assert.Equal(t, "security", line["category"])
	assert.Equal(t, "recovery_failed", line["action"])
	assert.Equal(t, "no_match", line["reason"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.NotContains(t, buf.String(), "a@x.com")
}
