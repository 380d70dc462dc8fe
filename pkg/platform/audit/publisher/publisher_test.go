package publisher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "nftform/pkg/platform/audit"
	"nftform/pkg/platform/audit/store/memory"
	"nftform/pkg/requestcontext"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_SyncModeEnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-9")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Firefox on Linux")
	ctx = requestcontext.WithTime(ctx, now)

	err := pub.Emit(ctx, audit.Event{
		Action:  string(audit.EventRecoveryFailed),
		Subject: audit.HashSubject("a@x.com"),
	})
	require.NoError(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, audit.CategorySecurity, got.Category)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, "req-9", got.RequestID)
	assert.Equal(t, "203.0.113.7", got.ClientIP)
	assert.Equal(t, "Firefox on Linux", got.Device)
}

func TestPublisher_AsyncModeEnqueues(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(2), WithLogger(quietLogger()))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "a"}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "b"}))

	err := pub.Emit(context.Background(), audit.Event{Action: "c"})
	assert.ErrorIs(t, err, ErrBufferFull)

	events, _ := store.ListAll(context.Background())
	assert.Empty(t, events, "async mode must not write inline")
	assert.Len(t, pub.Inbox(), 2)
}

func TestPublisher_CloseRejectsFurtherEvents(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(4))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "a"}))
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	assert.ErrorIs(t, pub.Emit(context.Background(), audit.Event{Action: "b"}), ErrClosed)

	var drained []audit.Event
	for e := range pub.Inbox() {
		drained = append(drained, e)
	}
	require.Len(t, drained, 1)
	assert.Equal(t, "a", drained[0].Action)
}

func TestHashSubjectIsStable(t *testing.T) {
	assert.Equal(t, audit.HashSubject("a@x.com"), audit.HashSubject("a@x.com"))
	assert.NotEqual(t, audit.HashSubject("a@x.com"), audit.HashSubject("b@x.com"))
	assert.Len(t, audit.HashSubject("a@x.com"), 64)
}
