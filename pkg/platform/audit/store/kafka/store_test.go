package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "nftform/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func TestAppendProducesJSONRecord(t *testing.T) {
	fake := &fakeProducer{}
	store := newWithProducer(fake, "nftform.audit")
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := store.Append(context.Background(), audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: ts,
		Action:    string(audit.EventRegistrationCreated),
		Subject:   "abc123",
		RequestID: "req-1",
	})
	require.NoError(t, err)

	require.Len(t, fake.records, 1)
	rec := fake.records[0]
	assert.Equal(t, "nftform.audit", rec.Topic)
	assert.Equal(t, []byte("abc123"), rec.Key)
	assert.Equal(t, ts, rec.Timestamp)
	assert.Contains(t, rec.Headers, kgo.RecordHeader{Key: "action", Value: []byte("registration_created")})

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, "req-1", decoded.RequestID)
	assert.Equal(t, audit.CategoryCompliance, decoded.Category)
}

func TestAppendSurfacesProduceError(t *testing.T) {
	fake := &fakeProducer{err: errors.New("broker unreachable")}
	store := newWithProducer(fake, "t")

	err := store.Append(context.Background(), audit.Event{Action: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unreachable")

	store.Close()
	assert.True(t, fake.closed)
}
