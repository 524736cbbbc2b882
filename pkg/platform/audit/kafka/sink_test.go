package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "unitedhelp/pkg/domain"
	audit "unitedhelp/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestSink_Append(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewSink(producer, "audit")
	userID := id.UserID(uuid.New())
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := sink.Append(context.Background(), audit.Event{
		Category:  audit.CategoryLifecycle,
		Timestamp: ts,
		UserID:    userID,
		Subject:   "event-1",
		Action:    string(audit.EventEventFinished),
	})
	require.NoError(t, err)
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "audit", rec.Topic)
	assert.Equal(t, userID.String(), string(rec.Key))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, "event_finished", body["action"])
	assert.Equal(t, "lifecycle", body["category"])
}

func TestSink_AppendPropagatesProduceError(t *testing.T) {
	sink := NewSink(&fakeProducer{err: assert.AnError}, "audit")
	err := sink.Append(context.Background(), audit.Event{Action: "x"})
	require.ErrorIs(t, err, assert.AnError)
}
