package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaconsumer "clearance/internal/platform/kafka/consumer"
	id "clearance/pkg/domain"
	audit "clearance/pkg/platform/audit"
	"clearance/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Entry) error { return errors.New("db down") }
func (failingStore) ListByEntity(context.Context, audit.EntityType, string) ([]audit.Entry, error) {
	return nil, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deadLetterMessage(t *testing.T, entry audit.Entry) *kafkaconsumer.Message {
	t.Helper()
	raw, err := json.Marshal(audit.Pending{Entry: entry, Attempts: 5, LastError: "db down"})
	require.NoError(t, err)
	return &kafkaconsumer.Message{
		Topic: "clearance.audit.deadletter",
		Key:   []byte(entry.ID.String()),
		Value: raw,
	}
}

func sampleEntry() audit.Entry {
	return audit.Entry{
		ID:          id.NewAuditEntryID(),
		Action:      audit.ActionOverrideCreated,
		EntityType:  audit.EntityComplianceOverride,
		EntityID:    uuid.NewString(),
		AfterValues: map[string]any{"reason": "cover"},
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestReplayHandler_AppendsEntryOnce(t *testing.T) {
	store := memory.NewInMemoryStore()
	h := NewReplayHandler(store, quietLogger())
	entry := sampleEntry()
	msg := deadLetterMessage(t, entry)

	require.NoError(t, h.Handle(context.Background(), msg))
	require.NoError(t, h.Handle(context.Background(), msg))

	got, err := store.ListByEntity(context.Background(), audit.EntityComplianceOverride, entry.EntityID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry.ID, got[0].ID)
	assert.Equal(t, "cover", got[0].AfterValues["reason"])

	replayed, skipped := h.Stats()
	assert.Equal(t, 2, replayed)
	assert.Equal(t, 0, skipped)
}

func TestReplayHandler_SkipsMalformedRecords(t *testing.T) {
	store := memory.NewInMemoryStore()
	h := NewReplayHandler(store, quietLogger())
	entry := sampleEntry()

	tests := []struct {
		name string
		msg  *kafkaconsumer.Message
	}{
		{"bad key", &kafkaconsumer.Message{Key: []byte("nope"), Value: []byte("{}")}},
		{"bad payload", &kafkaconsumer.Message{Key: []byte(entry.ID.String()), Value: []byte("{")}},
		{"key mismatch", func() *kafkaconsumer.Message {
			m := deadLetterMessage(t, entry)
			m.Key = []byte(uuid.NewString())
			return m
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, h.Handle(context.Background(), tt.msg))
		})
	}

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	_, skipped := h.Stats()
	assert.Equal(t, 3, skipped)
}

func TestReplayHandler_StoreErrorIsReturned(t *testing.T) {
	h := NewReplayHandler(failingStore{}, quietLogger())
	err := h.Handle(context.Background(), deadLetterMessage(t, sampleEntry()))
	assert.Error(t, err)
}

func TestRouter_DispatchesByTopic(t *testing.T) {
	var handled []string
	r := NewRouter(quietLogger())
	r.Register("a", kafkaconsumer.HandlerFunc(func(_ context.Context, m *kafkaconsumer.Message) error {
		handled = append(handled, string(m.Key))
		return nil
	}))

	require.NoError(t, r.Handle(context.Background(), &kafkaconsumer.Message{Topic: "a", Key: []byte("1")}))
	require.NoError(t, r.Handle(context.Background(), &kafkaconsumer.Message{Topic: "b", Key: []byte("2")}))

	assert.Equal(t, []string{"1"}, handled)
	assert.Equal(t, []string{"a"}, r.Topics())
}
