package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "clearance/pkg/platform/audit"
)

// DefaultTopic carries audit entries that could not reach the primary store.
const DefaultTopic = "clearance.audit.deadletter"

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink publishes dead-lettered audit entries to a Kafka topic, keyed by
// entry id so a replay can deduplicate.
type Sink struct {
	producer Producer
	topic    string
}

// New creates a Kafka dead-letter sink. An empty topic uses DefaultTopic.
func New(producer Producer, topic string) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Sink{producer: producer, topic: topic}
}

// Publish implements audit.DeadLetterSink.
func (s *Sink) Publish(ctx context.Context, p audit.Pending) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(p.Entry.ID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(p.Entry.Action)},
			{Key: "entity_type", Value: []byte(p.Entry.EntityType)},
		},
	}
	if err := s.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce dead-letter entry: %w", err)
	}
	return nil
}
