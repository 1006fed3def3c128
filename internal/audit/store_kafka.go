package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"consentry/internal/platform/kafka/producer"
)

// Producer is the part of the Kafka producer the audit sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaStore publishes each event as JSON to a topic, keyed by subject so
// one subject's events stay ordered within a partition.
type KafkaStore struct {
	producer Producer
	topic    string
}

func NewKafkaStore(p Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
		Headers: map[string]string{
			"action":     string(event.Action),
			"request_id": event.RequestID,
		},
	})
}
