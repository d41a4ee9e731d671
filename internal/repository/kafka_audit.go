package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	pkgkafka "CoinPulse/pkg/kafka"
)

type messagePublisher interface {
	Publish(ctx context.Context, topic string, msg pkgkafka.Message) error
	Close() error
}

// KafkaAuditSink publishes outcome records to a topic keyed by asset. An ingest
// consumer moves them into the queryable store.
type KafkaAuditSink struct {
	producer messagePublisher
	topic    string
}

var _ domrepo.AuditSink = (*KafkaAuditSink)(nil)

func NewKafkaAuditSink(producer *pkgkafka.Producer, topic string) *KafkaAuditSink {
	return &KafkaAuditSink{producer: producer, topic: topic}
}

func (s *KafkaAuditSink) Append(ctx context.Context, rec models.OutcomeRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := s.producer.Publish(ctx, s.topic, pkgkafka.Message{Key: []byte(rec.Asset), Value: b}); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

func (s *KafkaAuditSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
