package repository

import (
	"context"
	"fmt"

	"MarketSignal/internal/domain/models"
	pkgkafka "MarketSignal/pkg/kafka"
)

// KafkaSignalPublisher writes signal events keyed by symbol so a symbol's
// events stay ordered within one partition.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, ev *models.SignalEvent) error {
	if ev == nil || ev.Symbol == "" {
		return fmt.Errorf("publish signal: empty event")
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish signal %s: %w", ev.Symbol, err)
	}
	return nil
}

func (p *KafkaSignalPublisher) Close() error { return p.producer.Close() }

// NopPublisher drops every event. Used when kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.SignalEvent) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
