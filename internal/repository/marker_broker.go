package repository

import (
	"context"
	"fmt"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"

	"github.com/segmentio/kafka-go"
)

var (
	_ domrepo.MarkerBroker = (*MemoryBroker)(nil)
	_ domrepo.MarkerBroker = (*KafkaBroker)(nil)
)

// MemoryBroker hands batches straight to the deliverer in the caller's goroutine.
type MemoryBroker struct {
	next domrepo.BatchDeliverer
}

func NewMemoryBroker(next domrepo.BatchDeliverer) *MemoryBroker {
	return &MemoryBroker{next: next}
}

func (b *MemoryBroker) Publish(ctx context.Context, batch models.MarkerBatch) error {
	return b.next.Deliver(ctx, batch)
}

func (b *MemoryBroker) Close() error { return nil }

// messageWriter is implemented by pkg/kafka.Producer.
type messageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error
	Close() error
}

// KafkaBroker publishes batches keyed by symbol, so one symbol always lands
// on the same partition and keeps its order.
type KafkaBroker struct {
	producer messageWriter
	topic    string
}

func NewKafkaBroker(producer messageWriter, topic string) *KafkaBroker {
	return &KafkaBroker{producer: producer, topic: topic}
}

func (b *KafkaBroker) Publish(ctx context.Context, batch models.MarkerBatch) error {
	var headers []kafka.Header
	if batch.ID != "" {
		headers = append(headers, kafka.Header{Key: "trace_id", Value: []byte(batch.ID)})
	}
	if err := b.producer.Publish(ctx, b.topic, []byte(batch.Symbol), batch, headers...); err != nil {
		return fmt.Errorf("publish batch %s: %w", batch.Symbol, err)
	}
	return nil
}

func (b *KafkaBroker) Close() error {
	return b.producer.Close()
}
