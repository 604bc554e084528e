package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
	pkgkafka "SessionOverlay/pkg/kafka"
)

// KafkaMarkersHandler consumes marker batches from the broker topic and hands
// them to the fan-out.
type KafkaMarkersHandler struct {
	topic   string
	next    domrepo.BatchDeliverer
	metrics domrepo.Metrics
}

func NewKafkaMarkersHandler(topic string, next domrepo.BatchDeliverer, metrics domrepo.Metrics) *KafkaMarkersHandler {
	return &KafkaMarkersHandler{topic: topic, next: next, metrics: metrics}
}

func (h *KafkaMarkersHandler) Topic() string { return h.topic }

func (h *KafkaMarkersHandler) Handle(ctx context.Context, b []byte) error {
	var batch models.MarkerBatch
	if err := json.Unmarshal(b, &batch); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode marker batch: %w", err)
	}
	if batch.Symbol == "" {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode marker batch: symbol missing")
	}
	if !batch.ReceivedAt.IsZero() {
		h.metrics.RecordLatency("broker_e2e_seconds", time.Since(batch.ReceivedAt).Seconds())
	}
	if err := h.next.Deliver(ctx, batch); err != nil {
		h.metrics.RecordError("consumer_deliver")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaMarkersHandler)(nil)
