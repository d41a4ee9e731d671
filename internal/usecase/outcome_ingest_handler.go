package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

// OutcomeIngestHandler consumes outcome records published to Kafka and appends
// them to the queryable audit store.
type OutcomeIngestHandler struct {
	topic   string
	sink    domrepo.AuditSink
	metrics domrepo.Metrics
}

func NewOutcomeIngestHandler(topic string, sink domrepo.AuditSink, metrics domrepo.Metrics) *OutcomeIngestHandler {
	return &OutcomeIngestHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *OutcomeIngestHandler) Topic() string { return h.topic }

func (h *OutcomeIngestHandler) Handle(ctx context.Context, b []byte) error {
	var rec models.OutcomeRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		// a malformed payload will never decode; do not retry it
		return nil
	}
	if rec.ID == "" || rec.Asset == "" {
		h.metrics.RecordError("ingest_invalid")
		return nil
	}
	if err := h.sink.Append(ctx, rec); err != nil {
		h.metrics.RecordError("ingest_store")
		return fmt.Errorf("ingest %s: %w", rec.ID, err)
	}
	return nil
}
