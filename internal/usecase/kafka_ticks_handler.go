package usecase

import (
	"context"
	"errors"
	"time"

	"MT5Stream/internal/domain/models"
	"MT5Stream/pkg/kafka"
	"MT5Stream/pkg/logger"
)

// KafkaTicksHandler feeds ticks consumed from Kafka into the broadcaster.
// A message body is treated exactly like a raw-text HTTP submission.
type KafkaTicksHandler struct {
	topic string
	bc    *Broadcaster
	log   *logger.Logger
}

func NewKafkaTicksHandler(topic string, bc *Broadcaster, log *logger.Logger) *KafkaTicksHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaTicksHandler{topic: topic, bc: bc, log: log}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle accepts one message. Rejected ticks are logged and counted, never
// retried.
func (h *KafkaTicksHandler) Handle(_ context.Context, b []byte) error {
	start := time.Now()
	in, err := NormalizeTick(models.RawTextPayload(string(b)))
	if err != nil {
		var rej Rejection
		if errors.As(err, &rej) {
			h.bc.Reject(string(rej))
		}
		h.log.Warn("kafka tick rejected",
			logger.String("topic", h.topic),
			logger.String("reason", err.Error()),
		)
		return nil
	}

	if _, err := h.bc.Accept(in); err != nil {
		return err
	}
	h.bc.metrics.RecordLatency("kafka_ingest", time.Since(start).Seconds())
	return nil
}

var _ kafka.MessageHandler = (*KafkaTicksHandler)(nil)
