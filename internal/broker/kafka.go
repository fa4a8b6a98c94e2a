package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"lyftr/internal/config"
	"lyftr/internal/constants"
	"lyftr/internal/logger"
	"lyftr/pkg/logging"
	"lyftr/pkg/models"
	"lyftr/pkg/retry"
	"lyftr/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

// Publish keys records by event ID so every event for one message lands on
// the same partition.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, event models.EventEnvelope) error {
	if err := models.ValidateEventEnvelope(&event); err != nil {
		return retry.NewFatalError(err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
	}
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		headers = append(headers, kafka.Header{Key: "request_id", Value: []byte(requestID)})
	}
	headers = tracing.InjectTraceContext(ctx, headers)

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(event.ID),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	p.logger.DebugwCtx(ctx, "event published", "topic", topic, "event_type", event.EventType)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
