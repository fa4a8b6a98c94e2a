package messages

import (
	"context"
	"time"

	"lyftr/internal/broker"
	"lyftr/internal/constants"
	"lyftr/internal/logger"
	"lyftr/pkg/logging"
	"lyftr/pkg/metrics"
	"lyftr/pkg/models"
	"lyftr/pkg/retry"
	"lyftr/pkg/tracing"
)

// BrokerEventPublisher emits message.created events through a broker producer.
type BrokerEventPublisher struct {
	producer broker.Producer
	topic    string
	policy   retry.Policy
	metrics  *metrics.Metrics
	logger   logger.Logger
}

func NewBrokerEventPublisher(producer broker.Producer, topic string, m *metrics.Metrics, log logger.Logger) *BrokerEventPublisher {
	return &BrokerEventPublisher{
		producer: producer,
		topic:    topic,
		policy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			MaxElapsedTime:  constants.KafkaWriteTimeout,
		},
		metrics: m,
		logger:  log,
	}
}

func buildCreatedEvent(ctx context.Context, msg Message) models.EventEnvelope {
	payload := map[string]interface{}{
		"message_id": msg.MessageID,
		"from":       msg.FromMSISDN,
		"to":         msg.ToMSISDN,
		"ts":         msg.TS,
		"created_at": msg.CreatedAt,
	}
	if msg.Text != nil {
		payload["text"] = *msg.Text
	}

	return *models.NewEventEnvelopeBuilder().
		WithID(msg.MessageID).
		WithEventType(constants.EventTypeMessageCreated).
		WithSource(constants.ServiceName).
		WithPayload(payload).
		WithRequestID(logging.GetRequestID(ctx)).
		Build()
}

func (p *BrokerEventPublisher) PublishCreated(ctx context.Context, msg Message) error {
	ctx, span := tracing.StartSpan(ctx, "messages.publish",
		tracing.AttrMessageID.String(msg.MessageID),
		tracing.AttrEventType.String(constants.EventTypeMessageCreated),
	)
	defer span.End()

	event := buildCreatedEvent(ctx, msg)

	err := retry.Retry(ctx, p.policy, func() error {
		return p.producer.Publish(ctx, p.topic, event)
	}, func(attempt int, err error, nextDelay time.Duration) {
		p.logger.WarnwCtx(ctx, "retrying event publish",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
			"topic", p.topic,
		)
	})
	if err != nil {
		span.RecordError(err)
		p.metrics.IncEventPublished("error")
		return err
	}

	p.metrics.IncEventPublished("success")
	return nil
}

var _ EventPublisher = (*BrokerEventPublisher)(nil)
