package models

import "time"

type EventEnvelopeBuilder struct {
	envelope *EventEnvelope
}

func NewEventEnvelopeBuilder() *EventEnvelopeBuilder {
	return &EventEnvelopeBuilder{
		envelope: &EventEnvelope{
			Payload:  make(map[string]interface{}),
			Metadata: Metadata{},
		},
	}
}

func (b *EventEnvelopeBuilder) WithID(id string) *EventEnvelopeBuilder {
	b.envelope.ID = id
	return b
}

func (b *EventEnvelopeBuilder) WithEventType(eventType string) *EventEnvelopeBuilder {
	b.envelope.EventType = eventType
	return b
}

func (b *EventEnvelopeBuilder) WithSource(source string) *EventEnvelopeBuilder {
	b.envelope.Source = source
	return b
}

func (b *EventEnvelopeBuilder) WithTimestamp(timestamp time.Time) *EventEnvelopeBuilder {
	b.envelope.Timestamp = timestamp
	return b
}

func (b *EventEnvelopeBuilder) WithPayload(payload map[string]interface{}) *EventEnvelopeBuilder {
	b.envelope.Payload = payload
	return b
}

func (b *EventEnvelopeBuilder) WithRequestID(requestID string) *EventEnvelopeBuilder {
	b.envelope.Metadata.RequestID = requestID
	return b
}

func (b *EventEnvelopeBuilder) Build() *EventEnvelope {
	if b.envelope.Timestamp.IsZero() {
		b.envelope.Timestamp = time.Now().UTC()
	}
	return b.envelope
}
