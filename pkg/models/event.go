package models

import (
	"fmt"
	"time"
)

// EventEnvelope is the broker record emitted after a message is stored.
type EventEnvelope struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	RequestID string `json:"request_id,omitempty"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateEventEnvelope(env *EventEnvelope) error {
	if env == nil {
		return &ValidationError{Field: "envelope", Message: "event envelope cannot be nil"}
	}
	if env.ID == "" {
		return &ValidationError{Field: "id", Message: "event ID is required"}
	}
	if env.EventType == "" {
		return &ValidationError{Field: "event_type", Message: "event type is required"}
	}
	if env.Source == "" {
		return &ValidationError{Field: "source", Message: "event source is required"}
	}
	if env.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "event timestamp is required"}
	}
	if env.Payload == nil {
		return &ValidationError{Field: "payload", Message: "event payload cannot be nil"}
	}
	return nil
}
