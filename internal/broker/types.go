package broker

import (
	"context"

	"lyftr/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, event models.EventEnvelope) error
	Close() error
}
