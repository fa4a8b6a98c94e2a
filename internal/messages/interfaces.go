package messages

import "context"

// Repository is the message store.
type Repository interface {
	// Insert stores msg unless its message_id exists already, reporting
	// OutcomeCreated or OutcomeDuplicate. Existing rows are never modified.
	Insert(ctx context.Context, msg Message) (Outcome, error)
	Query(ctx context.Context, filter Filter, limit, offset int) (QueryResult, error)
	Stats(ctx context.Context) (Stats, error)
	// Ping succeeds once the messages table exists.
	Ping(ctx context.Context) error
}

// EventPublisher announces newly created messages to downstream consumers.
type EventPublisher interface {
	PublishCreated(ctx context.Context, msg Message) error
}
