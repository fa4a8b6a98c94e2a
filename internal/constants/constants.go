package constants

import "time"

const (
	ServiceName = "webhook-service"
)

const (
	DefaultPort                = 8000
	DefaultReadTimeoutSeconds  = 10
	DefaultWriteTimeoutSeconds = 10
	ShutdownTimeout            = 5 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	SignatureHeader     = "X-Signature"
	RequestIDHeader     = "X-Request-ID"
	DefaultMaxBodyBytes = 1 << 20
)

const (
	SQLiteURLPrefix = "sqlite:///"
	SQLiteDSNParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

const (
	DefaultLimit  = 50
	MinLimit      = 1
	MaxLimit      = 100
	DefaultOffset = 0
	TopSenders    = 10
	MaxTextLength = 4096
)

// TimestampLayout is the only accepted ts shape. Fixed width keeps lexical
// order chronological in the store.
const TimestampLayout = "2006-01-02T15:04:05Z"

const (
	HealthCheckTimeout = 5 * time.Second
	StoreOpenTimeout   = 30 * time.Second
)

const (
	EventTypeMessageCreated = "message.created"
)
