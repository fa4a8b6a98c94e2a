package messages

// Message is the persisted record. Records are immutable once stored.
type Message struct {
	MessageID  string
	FromMSISDN string
	ToMSISDN   string
	TS         string
	Text       *string
	CreatedAt  string
}

// Outcome classifies a single webhook request.
type Outcome int

const (
	OutcomeInvalidSignature Outcome = iota
	OutcomeValidationError
	OutcomeCreated
	OutcomeDuplicate
	OutcomeStorageError
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalidSignature:
		return "invalid_signature"
	case OutcomeValidationError:
		return "validation_error"
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStorageError:
		return "storage_error"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Accepted reports whether the sender gets a success acknowledgment.
func (o Outcome) Accepted() bool {
	return o == OutcomeCreated || o == OutcomeDuplicate
}

// Filter fields are optional; set fields are combined with AND.
type Filter struct {
	From  *string
	Since *string
	Query *string
}

type QueryResult struct {
	Messages []Message
	Total    int
}

type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *string       `json:"first_message_ts"`
	LastMessageTS     *string       `json:"last_message_ts"`
}

// WebhookPayload is the validated inbound body.
type WebhookPayload struct {
	MessageID string  `json:"message_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	TS        string  `json:"ts"`
	Text      *string `json:"text,omitempty"`
}

type IngestRequest struct {
	Body             []byte
	Signature        string
	SignaturePresent bool
	// BodyIncomplete is set when the body was cut off at the size limit or
	// could not be read in full. Such a body cannot be authenticated.
	BodyIncomplete bool
}

type IngestResult struct {
	Outcome    Outcome
	MessageID  string
	Violations []Violation
}

type MessageResponse struct {
	MessageID string  `json:"message_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	TS        string  `json:"ts"`
	Text      *string `json:"text"`
}

type MessageListResponse struct {
	Data   []MessageResponse `json:"data"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type AckResponse struct {
	Status string `json:"status"`
}

func NewMessageResponse(m Message) MessageResponse {
	return MessageResponse{
		MessageID: m.MessageID,
		From:      m.FromMSISDN,
		To:        m.ToMSISDN,
		TS:        m.TS,
		Text:      m.Text,
	}
}

func NewMessageListResponse(result QueryResult, limit, offset int) MessageListResponse {
	data := make([]MessageResponse, 0, len(result.Messages))
	for _, m := range result.Messages {
		data = append(data, NewMessageResponse(m))
	}
	return MessageListResponse{
		Data:   data,
		Total:  result.Total,
		Limit:  limit,
		Offset: offset,
	}
}
