package messages

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"lyftr/internal/constants"
)

var msisdnPattern = regexp.MustCompile(`^\+\d+$`)

// Violation names one field that failed validation.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParsePayload decodes body and checks it against the message shape. It
// returns every violation found, not just the first.
func ParsePayload(body []byte) (WebhookPayload, []Violation) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return WebhookPayload{}, []Violation{{Field: "body", Message: "body must be a JSON object"}}
	}

	var (
		payload    WebhookPayload
		violations []Violation
	)

	requireString := func(field string) string {
		value, ok := raw[field]
		if !ok || value == nil {
			violations = append(violations, Violation{Field: field, Message: "field required"})
			return ""
		}
		s, ok := value.(string)
		if !ok {
			violations = append(violations, Violation{Field: field, Message: "must be a string"})
			return ""
		}
		return s
	}

	payload.MessageID = requireString("message_id")
	payload.From = requireString("from")
	payload.To = requireString("to")
	payload.TS = requireString("ts")

	if value, ok := raw["text"]; ok && value != nil {
		if s, ok := value.(string); ok {
			payload.Text = &s
		} else {
			violations = append(violations, Violation{Field: "text", Message: "must be a string"})
		}
	}

	if len(violations) > 0 {
		return WebhookPayload{}, violations
	}

	if violations = Validate(payload); len(violations) > 0 {
		return WebhookPayload{}, violations
	}
	return payload, nil
}

// Validate checks field constraints on an already decoded payload.
func Validate(p WebhookPayload) []Violation {
	var violations []Violation

	if p.MessageID == "" {
		violations = append(violations, Violation{Field: "message_id", Message: "must not be empty"})
	}
	if !msisdnPattern.MatchString(p.From) {
		violations = append(violations, Violation{Field: "from", Message: "must be '+' followed by digits"})
	}
	if !msisdnPattern.MatchString(p.To) {
		violations = append(violations, Violation{Field: "to", Message: "must be '+' followed by digits"})
	}
	if msg := validateTimestamp(p.TS); msg != "" {
		violations = append(violations, Violation{Field: "ts", Message: msg})
	}
	if p.Text != nil && utf8.RuneCountInString(*p.Text) > constants.MaxTextLength {
		violations = append(violations, Violation{
			Field:   "text",
			Message: fmt.Sprintf("must be at most %d characters", constants.MaxTextLength),
		})
	}

	return violations
}

func validateTimestamp(ts string) string {
	if !strings.HasSuffix(ts, "Z") {
		return "must be an ISO-8601 UTC timestamp ending in 'Z'"
	}
	// Parse tolerates fractional seconds the layout does not name.
	parsed, err := time.Parse(constants.TimestampLayout, ts)
	if err != nil || parsed.Format(constants.TimestampLayout) != ts {
		return "must be an ISO-8601 UTC timestamp of the form YYYY-MM-DDTHH:MM:SSZ"
	}
	return ""
}

// NormalizeSince converts an RFC 3339 lower bound into the stored ts shape.
// Sub-second bounds round up so that ts >= since keeps its meaning.
func NormalizeSince(since string) (string, *Violation) {
	parsed, err := time.Parse(time.RFC3339Nano, since)
	if err != nil {
		return "", &Violation{Field: "since", Message: "must be an RFC 3339 timestamp"}
	}
	parsed = parsed.UTC()
	if parsed.Nanosecond() > 0 {
		parsed = parsed.Truncate(time.Second).Add(time.Second)
	}
	return parsed.Format(constants.TimestampLayout), nil
}
