package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the message every hub client receives.
type Event struct {
	ID          string          `json:"eventId"`
	Channel     string          `json:"channel"`
	Publisher   string          `json:"publisher,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	PublishedAt time.Time       `json:"timestamp"`
}

// PublishRequest is the publish-time input the hub turns into an Event.
type PublishRequest struct {
	Publisher string
	Payload   json.RawMessage
}

// Text renders the payload for line-oriented clients: JSON strings are
// unquoted, anything else is the raw JSON text.
func (e Event) Text() string {
	var s string
	if err := json.Unmarshal(e.Payload, &s); err == nil {
		return s
	}
	return string(e.Payload)
}

// NewEvent converts a publish request into an Event for channel.
func NewEvent(channel string, req PublishRequest) Event {
	return Event{
		ID:          uuid.NewString(),
		Channel:     channel,
		Publisher:   req.Publisher,
		Payload:     req.Payload,
		PublishedAt: time.Now().UTC(),
	}
}

// TextPayload encodes s as a JSON string payload
func TextPayload(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
