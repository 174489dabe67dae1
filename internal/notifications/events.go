package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const EventNotificationCreated = "NotificationCreated"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // notification id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps n. The event id is derived from the notification id so a
// row relayed twice is recognised as the same event downstream.
func NewEnvelope(producer string, n Notification) (Envelope, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte("notification:"+n.ID)).String(),
		EventType:     EventNotificationCreated,
		EventVersion:  1,
		OccurredAt:    n.CreatedAt,
		Producer:      producer,
		CorrelationID: n.ID,
		Payload:       payload,
	}, nil
}
