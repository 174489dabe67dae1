// Package notifications holds the notification outbox: rows written next to
// the state change they describe, relayed to Kafka, delivered by a consumer.
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeOrder        Type = "order"
	TypeSystem       Type = "system"
	TypeAnnouncement Type = "announcement"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// New fills in id and creation time.
func New(userID, title, message string, typ Type) Notification {
	return Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
}

// Sink records a notification for later delivery.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}
