package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSend             EventType = "notification.send"
	EventPreferenceUpsert EventType = "notification.preference.upsert"
)

// Event is what leaves the service. Subject and Body are set for sends;
// Enabled and ContactInfo for preference updates.
type Event struct {
	Type        EventType `json:"type"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Subject     string    `json:"subject,omitempty"`
	Body        string    `json:"body,omitempty"`
	Enabled     bool      `json:"enabled"`
	ContactInfo string    `json:"contact_info,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Sender delivers one event to the notification service.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}
