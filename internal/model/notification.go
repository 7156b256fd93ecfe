package model

import (
	"time"

	"github.com/google/uuid"
)

type RecipientKind string

const (
	RecipientLab    RecipientKind = "lab"
	RecipientClinic RecipientKind = "clinic"
)

// Recipient names a notification target. The kind keeps lab and clinic id
// spaces apart.
type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   uuid.UUID     `json:"id"`
}

func LabRecipient(id uuid.UUID) Recipient {
	return Recipient{Kind: RecipientLab, ID: id}
}

func ClinicRecipient(id uuid.UUID) Recipient {
	return Recipient{Kind: RecipientClinic, ID: id}
}

func (r Recipient) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

type Notification struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	RecipientKind RecipientKind `db:"recipient_kind" json:"recipient_kind"`
	RecipientID   uuid.UUID     `db:"recipient_id" json:"recipient_id"`
	Title         string        `db:"title" json:"title"`
	Body          string        `db:"body" json:"body"`
	Link          *string       `db:"link" json:"link,omitempty"`
	Read          bool          `db:"is_read" json:"read"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

func (n *Notification) Recipient() Recipient {
	return Recipient{Kind: n.RecipientKind, ID: n.RecipientID}
}

// PushEvent is the payload delivered over the real-time channel.
type PushEvent struct {
	Type         string        `json:"type"`
	Recipient    Recipient     `json:"recipient"`
	Notification *Notification `json:"notification,omitempty"`
}

const PushEventNotification = "notification"
