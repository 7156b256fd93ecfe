package model

import (
	"time"

	"github.com/google/uuid"
)

// LabClinicLink is the partnership between a laboratory and a clinic. At most
// one active link exists per pair.
type LabClinicLink struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	LabID        uuid.UUID  `db:"lab_id" json:"lab_id"`
	ClinicID     uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Active       bool       `db:"active" json:"active"`
	PriceTableID *uuid.UUID `db:"price_table_id" json:"price_table_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// InviteToken is a one-shot credential issued by a lab. Its ID is the token.
type InviteToken struct {
	ID        uuid.UUID `db:"id" json:"token"`
	LabID     uuid.UUID `db:"lab_id" json:"lab_id"`
	Email     string    `db:"email" json:"email,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Used      bool      `db:"used" json:"used"`
}

// Redeemable reports whether the token may still be consumed at now.
func (t *InviteToken) Redeemable(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}

// Partner is one side of an active link as seen from the other side.
type Partner struct {
	Link   *LabClinicLink `json:"link"`
	Lab    *Laboratory    `json:"lab,omitempty"`
	Clinic *Clinic        `json:"clinic,omitempty"`
}

type InviteRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type AssignPriceTableRequest struct {
	PriceTableID *uuid.UUID `json:"price_table_id"`
}
