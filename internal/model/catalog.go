package model

import (
	"time"

	"github.com/google/uuid"
)

// Service is an entry in a lab's catalog.
type Service struct {
	Base
	LabID        uuid.UUID `db:"lab_id" json:"lab_id"`
	Name         string    `db:"name" json:"name"`
	Material     string    `db:"material" json:"material"`
	BasePrice    float64   `db:"base_price" json:"base_price"`
	LeadTimeDays int       `db:"lead_time_days" json:"lead_time_days"`
	Active       bool      `db:"active" json:"active"`
}

type ServiceInput struct {
	Name         string  `json:"name" validate:"required"`
	Material     string  `json:"material"`
	BasePrice    float64 `json:"base_price" validate:"gte=0"`
	LeadTimeDays int     `json:"lead_time_days" validate:"gte=0"`
}

// PriceTable is a lab-owned list of per-service prices assignable to clinics.
type PriceTable struct {
	Base
	LabID uuid.UUID        `db:"lab_id" json:"lab_id"`
	Name  string           `db:"name" json:"name"`
	Items []PriceTableItem `db:"-" json:"items,omitempty"`
}

type PriceTableItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TableID   uuid.UUID `db:"table_id" json:"table_id"`
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	Price     float64   `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ImportResult is returned by a catalog import into a price table.
type ImportResult struct {
	Imported int `json:"imported"`
}

type PriceTableInput struct {
	Name string `json:"name" validate:"required"`
}

type TableItemInput struct {
	Price float64 `json:"price" validate:"gte=0"`
}

// ImportRequest copies catalog prices into a table. DiscountPercent is
// clamped to [0, 100].
type ImportRequest struct {
	DiscountPercent float64 `json:"discount_percent"`
}
