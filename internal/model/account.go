package model

import (
	"github.com/google/uuid"
)

// Laboratory is the producing party. New laboratories are inactive until an
// administrator approves them.
type Laboratory struct {
	Base
	OwnerSubject string `db:"owner_subject" json:"-"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email"`
	Phone        string `db:"phone" json:"phone"`
	Address      string `db:"address" json:"address"`
	Active       bool   `db:"active" json:"active"`
	BrandColor   string `db:"brand_color" json:"brand_color"`
	LogoURL      string `db:"logo_url" json:"logo_url"`
}

// Clinic is the requesting party. A clinic created by a lab has no owner
// subject and cannot log in.
type Clinic struct {
	Base
	OwnerSubject *string `db:"owner_subject" json:"-"`
	Name         string  `db:"name" json:"name"`
	Email        string  `db:"email" json:"email"`
	Phone        string  `db:"phone" json:"phone"`
	Address      string  `db:"address" json:"address"`
	Active       bool    `db:"active" json:"active"`
}

// IsManual reports whether the clinic exists without its own login.
func (c *Clinic) IsManual() bool {
	return c.OwnerSubject == nil || *c.OwnerSubject == ""
}

type AccountKind string

const (
	AccountKindLab    AccountKind = "lab"
	AccountKindClinic AccountKind = "clinic"
)

// Account is the resolved identity of an authenticated caller: exactly one of
// Lab or Clinic is set, according to Kind.
type Account struct {
	Kind   AccountKind `json:"kind"`
	Lab    *Laboratory `json:"lab,omitempty"`
	Clinic *Clinic     `json:"clinic,omitempty"`
}

func LabAccount(lab *Laboratory) *Account {
	return &Account{Kind: AccountKindLab, Lab: lab}
}

func ClinicAccount(clinic *Clinic) *Account {
	return &Account{Kind: AccountKindClinic, Clinic: clinic}
}

func (a *Account) ID() uuid.UUID {
	switch a.Kind {
	case AccountKindLab:
		return a.Lab.ID
	case AccountKindClinic:
		return a.Clinic.ID
	}
	return uuid.Nil
}

func (a *Account) IsLab() bool {
	return a != nil && a.Kind == AccountKindLab && a.Lab != nil
}

func (a *Account) IsClinic() bool {
	return a != nil && a.Kind == AccountKindClinic && a.Clinic != nil
}

// LabID returns the lab id when the account is a laboratory.
func (a *Account) LabID() (uuid.UUID, bool) {
	if !a.IsLab() {
		return uuid.Nil, false
	}
	return a.Lab.ID, true
}

// ClinicID returns the clinic id when the account is a clinic.
func (a *Account) ClinicID() (uuid.UUID, bool) {
	if !a.IsClinic() {
		return uuid.Nil, false
	}
	return a.Clinic.ID, true
}

func (a *Account) DisplayName() string {
	switch a.Kind {
	case AccountKindLab:
		return a.Lab.Name
	case AccountKindClinic:
		return a.Clinic.Name
	}
	return ""
}

func (a *Account) Recipient() Recipient {
	if a.IsLab() {
		return LabRecipient(a.Lab.ID)
	}
	return ClinicRecipient(a.ID())
}

// Branding is the lab's presentation projection consumed by the UI.
type Branding struct {
	BrandColor string `json:"brand_color" validate:"omitempty,hexcolor"`
	LogoURL    string `json:"logo_url" validate:"omitempty,url"`
}

type LabRegistration struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ClinicRegistration struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}
