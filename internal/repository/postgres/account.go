package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

const labColumns = `id, owner_subject, name, email, phone, address, active, brand_color, logo_url, created_at, updated_at`

type labRepository struct {
	BaseRepository
}

func NewLabRepository(db *sqlx.DB) repository.LabRepository {
	return &labRepository{NewBaseRepository(db)}
}

func (r *labRepository) Create(ctx context.Context, lab *model.Laboratory) error {
	query := `
		INSERT INTO laboratories (` + labColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.exec(ctx, query,
		lab.ID, lab.OwnerSubject, lab.Name, lab.Email, lab.Phone, lab.Address,
		lab.Active, lab.BrandColor, lab.LogoURL, lab.CreatedAt, lab.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("an account is already registered for this login", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create laboratory: %w", err)
	}
	return nil
}

func (r *labRepository) Get(ctx context.Context, id uuid.UUID) (*model.Laboratory, error) {
	var lab model.Laboratory
	if err := r.get(ctx, "laboratory", &lab, `SELECT `+labColumns+` FROM laboratories WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &lab, nil
}

func (r *labRepository) GetByOwner(ctx context.Context, subject string) (*model.Laboratory, error) {
	var lab model.Laboratory
	if err := r.get(ctx, "laboratory", &lab, `SELECT `+labColumns+` FROM laboratories WHERE owner_subject = ?`, subject); err != nil {
		return nil, err
	}
	return &lab, nil
}

func (r *labRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.execOne(ctx, "laboratory",
		`UPDATE laboratories SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id,
	)
}

func (r *labRepository) UpdateBranding(ctx context.Context, id uuid.UUID, branding model.Branding) error {
	return r.execOne(ctx, "laboratory",
		`UPDATE laboratories SET brand_color = ?, logo_url = ?, updated_at = ? WHERE id = ?`,
		branding.BrandColor, branding.LogoURL, time.Now().UTC(), id,
	)
}

const clinicColumns = `id, owner_subject, name, email, phone, address, active, created_at, updated_at`

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(db *sqlx.DB) repository.ClinicRepository {
	return &clinicRepository{NewBaseRepository(db)}
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `
		INSERT INTO clinics (` + clinicColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.exec(ctx, query,
		clinic.ID, clinic.OwnerSubject, clinic.Name, clinic.Email, clinic.Phone,
		clinic.Address, clinic.Active, clinic.CreatedAt, clinic.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return apperrors.Conflict("an account is already registered for this login", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	return nil
}

func (r *clinicRepository) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	var clinic model.Clinic
	if err := r.get(ctx, "clinic", &clinic, `SELECT `+clinicColumns+` FROM clinics WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &clinic, nil
}

func (r *clinicRepository) GetByOwner(ctx context.Context, subject string) (*model.Clinic, error) {
	var clinic model.Clinic
	if err := r.get(ctx, "clinic", &clinic, `SELECT `+clinicColumns+` FROM clinics WHERE owner_subject = ?`, subject); err != nil {
		return nil, err
	}
	return &clinic, nil
}

func (r *clinicRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "clinic", `DELETE FROM clinics WHERE id = ?`, id)
}
