package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

const linkColumns = `id, lab_id, clinic_id, active, price_table_id, created_at`

type linkRepository struct {
	BaseRepository
}

func NewLinkRepository(db *sqlx.DB) repository.LinkRepository {
	return &linkRepository{NewBaseRepository(db)}
}

// Create relies on the partial unique index over active pairs; a second
// active link surfaces as DuplicateLink.
func (r *linkRepository) Create(ctx context.Context, link *model.LabClinicLink) error {
	query := `
		INSERT INTO lab_clinic_links (` + linkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.exec(ctx, query, link.ID, link.LabID, link.ClinicID, link.Active, link.PriceTableID, link.CreatedAt)
	if isUniqueViolation(err) {
		return apperrors.DuplicateLink(err)
	}
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (r *linkRepository) GetActive(ctx context.Context, labID, clinicID uuid.UUID) (*model.LabClinicLink, error) {
	var link model.LabClinicLink
	query := `SELECT ` + linkColumns + ` FROM lab_clinic_links WHERE lab_id = ? AND clinic_id = ? AND active = ?`
	if err := r.get(ctx, "link", &link, query, labID, clinicID, true); err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) Deactivate(ctx context.Context, labID, clinicID uuid.UUID) error {
	return r.execOne(ctx, "link",
		`UPDATE lab_clinic_links SET active = ? WHERE lab_id = ? AND clinic_id = ? AND active = ?`,
		false, labID, clinicID, true,
	)
}

func (r *linkRepository) AssignPriceTable(ctx context.Context, labID, clinicID uuid.UUID, tableID *uuid.UUID) error {
	return r.execOne(ctx, "link",
		`UPDATE lab_clinic_links SET price_table_id = ? WHERE lab_id = ? AND clinic_id = ? AND active = ?`,
		tableID, labID, clinicID, true,
	)
}

func (r *linkRepository) ClearPriceTable(ctx context.Context, tableID uuid.UUID) error {
	if _, err := r.exec(ctx, `UPDATE lab_clinic_links SET price_table_id = NULL WHERE price_table_id = ?`, tableID); err != nil {
		return fmt.Errorf("failed to unassign price table: %w", err)
	}
	return nil
}

func (r *linkRepository) ListByLab(ctx context.Context, labID uuid.UUID) ([]*model.LabClinicLink, error) {
	var links []*model.LabClinicLink
	query := `SELECT ` + linkColumns + ` FROM lab_clinic_links WHERE lab_id = ? AND active = ? ORDER BY created_at`
	if err := r.selectAll(ctx, &links, query, labID, true); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

func (r *linkRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.LabClinicLink, error) {
	var links []*model.LabClinicLink
	query := `SELECT ` + linkColumns + ` FROM lab_clinic_links WHERE clinic_id = ? AND active = ? ORDER BY created_at`
	if err := r.selectAll(ctx, &links, query, clinicID, true); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

func (r *linkRepository) DeleteByClinic(ctx context.Context, clinicID uuid.UUID) error {
	if _, err := r.exec(ctx, `DELETE FROM lab_clinic_links WHERE clinic_id = ?`, clinicID); err != nil {
		return fmt.Errorf("failed to delete links: %w", err)
	}
	return nil
}
