package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
)

const serviceColumns = `id, lab_id, name, material, base_price, lead_time_days, active, created_at, updated_at`

type catalogRepository struct {
	BaseRepository
}

func NewCatalogRepository(db *sqlx.DB) repository.CatalogRepository {
	return &catalogRepository{NewBaseRepository(db)}
}

func (r *catalogRepository) Create(ctx context.Context, svc *model.Service) error {
	query := `INSERT INTO services (` + serviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query,
		svc.ID, svc.LabID, svc.Name, svc.Material, svc.BasePrice,
		svc.LeadTimeDays, svc.Active, svc.CreatedAt, svc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (r *catalogRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var svc model.Service
	if err := r.get(ctx, "service", &svc, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *catalogRepository) Update(ctx context.Context, svc *model.Service) error {
	query := `
		UPDATE services
		SET name = ?, material = ?, base_price = ?, lead_time_days = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	return r.execOne(ctx, "service", query,
		svc.Name, svc.Material, svc.BasePrice, svc.LeadTimeDays, svc.Active, svc.UpdatedAt, svc.ID,
	)
}

func (r *catalogRepository) List(ctx context.Context, labID uuid.UUID, activeOnly bool) ([]*model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE lab_id = ?`
	args := []interface{}{labID}
	if activeOnly {
		query += ` AND active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name`

	var services []*model.Service
	if err := r.selectAll(ctx, &services, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}
