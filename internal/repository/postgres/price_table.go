package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
)

const (
	priceTableColumns = `id, lab_id, name, created_at, updated_at`
	itemColumns       = `id, table_id, service_id, price, created_at`
)

type priceTableRepository struct {
	BaseRepository
}

func NewPriceTableRepository(db *sqlx.DB) repository.PriceTableRepository {
	return &priceTableRepository{NewBaseRepository(db)}
}

func (r *priceTableRepository) Create(ctx context.Context, table *model.PriceTable) error {
	query := `INSERT INTO price_tables (` + priceTableColumns + `) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.exec(ctx, query, table.ID, table.LabID, table.Name, table.CreatedAt, table.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create price table: %w", err)
	}
	return nil
}

func (r *priceTableRepository) Get(ctx context.Context, id uuid.UUID) (*model.PriceTable, error) {
	var table model.PriceTable
	if err := r.get(ctx, "price table", &table, `SELECT `+priceTableColumns+` FROM price_tables WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *priceTableRepository) List(ctx context.Context, labID uuid.UUID) ([]*model.PriceTable, error) {
	var tables []*model.PriceTable
	query := `SELECT ` + priceTableColumns + ` FROM price_tables WHERE lab_id = ? ORDER BY name`
	if err := r.selectAll(ctx, &tables, query, labID); err != nil {
		return nil, fmt.Errorf("failed to list price tables: %w", err)
	}
	return tables, nil
}

// Delete removes the table and its items. Callers unassign links first.
func (r *priceTableRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.exec(ctx, `DELETE FROM price_table_items WHERE table_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete price table items: %w", err)
	}
	return r.execOne(ctx, "price table", `DELETE FROM price_tables WHERE id = ?`, id)
}

func (r *priceTableRepository) ListItems(ctx context.Context, tableID uuid.UUID) ([]model.PriceTableItem, error) {
	var items []model.PriceTableItem
	query := `SELECT ` + itemColumns + ` FROM price_table_items WHERE table_id = ? ORDER BY created_at`
	if err := r.selectAll(ctx, &items, query, tableID); err != nil {
		return nil, fmt.Errorf("failed to list price table items: %w", err)
	}
	return items, nil
}

func (r *priceTableRepository) GetItem(ctx context.Context, tableID, serviceID uuid.UUID) (*model.PriceTableItem, error) {
	var item model.PriceTableItem
	query := `SELECT ` + itemColumns + ` FROM price_table_items WHERE table_id = ? AND service_id = ?`
	if err := r.get(ctx, "price table item", &item, query, tableID, serviceID); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *priceTableRepository) InsertItemIfAbsent(ctx context.Context, item *model.PriceTableItem) (bool, error) {
	query := `
		INSERT INTO price_table_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (table_id, service_id) DO NOTHING
	`
	result, err := r.exec(ctx, query, item.ID, item.TableID, item.ServiceID, item.Price, item.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert price table item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *priceTableRepository) UpsertItem(ctx context.Context, item *model.PriceTableItem) error {
	query := `
		INSERT INTO price_table_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (table_id, service_id) DO UPDATE SET price = excluded.price
	`
	if _, err := r.exec(ctx, query, item.ID, item.TableID, item.ServiceID, item.Price, item.CreatedAt); err != nil {
		return fmt.Errorf("failed to save price table item: %w", err)
	}
	return nil
}

func (r *priceTableRepository) DeleteItem(ctx context.Context, tableID, serviceID uuid.UUID) error {
	return r.execOne(ctx, "price table item",
		`DELETE FROM price_table_items WHERE table_id = ? AND service_id = ?`, tableID, serviceID)
}
