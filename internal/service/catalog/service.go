// Package catalog manages a lab's services and price tables.
package catalog

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	"github.com/jwalitptl/dentallab-api/internal/service/access"
	"github.com/jwalitptl/dentallab-api/internal/service/audit"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/metrics"
	"github.com/jwalitptl/dentallab-api/pkg/validator"
)

const copySuffix = " (Copy)"

type Service struct {
	tx      repository.TxManager
	catalog repository.CatalogRepository
	tables  repository.PriceTableRepository
	links   repository.LinkRepository
	auditor *audit.Service
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(tx repository.TxManager, catalog repository.CatalogRepository, tables repository.PriceTableRepository, links repository.LinkRepository, auditor *audit.Service, m *metrics.Metrics) *Service {
	if auditor == nil {
		auditor = audit.NewService(nil)
	}
	if m == nil {
		m = metrics.NewMetrics("dentallab", nil)
	}
	return &Service{
		tx:      tx,
		catalog: catalog,
		tables:  tables,
		links:   links,
		auditor: auditor,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateService(ctx context.Context, actor *model.Account, in model.ServiceInput) (*model.Service, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	svc := &model.Service{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LabID:        lab.ID,
		Name:         in.Name,
		Material:     in.Material,
		BasePrice:    in.BasePrice,
		LeadTimeDays: in.LeadTimeDays,
		Active:       true,
	}
	if err := s.catalog.Create(ctx, svc); err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, actor, "service.created", "service", svc.ID)
	return svc, nil
}

func (s *Service) UpdateService(ctx context.Context, actor *model.Account, id uuid.UUID, in model.ServiceInput) (*model.Service, error) {
	svc, err := s.ownedService(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	svc.Name = in.Name
	svc.Material = in.Material
	svc.BasePrice = in.BasePrice
	svc.LeadTimeDays = in.LeadTimeDays
	svc.UpdatedAt = s.now()
	if err := s.catalog.Update(ctx, svc); err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, actor, "service.updated", "service", svc.ID)
	return svc, nil
}

// DeactivateService hides the service from new jobs and imports. Existing
// jobs and table items keep referencing it.
func (s *Service) DeactivateService(ctx context.Context, actor *model.Account, id uuid.UUID) error {
	svc, err := s.ownedService(ctx, actor, id)
	if err != nil {
		return err
	}
	if !svc.Active {
		return nil
	}
	svc.Active = false
	svc.UpdatedAt = s.now()
	if err := s.catalog.Update(ctx, svc); err != nil {
		return err
	}
	s.auditor.Log(ctx, actor, "service.deactivated", "service", svc.ID)
	return nil
}

// ListServices returns the lab's catalog. A lab lists its own services; a
// clinic lists the active services of a linked lab.
func (s *Service) ListServices(ctx context.Context, actor *model.Account, labID *uuid.UUID, activeOnly bool) ([]*model.Service, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized(nil)
	}

	var target uuid.UUID
	switch {
	case actor.IsLab():
		target = actor.Lab.ID
	case actor.IsClinic():
		if labID == nil {
			return nil, apperrors.Validation("lab_id is required")
		}
		if _, err := s.links.GetActive(ctx, *labID, actor.Clinic.ID); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.Forbidden("lab is not a partner")
			}
			return nil, err
		}
		target = *labID
		activeOnly = true
	default:
		return nil, apperrors.Forbidden("unknown account kind")
	}

	services, err := s.catalog.List(ctx, target, activeOnly)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []*model.Service{}
	}
	return services, nil
}

func (s *Service) ownedService(ctx context.Context, actor *model.Account, id uuid.UUID) (*model.Service, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	svc, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.LabID != lab.ID {
		return nil, apperrors.NotFound("service", nil)
	}
	return svc, nil
}

func (s *Service) ownedTable(ctx context.Context, actor *model.Account, id uuid.UUID) (*model.PriceTable, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	table, err := s.tables.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if table.LabID != lab.ID {
		return nil, apperrors.NotFound("price table", nil)
	}
	return table, nil
}

func (s *Service) CreatePriceTable(ctx context.Context, actor *model.Account, in model.PriceTableInput) (*model.PriceTable, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	table := &model.PriceTable{
		Base:  model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LabID: lab.ID,
		Name:  in.Name,
	}
	if err := s.tables.Create(ctx, table); err != nil {
		return nil, err
	}
	s.auditor.Log(ctx, actor, "price_table.created", "price_table", table.ID)
	return table, nil
}

func (s *Service) ListPriceTables(ctx context.Context, actor *model.Account) ([]*model.PriceTable, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	tables, err := s.tables.List(ctx, lab.ID)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []*model.PriceTable{}
	}
	return tables, nil
}

// GetPriceTable returns the table with its items.
func (s *Service) GetPriceTable(ctx context.Context, actor *model.Account, id uuid.UUID) (*model.PriceTable, error) {
	table, err := s.ownedTable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	items, err := s.tables.ListItems(ctx, table.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.PriceTableItem{}
	}
	table.Items = items
	return table, nil
}

// DeletePriceTable unassigns the table from every link before removing it.
func (s *Service) DeletePriceTable(ctx context.Context, actor *model.Account, id uuid.UUID) error {
	table, err := s.ownedTable(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.links.ClearPriceTable(ctx, table.ID); err != nil {
			return err
		}
		return s.tables.Delete(ctx, table.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete price table: %w", err)
	}
	s.auditor.Log(ctx, actor, "price_table.deleted", "price_table", table.ID)
	return nil
}

// SetTableItem creates or replaces the table's price for a service.
func (s *Service) SetTableItem(ctx context.Context, actor *model.Account, tableID, serviceID uuid.UUID, in model.TableItemInput) (*model.PriceTableItem, error) {
	if err := validator.Validate(in); err != nil {
		return nil, err
	}
	table, err := s.ownedTable(ctx, actor, tableID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedService(ctx, actor, serviceID); err != nil {
		return nil, err
	}

	item := &model.PriceTableItem{
		ID:        uuid.New(),
		TableID:   table.ID,
		ServiceID: serviceID,
		Price:     roundPrice(in.Price),
		CreatedAt: s.now(),
	}
	if err := s.tables.UpsertItem(ctx, item); err != nil {
		return nil, err
	}
	return s.tables.GetItem(ctx, table.ID, serviceID)
}

func (s *Service) RemoveTableItem(ctx context.Context, actor *model.Account, tableID, serviceID uuid.UUID) error {
	table, err := s.ownedTable(ctx, actor, tableID)
	if err != nil {
		return err
	}
	return s.tables.DeleteItem(ctx, table.ID, serviceID)
}

// ImportAllServices adds every active catalog service missing from the table
// at its base price less the discount. Existing items are never overwritten,
// so a second run imports nothing.
func (s *Service) ImportAllServices(ctx context.Context, actor *model.Account, tableID uuid.UUID, discountPercent float64) (*model.ImportResult, error) {
	table, err := s.ownedTable(ctx, actor, tableID)
	if err != nil {
		return nil, err
	}
	discount := clampDiscount(discountPercent)

	result := &model.ImportResult{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		services, err := s.catalog.List(ctx, table.LabID, true)
		if err != nil {
			return err
		}
		now := s.now()
		for _, svc := range services {
			inserted, err := s.tables.InsertItemIfAbsent(ctx, &model.PriceTableItem{
				ID:        uuid.New(),
				TableID:   table.ID,
				ServiceID: svc.ID,
				Price:     discounted(svc.BasePrice, discount),
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
			if inserted {
				result.Imported++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import services: %w", err)
	}

	s.metrics.CatalogImported.Add(float64(result.Imported))
	s.auditor.Log(ctx, actor, "price_table.imported", "price_table", table.ID,
		zap.Float64("discount_percent", discount),
		zap.Int("imported", result.Imported),
	)
	return result, nil
}

// DuplicateTable copies the table and all of its items under a new name.
func (s *Service) DuplicateTable(ctx context.Context, actor *model.Account, tableID uuid.UUID) (*model.PriceTable, error) {
	source, err := s.ownedTable(ctx, actor, tableID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dup := &model.PriceTable{
		Base:  model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LabID: source.LabID,
		Name:  source.Name + copySuffix,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		items, err := s.tables.ListItems(ctx, source.ID)
		if err != nil {
			return err
		}
		if err := s.tables.Create(ctx, dup); err != nil {
			return err
		}
		for _, item := range items {
			copied := model.PriceTableItem{
				ID:        uuid.New(),
				TableID:   dup.ID,
				ServiceID: item.ServiceID,
				Price:     item.Price,
				CreatedAt: now,
			}
			if _, err := s.tables.InsertItemIfAbsent(ctx, &copied); err != nil {
				return err
			}
			dup.Items = append(dup.Items, copied)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate price table: %w", err)
	}

	s.auditor.Log(ctx, actor, "price_table.duplicated", "price_table", dup.ID,
		zap.String("source_id", source.ID.String()),
		zap.Int("items", len(dup.Items)),
	)
	return dup, nil
}

func clampDiscount(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func discounted(base, discountPercent float64) float64 {
	return roundPrice(base * (1 - discountPercent/100))
}

func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}
