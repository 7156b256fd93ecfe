// Package pricing computes the price of a job at creation time.
package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

// Source names the rule that produced a price.
type Source string

const (
	SourceManual     Source = "manual"
	SourcePriceTable Source = "price_table"
	SourceBasePrice  Source = "base_price"
	SourceNone       Source = "none"
)

type Input struct {
	LabID     uuid.UUID
	ClinicID  uuid.UUID
	ServiceID *uuid.UUID
	Manual    *float64
}

type Quote struct {
	Price  float64 `json:"price"`
	Source Source  `json:"source"`
}

type Resolver struct {
	catalog repository.CatalogRepository
	links   repository.LinkRepository
	tables  repository.PriceTableRepository
}

func NewResolver(catalog repository.CatalogRepository, links repository.LinkRepository, tables repository.PriceTableRepository) *Resolver {
	return &Resolver{catalog: catalog, links: links, tables: tables}
}

// Resolve applies, first match wins: manual override, the price table assigned
// to the clinic's active link, the service base price, zero. A referenced
// service must belong to the lab even when the manual price wins.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Quote, error) {
	if in.Manual != nil && *in.Manual < 0 {
		return nil, apperrors.Validation("manual price must not be negative")
	}

	var svc *model.Service
	if in.ServiceID != nil {
		var err error
		if svc, err = r.service(ctx, in); err != nil {
			return nil, err
		}
	}

	if in.Manual != nil {
		return &Quote{Price: *in.Manual, Source: SourceManual}, nil
	}
	if svc == nil {
		return &Quote{Price: 0, Source: SourceNone}, nil
	}

	price, found, err := r.tablePrice(ctx, in)
	if err != nil {
		return nil, err
	}
	if found {
		return &Quote{Price: price, Source: SourcePriceTable}, nil
	}

	return &Quote{Price: svc.BasePrice, Source: SourceBasePrice}, nil
}

func (r *Resolver) service(ctx context.Context, in Input) (*model.Service, error) {
	svc, err := r.catalog.Get(ctx, *in.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc.LabID != in.LabID {
		return nil, apperrors.NotFound("service", nil)
	}
	return svc, nil
}

func (r *Resolver) tablePrice(ctx context.Context, in Input) (float64, bool, error) {
	link, err := r.links.GetActive(ctx, in.LabID, in.ClinicID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load link: %w", err)
	}
	if link.PriceTableID == nil {
		return 0, false, nil
	}

	item, err := r.tables.GetItem(ctx, *link.PriceTableID, *in.ServiceID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load price table item: %w", err)
	}
	return item.Price, true, nil
}
