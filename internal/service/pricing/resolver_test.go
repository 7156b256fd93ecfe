package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/testutil"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

type scenario struct {
	resolver *Resolver
	lab      *model.Laboratory
	clinic   *model.Clinic
	service  *model.Service
}

// newScenario links a clinic to a lab with a table that overrides the
// service's base price of 100 with 80.
func newScenario(t *testing.T) scenario {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)

	lab := fx.Lab("Lab L")
	clinic := fx.Clinic("Clinic C")
	svc := fx.Service(lab.ID, "Zirconia crown", 100)
	table := fx.PriceTable(lab.ID, "Table T")
	fx.TableItem(table.ID, svc.ID, 80)
	fx.Link(lab.ID, clinic.ID, &table.ID)

	return scenario{
		resolver: NewResolver(fx.Repos.Catalog, fx.Repos.Links, fx.Repos.PriceTables),
		lab:      lab,
		clinic:   clinic,
		service:  svc,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestResolvePrecedence(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		in     Input
		price  float64
		source Source
	}{
		{
			name:   "manual override beats table and base price",
			in:     Input{LabID: s.lab.ID, ClinicID: s.clinic.ID, ServiceID: &s.service.ID, Manual: floatPtr(50)},
			price:  50,
			source: SourceManual,
		},
		{
			name:   "zero manual override is still an override",
			in:     Input{LabID: s.lab.ID, ClinicID: s.clinic.ID, ServiceID: &s.service.ID, Manual: floatPtr(0)},
			price:  0,
			source: SourceManual,
		},
		{
			name:   "table entry beats base price",
			in:     Input{LabID: s.lab.ID, ClinicID: s.clinic.ID, ServiceID: &s.service.ID},
			price:  80,
			source: SourcePriceTable,
		},
		{
			name:   "unlinked clinic gets base price",
			in:     Input{LabID: s.lab.ID, ClinicID: uuid.New(), ServiceID: &s.service.ID},
			price:  100,
			source: SourceBasePrice,
		},
		{
			name:   "no service means zero",
			in:     Input{LabID: s.lab.ID, ClinicID: s.clinic.ID},
			price:  0,
			source: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := s.resolver.Resolve(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.price, quote.Price)
			assert.Equal(t, tt.source, quote.Source)
		})
	}
}

func TestResolveTableWithoutEntryFallsBack(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)

	lab := fx.Lab("Lab")
	clinic := fx.Clinic("Clinic")
	svc := fx.Service(lab.ID, "Bridge", 240)
	table := fx.PriceTable(lab.ID, "Empty")
	fx.Link(lab.ID, clinic.ID, &table.ID)

	r := NewResolver(fx.Repos.Catalog, fx.Repos.Links, fx.Repos.PriceTables)
	quote, err := r.Resolve(context.Background(), Input{LabID: lab.ID, ClinicID: clinic.ID, ServiceID: &svc.ID})
	require.NoError(t, err)
	assert.Equal(t, 240.0, quote.Price)
	assert.Equal(t, SourceBasePrice, quote.Source)
}

func TestResolveRejects(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()

	_, err := s.resolver.Resolve(ctx, Input{LabID: s.lab.ID, ClinicID: s.clinic.ID, Manual: floatPtr(-1)})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	missing := uuid.New()
	_, err = s.resolver.Resolve(ctx, Input{LabID: s.lab.ID, ClinicID: s.clinic.ID, ServiceID: &missing})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// A service from another lab's catalog is treated as absent.
	_, err = s.resolver.Resolve(ctx, Input{LabID: uuid.New(), ClinicID: s.clinic.ID, ServiceID: &s.service.ID})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// A manual price does not excuse a bad service reference.
	_, err = s.resolver.Resolve(ctx, Input{LabID: s.lab.ID, ClinicID: s.clinic.ID, ServiceID: &missing, Manual: floatPtr(10)})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = s.resolver.Resolve(ctx, Input{LabID: uuid.New(), ClinicID: s.clinic.ID, ServiceID: &s.service.ID, Manual: floatPtr(10)})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
