// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository/postgres"
)

// NewDB opens a private in-memory SQLite database with the full schema.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, postgres.Migrate(context.Background(), db))
	return db
}

// Fixtures creates rows directly through the repositories.
type Fixtures struct {
	t     *testing.T
	Repos *postgres.Repositories
}

func NewFixtures(t *testing.T, db *sqlx.DB) *Fixtures {
	return &Fixtures{t: t, Repos: postgres.NewRepositories(db)}
}

func (f *Fixtures) Lab(name string) *model.Laboratory {
	f.t.Helper()
	now := time.Now().UTC()
	lab := &model.Laboratory{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OwnerSubject: "lab-" + uuid.NewString(),
		Name:         name,
		Active:       true,
	}
	require.NoError(f.t, f.Repos.Labs.Create(context.Background(), lab))
	return lab
}

func (f *Fixtures) Clinic(name string) *model.Clinic {
	f.t.Helper()
	now := time.Now().UTC()
	owner := "clinic-" + uuid.NewString()
	clinic := &model.Clinic{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OwnerSubject: &owner,
		Name:         name,
		Active:       true,
	}
	require.NoError(f.t, f.Repos.Clinics.Create(context.Background(), clinic))
	return clinic
}

func (f *Fixtures) ManualClinic(name string) *model.Clinic {
	f.t.Helper()
	now := time.Now().UTC()
	clinic := &model.Clinic{
		Base:   model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:   name,
		Active: true,
	}
	require.NoError(f.t, f.Repos.Clinics.Create(context.Background(), clinic))
	return clinic
}

func (f *Fixtures) Service(labID uuid.UUID, name string, basePrice float64) *model.Service {
	f.t.Helper()
	now := time.Now().UTC()
	svc := &model.Service{
		Base:      model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LabID:     labID,
		Name:      name,
		BasePrice: basePrice,
		Active:    true,
	}
	require.NoError(f.t, f.Repos.Catalog.Create(context.Background(), svc))
	return svc
}

func (f *Fixtures) PriceTable(labID uuid.UUID, name string) *model.PriceTable {
	f.t.Helper()
	now := time.Now().UTC()
	table := &model.PriceTable{
		Base:  model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LabID: labID,
		Name:  name,
	}
	require.NoError(f.t, f.Repos.PriceTables.Create(context.Background(), table))
	return table
}

func (f *Fixtures) TableItem(tableID, serviceID uuid.UUID, price float64) {
	f.t.Helper()
	item := &model.PriceTableItem{
		ID:        uuid.New(),
		TableID:   tableID,
		ServiceID: serviceID,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(f.t, f.Repos.PriceTables.UpsertItem(context.Background(), item))
}

func (f *Fixtures) Link(labID, clinicID uuid.UUID, tableID *uuid.UUID) *model.LabClinicLink {
	f.t.Helper()
	link := &model.LabClinicLink{
		ID:           uuid.New(),
		LabID:        labID,
		ClinicID:     clinicID,
		Active:       true,
		PriceTableID: tableID,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(f.t, f.Repos.Links.Create(context.Background(), link))
	return link
}

func (f *Fixtures) Job(labID, clinicID uuid.UUID, status model.JobStatus, promised time.Time) *model.Job {
	f.t.Helper()
	now := time.Now().UTC()
	job := &model.Job{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LabID:        labID,
		ClinicID:     clinicID,
		PatientName:  "Patient " + uuid.NewString()[:8],
		PromisedDate: promised.UTC(),
		Status:       status,
		CreatedBy:    model.AccountKindLab,
	}
	require.NoError(f.t, f.Repos.Jobs.Create(context.Background(), job))
	return job
}
