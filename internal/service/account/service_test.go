package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/testutil"
	"github.com/jwalitptl/dentallab-api/pkg/auth"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

func newService(t *testing.T) (*Service, *testutil.Fixtures) {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	return NewService(fx.Repos.Labs, fx.Repos.Clinics, nil, 0), fx
}

func TestLabRegistrationAndApproval(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	lab, err := svc.RegisterLab(ctx, "sub-lab", model.LabRegistration{Name: "Smile Lab", Email: "lab@example.com"})
	require.NoError(t, err)
	assert.False(t, lab.Active)

	_, err = svc.Resolve(ctx, "sub-lab")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.ActivateLab(ctx, &auth.Claims{Role: "user"}, lab.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.ActivateLab(ctx, &auth.Claims{Role: auth.RoleAdmin}, lab.ID)
	require.NoError(t, err)

	acc, err := svc.Resolve(ctx, "sub-lab")
	require.NoError(t, err)
	assert.True(t, acc.IsLab())
	assert.Equal(t, lab.ID, acc.ID())
}

func TestResolveClinicAndUnknown(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	clinic, err := svc.RegisterClinic(ctx, "sub-clinic", model.ClinicRegistration{Name: "Clinic"})
	require.NoError(t, err)
	assert.True(t, clinic.Active)
	assert.False(t, clinic.IsManual())

	acc, err := svc.Resolve(ctx, "sub-clinic")
	require.NoError(t, err)
	assert.True(t, acc.IsClinic())
	assert.Equal(t, model.ClinicRecipient(clinic.ID), acc.Recipient())

	_, err = svc.Resolve(ctx, "nobody")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRegisterTwiceConflicts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.RegisterClinic(ctx, "sub", model.ClinicRegistration{Name: "Clinic"})
	require.NoError(t, err)

	_, err = svc.RegisterLab(ctx, "sub", model.LabRegistration{Name: "Lab"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = svc.RegisterClinic(ctx, "sub", model.ClinicRegistration{Name: "Again"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	_, err = svc.RegisterLab(ctx, "other", model.LabRegistration{Name: " "})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestUpdateBrandingRefreshesCache(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	lab := fx.Lab("Lab")

	acc, err := svc.Resolve(ctx, lab.OwnerSubject)
	require.NoError(t, err)

	_, err = svc.UpdateBranding(ctx, acc, model.Branding{BrandColor: "blue"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	updated, err := svc.UpdateBranding(ctx, acc, model.Branding{BrandColor: "#0055ff", LogoURL: "https://cdn.example.com/logo.png"})
	require.NoError(t, err)
	assert.Equal(t, "#0055ff", updated.BrandColor)

	acc, err = svc.Resolve(ctx, lab.OwnerSubject)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/logo.png", acc.Lab.LogoURL)
}

func TestActivateUnknownLab(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ActivateLab(context.Background(), &auth.Claims{Role: auth.RoleAdmin}, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
