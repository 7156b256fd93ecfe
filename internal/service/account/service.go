// Package account maps identity-provider subjects to laboratories and clinics
// and handles their registration.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	"github.com/jwalitptl/dentallab-api/internal/service/access"
	"github.com/jwalitptl/dentallab-api/internal/service/audit"
	"github.com/jwalitptl/dentallab-api/pkg/auth"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/validator"
)

const (
	DefaultCacheTTL = 2 * time.Minute
	cleanupInterval = 10 * time.Minute
)

type Service struct {
	labs    repository.LabRepository
	clinics repository.ClinicRepository
	cache   *cache.Cache
	auditor *audit.Service
	now     func() time.Time
}

func NewService(labs repository.LabRepository, clinics repository.ClinicRepository, auditor *audit.Service, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if auditor == nil {
		auditor = audit.NewService(nil)
	}
	return &Service{
		labs:    labs,
		clinics: clinics,
		cache:   cache.New(cacheTTL, cleanupInterval),
		auditor: auditor,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the account owned by subject. Laboratories awaiting
// approval are refused.
func (s *Service) Resolve(ctx context.Context, subject string) (*model.Account, error) {
	if subject == "" {
		return nil, apperrors.Unauthorized(nil)
	}
	if cached, ok := s.cache.Get(subject); ok {
		return cached.(*model.Account), nil
	}

	lab, err := s.labs.GetByOwner(ctx, subject)
	switch {
	case err == nil:
		if !lab.Active {
			return nil, apperrors.Forbidden("laboratory is pending approval")
		}
		acc := model.LabAccount(lab)
		s.cache.SetDefault(subject, acc)
		return acc, nil
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("failed to resolve laboratory: %w", err)
	}

	clinic, err := s.clinics.GetByOwner(ctx, subject)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.Unauthorized(fmt.Errorf("no account registered for subject"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve clinic: %w", err)
	}
	acc := model.ClinicAccount(clinic)
	s.cache.SetDefault(subject, acc)
	return acc, nil
}

// Invalidate drops the cached account of subject.
func (s *Service) Invalidate(subject string) {
	s.cache.Delete(subject)
}

func (s *Service) ensureUnregistered(ctx context.Context, subject string) error {
	if subject == "" {
		return apperrors.Unauthorized(nil)
	}
	if _, err := s.labs.GetByOwner(ctx, subject); err == nil {
		return apperrors.Conflict("a laboratory is already registered for this login", nil)
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if _, err := s.clinics.GetByOwner(ctx, subject); err == nil {
		return apperrors.Conflict("a clinic is already registered for this login", nil)
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

// RegisterLab creates an inactive laboratory owned by subject.
func (s *Service) RegisterLab(ctx context.Context, subject string, reg model.LabRegistration) (*model.Laboratory, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	if err := validator.Validate(reg); err != nil {
		return nil, err
	}
	if err := s.ensureUnregistered(ctx, subject); err != nil {
		return nil, err
	}

	now := s.now()
	lab := &model.Laboratory{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OwnerSubject: subject,
		Name:         reg.Name,
		Email:        reg.Email,
		Phone:        reg.Phone,
		Address:      reg.Address,
	}
	if err := s.labs.Create(ctx, lab); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, model.LabAccount(lab), "laboratory.registered", "laboratory", lab.ID)
	return lab, nil
}

func (s *Service) RegisterClinic(ctx context.Context, subject string, reg model.ClinicRegistration) (*model.Clinic, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	if err := validator.Validate(reg); err != nil {
		return nil, err
	}
	if err := s.ensureUnregistered(ctx, subject); err != nil {
		return nil, err
	}

	now := s.now()
	owner := subject
	clinic := &model.Clinic{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OwnerSubject: &owner,
		Name:         reg.Name,
		Email:        reg.Email,
		Phone:        reg.Phone,
		Address:      reg.Address,
		Active:       true,
	}
	if err := s.clinics.Create(ctx, clinic); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, model.ClinicAccount(clinic), "clinic.registered", "clinic", clinic.ID)
	return clinic, nil
}

// ActivateLab approves a laboratory. Only administrators may call it.
func (s *Service) ActivateLab(ctx context.Context, claims *auth.Claims, labID uuid.UUID) (*model.Laboratory, error) {
	if claims == nil {
		return nil, apperrors.Unauthorized(nil)
	}
	if !claims.IsAdmin() {
		return nil, apperrors.Forbidden("administrator role required")
	}

	lab, err := s.labs.Get(ctx, labID)
	if err != nil {
		return nil, err
	}
	if !lab.Active {
		if err := s.labs.SetActive(ctx, lab.ID, true); err != nil {
			return nil, err
		}
		lab.Active = true
	}
	s.Invalidate(lab.OwnerSubject)

	s.auditor.Log(ctx, nil, "laboratory.activated", "laboratory", lab.ID, zap.String("admin_subject", claims.Subject))
	return lab, nil
}

// UpdateBranding stores the lab's colour and logo shown to its clinics.
func (s *Service) UpdateBranding(ctx context.Context, actor *model.Account, branding model.Branding) (*model.Laboratory, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(branding); err != nil {
		return nil, err
	}
	if err := s.labs.UpdateBranding(ctx, lab.ID, branding); err != nil {
		return nil, err
	}
	s.Invalidate(lab.OwnerSubject)

	updated := *lab
	updated.BrandColor = branding.BrandColor
	updated.LogoURL = branding.LogoURL
	s.auditor.Log(ctx, actor, "laboratory.branding_updated", "laboratory", lab.ID)
	return &updated, nil
}
