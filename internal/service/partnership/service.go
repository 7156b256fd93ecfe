// Package partnership manages lab to clinic links: invites, redemption,
// manual clinics and per-clinic price tables.
package partnership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/dentallab-api/internal/email"
	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	"github.com/jwalitptl/dentallab-api/internal/service/access"
	"github.com/jwalitptl/dentallab-api/internal/service/audit"
	"github.com/jwalitptl/dentallab-api/internal/service/notification"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
	"github.com/jwalitptl/dentallab-api/pkg/metrics"
	"github.com/jwalitptl/dentallab-api/pkg/validator"
)

const DefaultInviteTTL = 7 * 24 * time.Hour

type Dependencies struct {
	Tx          repository.TxManager
	Labs        repository.LabRepository
	Clinics     repository.ClinicRepository
	Links       repository.LinkRepository
	Invites     repository.InviteRepository
	PriceTables repository.PriceTableRepository
	Jobs        repository.JobRepository
	Notifier    *notification.Service
	Mailer      email.Mailer
	Auditor     *audit.Service
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	InviteTTL   time.Duration
	// BaseURL prefixes invite links, e.g. https://app.example.com.
	BaseURL string
}

type Service struct {
	tx       repository.TxManager
	labs     repository.LabRepository
	clinics  repository.ClinicRepository
	links    repository.LinkRepository
	invites  repository.InviteRepository
	tables   repository.PriceTableRepository
	jobs     repository.JobRepository
	notifier *notification.Service
	mailer   email.Mailer
	auditor  *audit.Service
	log      *logger.Logger
	metrics  *metrics.Metrics
	ttl      time.Duration
	baseURL  string
	now      func() time.Time
}

func NewService(deps Dependencies) *Service {
	if deps.InviteTTL <= 0 {
		deps.InviteTTL = DefaultInviteTTL
	}
	if deps.Mailer == nil {
		deps.Mailer = email.NoopMailer{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics("dentallab", nil)
	}
	if deps.Auditor == nil {
		deps.Auditor = audit.NewService(nil)
	}
	return &Service{
		tx:       deps.Tx,
		labs:     deps.Labs,
		clinics:  deps.Clinics,
		links:    deps.Links,
		invites:  deps.Invites,
		tables:   deps.PriceTables,
		jobs:     deps.Jobs,
		notifier: deps.Notifier,
		mailer:   deps.Mailer,
		auditor:  deps.Auditor,
		log:      deps.Logger.With("partnership"),
		metrics:  deps.Metrics,
		ttl:      deps.InviteTTL,
		baseURL:  strings.TrimRight(deps.BaseURL, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// InviteLink is the URL a clinic opens to redeem token.
func (s *Service) InviteLink(token uuid.UUID) string {
	return s.baseURL + "/invite/" + token.String()
}

// IssueInvite creates a one-shot token for the actor's lab. When an email is
// given the link is mailed; a mail failure does not fail the invite.
func (s *Service) IssueInvite(ctx context.Context, actor *model.Account, req model.InviteRequest) (*model.InviteToken, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	now := s.now()
	invite := &model.InviteToken{
		ID:        uuid.New(),
		LabID:     lab.ID,
		Email:     req.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	if invite.Email != "" {
		if err := s.mailer.SendInvite(ctx, invite.Email, lab.Name, s.InviteLink(invite.ID)); err != nil {
			s.log.Warn(err, "failed to send invite email", "invite_id", invite.ID.String())
		}
	}

	s.auditor.Log(ctx, actor, "invite.issued", "invite", invite.ID)
	return invite, nil
}

func (s *Service) ListInvites(ctx context.Context, actor *model.Account) ([]*model.InviteToken, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	invites, err := s.invites.ListByLab(ctx, lab.ID)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []*model.InviteToken{}
	}
	return invites, nil
}

// RedeemInvite links the actor's clinic to the inviting lab. Consuming the
// token and creating the link commit together or not at all.
func (s *Service) RedeemInvite(ctx context.Context, actor *model.Account, token uuid.UUID) (*model.LabClinicLink, error) {
	clinic, err := access.RequireClinic(actor)
	if err != nil {
		return nil, err
	}

	var (
		link     *model.LabClinicLink
		recorded *model.Notification
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		invite, err := s.invites.Get(ctx, token)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInvite("invite does not exist")
		}
		if err != nil {
			return err
		}

		now := s.now()
		if invite.Used {
			return apperrors.InvalidInvite("invite was already used")
		}
		if !invite.Redeemable(now) {
			return apperrors.InvalidInvite("invite has expired")
		}

		won, err := s.invites.MarkUsed(ctx, invite.ID)
		if err != nil {
			return err
		}
		if !won {
			return apperrors.InvalidInvite("invite was already used")
		}

		link = &model.LabClinicLink{
			ID:        uuid.New(),
			LabID:     invite.LabID,
			ClinicID:  clinic.ID,
			Active:    true,
			CreatedAt: now,
		}
		if err := s.links.Create(ctx, link); err != nil {
			return err
		}

		recorded, err = s.notifier.Record(ctx, model.LabRecipient(invite.LabID),
			"New partner linked",
			fmt.Sprintf("%s accepted your invite", clinic.Name),
			nil,
		)
		return err
	})
	if err != nil {
		s.metrics.InviteRedemptions.WithLabelValues(apperrors.CodeOf(err).String()).Inc()
		return nil, err
	}
	s.notifier.Push(ctx, recorded)

	s.metrics.InviteRedemptions.WithLabelValues("success").Inc()
	s.auditor.Log(ctx, actor, "invite.redeemed", "invite", token, zap.String("link_id", link.ID.String()))
	return link, nil
}

// RemoveLink ends the partnership with clinicID. A clinic without its own
// login and without jobs is deleted together with its links.
func (s *Service) RemoveLink(ctx context.Context, actor *model.Account, clinicID uuid.UUID) error {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return err
	}
	clinic, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		return err
	}

	deleted := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.links.Deactivate(ctx, lab.ID, clinic.ID); err != nil {
			return err
		}
		if !clinic.IsManual() {
			return nil
		}
		jobs, err := s.jobs.CountByClinic(ctx, clinic.ID)
		if err != nil {
			return err
		}
		if jobs > 0 {
			return nil
		}
		if err := s.links.DeleteByClinic(ctx, clinic.ID); err != nil {
			return err
		}
		deleted = true
		return s.clinics.Delete(ctx, clinic.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove link: %w", err)
	}

	s.auditor.Log(ctx, actor, "link.removed", "clinic", clinic.ID, zap.Bool("clinic_deleted", deleted))
	return nil
}

// CreateManualClinic registers a clinic without a login on behalf of the
// lab and links it in the same transaction.
func (s *Service) CreateManualClinic(ctx context.Context, actor *model.Account, reg model.ClinicRegistration) (*model.Clinic, error) {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return nil, err
	}
	reg.Name = strings.TrimSpace(reg.Name)
	if err := validator.Validate(reg); err != nil {
		return nil, err
	}

	now := s.now()
	clinic := &model.Clinic{
		Base:    model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:    reg.Name,
		Email:   reg.Email,
		Phone:   reg.Phone,
		Address: reg.Address,
		Active:  true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.clinics.Create(ctx, clinic); err != nil {
			return err
		}
		return s.links.Create(ctx, &model.LabClinicLink{
			ID:        uuid.New(),
			LabID:     lab.ID,
			ClinicID:  clinic.ID,
			Active:    true,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create clinic: %w", err)
	}

	s.auditor.Log(ctx, actor, "clinic.created", "clinic", clinic.ID, zap.Bool("manual", true))
	return clinic, nil
}

// ListPartners returns the other side of every active link of the actor.
func (s *Service) ListPartners(ctx context.Context, actor *model.Account) ([]*model.Partner, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized(nil)
	}

	partners := []*model.Partner{}
	if labID, ok := actor.LabID(); ok {
		links, err := s.links.ListByLab(ctx, labID)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			clinic, err := s.clinics.Get(ctx, link.ClinicID)
			if err != nil {
				return nil, err
			}
			partners = append(partners, &model.Partner{Link: link, Clinic: clinic})
		}
		return partners, nil
	}

	clinicID, ok := actor.ClinicID()
	if !ok {
		return nil, apperrors.Forbidden("unknown account kind")
	}
	links, err := s.links.ListByClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		lab, err := s.labs.Get(ctx, link.LabID)
		if err != nil {
			return nil, err
		}
		// Clinics do not see which price table they were given.
		view := *link
		view.PriceTableID = nil
		partners = append(partners, &model.Partner{Link: &view, Lab: lab})
	}
	return partners, nil
}

// AssignPriceTable sets or clears (nil tableID) the table used to price jobs
// from clinicID.
func (s *Service) AssignPriceTable(ctx context.Context, actor *model.Account, clinicID uuid.UUID, tableID *uuid.UUID) error {
	lab, err := access.RequireLab(actor)
	if err != nil {
		return err
	}
	if tableID != nil {
		table, err := s.tables.Get(ctx, *tableID)
		if err != nil {
			return err
		}
		if table.LabID != lab.ID {
			return apperrors.NotFound("price table", nil)
		}
	}

	if err := s.links.AssignPriceTable(ctx, lab.ID, clinicID, tableID); err != nil {
		return err
	}

	fields := []zap.Field{}
	if tableID != nil {
		fields = append(fields, zap.String("price_table_id", tableID.String()))
	}
	s.auditor.Log(ctx, actor, "link.price_table_assigned", "clinic", clinicID, fields...)
	return nil
}
