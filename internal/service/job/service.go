// Package job implements the job lifecycle: creation with price resolution,
// status transitions, payment flags, deletion and per-job attachments and
// messages.
package job

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	"github.com/jwalitptl/dentallab-api/internal/service/access"
	"github.com/jwalitptl/dentallab-api/internal/service/audit"
	"github.com/jwalitptl/dentallab-api/internal/service/notification"
	"github.com/jwalitptl/dentallab-api/internal/service/pricing"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
	"github.com/jwalitptl/dentallab-api/pkg/metrics"
	"github.com/jwalitptl/dentallab-api/pkg/validator"
)

const maxMessageLength = 4000

// BlobStore holds attachment bytes. Upload returns a retrievable URL.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Remove(ctx context.Context, key string) error
}

type Dependencies struct {
	Tx          repository.TxManager
	Jobs        repository.JobRepository
	Attachments repository.AttachmentRepository
	Messages    repository.MessageRepository
	Labs        repository.LabRepository
	Clinics     repository.ClinicRepository
	Links       repository.LinkRepository
	Pricer      *pricing.Resolver
	Notifier    *notification.Service
	Blobs       BlobStore
	Auditor     *audit.Service
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
}

type Service struct {
	tx          repository.TxManager
	jobs        repository.JobRepository
	attachments repository.AttachmentRepository
	messages    repository.MessageRepository
	labs        repository.LabRepository
	clinics     repository.ClinicRepository
	links       repository.LinkRepository
	pricer      *pricing.Resolver
	notifier    *notification.Service
	blobs       BlobStore
	auditor     *audit.Service
	log         *logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewService(deps Dependencies) *Service {
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
		tx:          deps.Tx,
		jobs:        deps.Jobs,
		attachments: deps.Attachments,
		messages:    deps.Messages,
		labs:        deps.Labs,
		clinics:     deps.Clinics,
		links:       deps.Links,
		pricer:      deps.Pricer,
		notifier:    deps.Notifier,
		blobs:       deps.Blobs,
		auditor:     deps.Auditor,
		log:         deps.Logger.With("job"),
		metrics:     deps.Metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source used for creation stamps and derived
// lateness.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func jobLink(id uuid.UUID) *string {
	link := "/jobs/" + id.String()
	return &link
}

func (s *Service) Create(ctx context.Context, actor *model.Account, req *model.CreateJobRequest) (*model.JobView, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized(nil)
	}
	if req == nil {
		return nil, apperrors.BadRequest("missing job request", nil)
	}
	req.PatientName = strings.TrimSpace(req.PatientName)
	if err := validator.Validate(req); err != nil {
		return nil, err
	}
	if !access.CanCreate(actor, req) {
		return nil, apperrors.Forbidden("jobs can only be created for your own lab or clinic")
	}

	lab, err := s.labs.Get(ctx, req.LabID)
	if err != nil {
		return nil, err
	}
	if _, err := s.clinics.Get(ctx, req.ClinicID); err != nil {
		return nil, err
	}
	// Jobs only flow between partners.
	if _, err := s.links.GetActive(ctx, req.LabID, req.ClinicID); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Forbidden("lab and clinic are not partners")
		}
		return nil, fmt.Errorf("failed to load link: %w", err)
	}

	quote, err := s.pricer.Resolve(ctx, pricing.Input{
		LabID:     req.LabID,
		ClinicID:  req.ClinicID,
		ServiceID: req.ServiceID,
		Manual:    req.ManualPrice,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &model.Job{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		LabID:        req.LabID,
		ClinicID:     req.ClinicID,
		ServiceID:    req.ServiceID,
		PatientName:  req.PatientName,
		Teeth:        req.Teeth,
		Shade:        req.Shade,
		Notes:        req.Notes,
		PromisedDate: req.PromisedDate.UTC(),
		Status:       model.JobStatusPending,
		FinalPrice:   quote.Price,
		CreatedBy:    actor.Kind,
	}

	var recorded *model.Notification
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.jobs.Create(ctx, job); err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		if !actor.IsClinic() {
			return nil
		}
		recorded, err = s.notifier.Record(ctx, model.LabRecipient(lab.ID),
			"New job received",
			fmt.Sprintf("%s sent a job for %s", actor.DisplayName(), job.PatientName),
			jobLink(job.ID),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Push(ctx, recorded)

	s.metrics.JobsCreated.WithLabelValues(string(actor.Kind)).Inc()
	s.metrics.PriceResolved.WithLabelValues(string(quote.Source)).Inc()
	s.auditor.Log(ctx, actor, "job.created", "job", job.ID,
		zap.Float64("final_price", job.FinalPrice),
		zap.String("price_source", string(quote.Source)),
	)

	return model.NewJobView(job, s.now()), nil
}

// Transition moves the job to next. Only the owning lab may do so and only to
// an adjacent state.
func (s *Service) Transition(ctx context.Context, actor *model.Account, jobID uuid.UUID, next model.JobStatus) (*model.JobView, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !access.CanMutateStatus(actor, job) {
		return nil, apperrors.Unauthorized(fmt.Errorf("only the owning lab may change job status"))
	}
	if !job.Status.CanTransition(next) {
		return nil, apperrors.InvalidTransition(string(job.Status), string(next))
	}

	previous := job.Status
	var recorded *model.Notification
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.jobs.UpdateStatus(ctx, job.ID, next); err != nil {
			return fmt.Errorf("failed to update job status: %w", err)
		}
		recorded, err = s.notifier.Record(ctx, model.ClinicRecipient(job.ClinicID),
			"Job status updated",
			fmt.Sprintf("Job for %s is now %s", job.PatientName, next),
			jobLink(job.ID),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Push(ctx, recorded)

	job.Status = next
	job.UpdatedAt = s.now()
	s.metrics.JobTransitions.WithLabelValues(string(previous), string(next)).Inc()
	s.auditor.Log(ctx, actor, "job.transitioned", "job", job.ID,
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
	)

	return model.NewJobView(job, s.now()), nil
}

// MarkPaid toggles the paid flag. Status is left untouched.
func (s *Service) MarkPaid(ctx context.Context, actor *model.Account, jobID uuid.UUID, paid bool) (*model.JobView, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !access.CanMutateStatus(actor, job) {
		return nil, apperrors.Unauthorized(fmt.Errorf("only the owning lab may change payment"))
	}

	if err := s.jobs.SetPaid(ctx, job.ID, paid); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}
	job.Paid = paid

	s.auditor.Log(ctx, actor, "job.paid", "job", job.ID, zap.Bool("paid", paid))
	return model.NewJobView(job, s.now()), nil
}

// UpdatePrice overwrites the final price resolved at creation.
func (s *Service) UpdatePrice(ctx context.Context, actor *model.Account, jobID uuid.UUID, price float64) (*model.JobView, error) {
	if price < 0 {
		return nil, apperrors.Validation("price must not be negative")
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !access.CanMutateStatus(actor, job) {
		return nil, apperrors.Unauthorized(fmt.Errorf("only the owning lab may change the price"))
	}

	if err := s.jobs.SetPrice(ctx, job.ID, price); err != nil {
		return nil, fmt.Errorf("failed to update price: %w", err)
	}
	previous := job.FinalPrice
	job.FinalPrice = price

	s.auditor.Log(ctx, actor, "job.repriced", "job", job.ID,
		zap.Float64("from", previous),
		zap.Float64("to", price),
	)
	return model.NewJobView(job, s.now()), nil
}

// Delete removes the job with its messages and attachment rows in one
// transaction. Stored blobs are released afterwards; a failed release is
// logged and does not undo the delete.
func (s *Service) Delete(ctx context.Context, actor *model.Account, jobID uuid.UUID) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := access.RequireView(actor, job); err != nil {
		return err
	}

	var attachments []*model.Attachment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		attachments, err = s.attachments.ListByJob(ctx, job.ID)
		if err != nil {
			return err
		}
		if err := s.messages.DeleteByJob(ctx, job.ID); err != nil {
			return err
		}
		if err := s.attachments.DeleteByJob(ctx, job.ID); err != nil {
			return err
		}
		return s.jobs.Delete(ctx, job.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	s.releaseBlobs(ctx, job.ID, attachments)
	s.metrics.JobsDeleted.Inc()
	s.auditor.Log(ctx, actor, "job.deleted", "job", job.ID, zap.Int("attachments", len(attachments)))
	return nil
}

func (s *Service) releaseBlobs(ctx context.Context, jobID uuid.UUID, attachments []*model.Attachment) {
	if s.blobs == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, att := range attachments {
		if err := s.blobs.Remove(ctx, att.StorageKey); err != nil {
			s.metrics.StorageCleanupFailures.Inc()
			s.log.Error(err, "failed to release attachment",
				"job_id", jobID.String(),
				"attachment_id", att.ID.String(),
				"storage_key", att.StorageKey,
			)
		}
	}
}

func (s *Service) Get(ctx context.Context, actor *model.Account, jobID uuid.UUID) (*model.JobView, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireView(actor, job); err != nil {
		return nil, err
	}
	return model.NewJobView(job, s.now()), nil
}

// List returns the actor's jobs. The filter is narrowed to the actor's own
// side so other parties' jobs never appear.
func (s *Service) List(ctx context.Context, actor *model.Account, filter model.JobFilter) ([]*model.JobView, error) {
	if err := scope(actor, &filter); err != nil {
		return nil, err
	}

	page := filter.Pagination
	if filter.LateOnly {
		// Lateness is derived, so paging happens after filtering.
		filter.Pagination = model.Pagination{}
	}

	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	today := s.now()
	views := make([]*model.JobView, 0, len(jobs))
	for _, job := range jobs {
		view := model.NewJobView(job, today)
		if filter.LateOnly && !view.Late {
			continue
		}
		views = append(views, view)
	}

	if filter.LateOnly && page.PageSize > 0 {
		views = paginate(views, page.Normalize())
	}
	return views, nil
}

func paginate(views []*model.JobView, page model.Pagination) []*model.JobView {
	start := page.Offset()
	if start >= len(views) {
		return []*model.JobView{}
	}
	end := start + page.PageSize
	if end > len(views) {
		end = len(views)
	}
	return views[start:end]
}

func scope(actor *model.Account, filter *model.JobFilter) error {
	if actor == nil {
		return apperrors.Unauthorized(nil)
	}
	if labID, ok := actor.LabID(); ok {
		filter.LabID = &labID
		return nil
	}
	if clinicID, ok := actor.ClinicID(); ok {
		filter.ClinicID = &clinicID
		return nil
	}
	return apperrors.Forbidden("unknown account kind")
}

// FinancialSummary totals the actor's final prices per payment state.
func (s *Service) FinancialSummary(ctx context.Context, actor *model.Account) (*model.FinancialSummary, error) {
	views, err := s.List(ctx, actor, model.JobFilter{})
	if err != nil {
		return nil, err
	}
	summary := &model.FinancialSummary{}
	for _, view := range views {
		summary.Add(view)
	}
	return summary, nil
}

// AddAttachment uploads data to the blob store and records the returned
// reference on the job.
func (s *Service) AddAttachment(ctx context.Context, actor *model.Account, jobID uuid.UUID, fileName, contentType string, data []byte) (*model.Attachment, error) {
	if s.blobs == nil {
		return nil, apperrors.Internal(fmt.Errorf("attachment storage is not configured"))
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireView(actor, job); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.Validation("attachment is empty")
	}

	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	att := &model.Attachment{
		ID:          uuid.New(),
		JobID:       job.ID,
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedBy:  actor.Kind,
		CreatedAt:   s.now(),
	}
	att.StorageKey = fmt.Sprintf("jobs/%s/%s-%s", job.ID, att.ID, name)

	url, err := s.blobs.Upload(ctx, att.StorageKey, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}
	att.URL = url

	if err := s.attachments.Create(ctx, att); err != nil {
		s.releaseBlobs(ctx, job.ID, []*model.Attachment{att})
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}

	s.auditor.Log(ctx, actor, "job.attachment_added", "job", job.ID,
		zap.String("file_name", name),
		zap.Int64("size", att.Size),
	)
	return att, nil
}

func (s *Service) ListAttachments(ctx context.Context, actor *model.Account, jobID uuid.UUID) ([]*model.Attachment, error) {
	if _, err := s.Get(ctx, actor, jobID); err != nil {
		return nil, err
	}
	items, err := s.attachments.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Attachment{}
	}
	return items, nil
}

func (s *Service) PostMessage(ctx context.Context, actor *model.Account, jobID uuid.UUID, body string) (*model.Message, error) {
	if _, err := s.Get(ctx, actor, jobID); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.Validation("message body is required")
	}
	if len(body) > maxMessageLength {
		return nil, apperrors.Validation("message body must be at most %d characters", maxMessageLength)
	}

	msg := &model.Message{
		ID:         uuid.New(),
		JobID:      jobID,
		AuthorKind: actor.Kind,
		AuthorID:   actor.ID(),
		Body:       body,
		CreatedAt:  s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, actor *model.Account, jobID uuid.UUID) ([]*model.Message, error) {
	if _, err := s.Get(ctx, actor, jobID); err != nil {
		return nil, err
	}
	items, err := s.messages.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Message{}
	}
	return items, nil
}
