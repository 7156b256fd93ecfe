package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/logger"
	"github.com/jwalitptl/dentallab-api/pkg/metrics"
)

const pushTimeout = 3 * time.Second

// Pusher delivers an event to connected sessions. Delivery is at most once.
type Pusher interface {
	Send(ctx context.Context, event model.PushEvent) error
}

type Service struct {
	repo    repository.NotificationRepository
	pusher  Pusher
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.NotificationRepository, pusher Pusher, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.NewMetrics("dentallab", nil)
	}
	return &Service{
		repo:    repo,
		pusher:  pusher,
		log:     log.With("notification"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Dispatch persists the notification and then pushes it. Only persistence can
// fail the call.
func (s *Service) Dispatch(ctx context.Context, to model.Recipient, title, body string, link *string) (*model.Notification, error) {
	n, err := s.Record(ctx, to, title, body, link)
	if err != nil {
		return nil, err
	}
	s.Push(ctx, n)
	return n, nil
}

// Record persists an unread notification. It joins the caller's transaction
// when ctx carries one.
func (s *Service) Record(ctx context.Context, to model.Recipient, title, body string, link *string) (*model.Notification, error) {
	if to.ID == uuid.Nil {
		return nil, apperrors.Validation("notification recipient is required")
	}
	if title == "" {
		return nil, apperrors.Validation("notification title is required")
	}

	n := &model.Notification{
		ID:            uuid.New(),
		RecipientKind: to.Kind,
		RecipientID:   to.ID,
		Title:         title,
		Body:          body,
		Link:          link,
		CreatedAt:     s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to record notification: %w", err)
	}
	s.metrics.NotificationsRecorded.Inc()
	return n, nil
}

// Push delivers a recorded notification. Failures are logged and dropped.
func (s *Service) Push(ctx context.Context, n *model.Notification) {
	if s.pusher == nil || n == nil {
		return
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	event := model.PushEvent{
		Type:         model.PushEventNotification,
		Recipient:    n.Recipient(),
		Notification: n,
	}
	if err := s.pusher.Send(pushCtx, event); err != nil {
		s.metrics.PushFailures.Inc()
		s.log.Warn(err, "failed to push notification",
			"notification_id", n.ID.String(),
			"recipient", n.Recipient().String(),
		)
	}
}

func (s *Service) List(ctx context.Context, to model.Recipient, page model.Pagination) ([]*model.Notification, int, error) {
	items, total, err := s.repo.List(ctx, to, page)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*model.Notification{}
	}
	return items, total, nil
}

func (s *Service) CountUnread(ctx context.Context, to model.Recipient) (int, error) {
	return s.repo.CountUnread(ctx, to)
}

func (s *Service) MarkRead(ctx context.Context, to model.Recipient, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, to, id)
}

func (s *Service) MarkAllRead(ctx context.Context, to model.Recipient) error {
	return s.repo.MarkAllRead(ctx, to)
}

func (s *Service) Delete(ctx context.Context, to model.Recipient, id uuid.UUID) error {
	return s.repo.Delete(ctx, to, id)
}

func (s *Service) DeleteAll(ctx context.Context, to model.Recipient) error {
	return s.repo.DeleteAll(ctx, to)
}
