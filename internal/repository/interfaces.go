package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/dentallab-api/internal/model"
)

// All repository interfaces in one file
type (
	// TxManager runs fn in a single transaction. Repositories called with the
	// context passed to fn join that transaction.
	TxManager interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	LabRepository interface {
		Create(ctx context.Context, lab *model.Laboratory) error
		Get(ctx context.Context, id uuid.UUID) (*model.Laboratory, error)
		GetByOwner(ctx context.Context, subject string) (*model.Laboratory, error)
		SetActive(ctx context.Context, id uuid.UUID, active bool) error
		UpdateBranding(ctx context.Context, id uuid.UUID, branding model.Branding) error
	}

	ClinicRepository interface {
		Create(ctx context.Context, clinic *model.Clinic) error
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		GetByOwner(ctx context.Context, subject string) (*model.Clinic, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	LinkRepository interface {
		Create(ctx context.Context, link *model.LabClinicLink) error
		GetActive(ctx context.Context, labID, clinicID uuid.UUID) (*model.LabClinicLink, error)
		Deactivate(ctx context.Context, labID, clinicID uuid.UUID) error
		AssignPriceTable(ctx context.Context, labID, clinicID uuid.UUID, tableID *uuid.UUID) error
		ClearPriceTable(ctx context.Context, tableID uuid.UUID) error
		ListByLab(ctx context.Context, labID uuid.UUID) ([]*model.LabClinicLink, error)
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.LabClinicLink, error)
		// DeleteByClinic removes every link row, active or not, of the clinic.
		DeleteByClinic(ctx context.Context, clinicID uuid.UUID) error
	}

	InviteRepository interface {
		Create(ctx context.Context, invite *model.InviteToken) error
		Get(ctx context.Context, id uuid.UUID) (*model.InviteToken, error)
		// MarkUsed flips the used flag and reports whether this call won it.
		MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)
		ListByLab(ctx context.Context, labID uuid.UUID) ([]*model.InviteToken, error)
	}

	CatalogRepository interface {
		Create(ctx context.Context, svc *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, svc *model.Service) error
		List(ctx context.Context, labID uuid.UUID, activeOnly bool) ([]*model.Service, error)
	}

	PriceTableRepository interface {
		Create(ctx context.Context, table *model.PriceTable) error
		Get(ctx context.Context, id uuid.UUID) (*model.PriceTable, error)
		List(ctx context.Context, labID uuid.UUID) ([]*model.PriceTable, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListItems(ctx context.Context, tableID uuid.UUID) ([]model.PriceTableItem, error)
		GetItem(ctx context.Context, tableID, serviceID uuid.UUID) (*model.PriceTableItem, error)
		// InsertItemIfAbsent reports whether a new row was written.
		InsertItemIfAbsent(ctx context.Context, item *model.PriceTableItem) (bool, error)
		UpsertItem(ctx context.Context, item *model.PriceTableItem) error
		DeleteItem(ctx context.Context, tableID, serviceID uuid.UUID) error
	}

	JobRepository interface {
		Create(ctx context.Context, job *model.Job) error
		Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus) error
		SetPaid(ctx context.Context, id uuid.UUID, paid bool) error
		SetPrice(ctx context.Context, id uuid.UUID, price float64) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.JobFilter) ([]*model.Job, error)
		CountByClinic(ctx context.Context, clinicID uuid.UUID) (int, error)
	}

	AttachmentRepository interface {
		Create(ctx context.Context, att *model.Attachment) error
		ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Attachment, error)
		DeleteByJob(ctx context.Context, jobID uuid.UUID) error
	}

	MessageRepository interface {
		Create(ctx context.Context, msg *model.Message) error
		ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Message, error)
		DeleteByJob(ctx context.Context, jobID uuid.UUID) error
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		List(ctx context.Context, recipient model.Recipient, page model.Pagination) ([]*model.Notification, int, error)
		CountUnread(ctx context.Context, recipient model.Recipient) (int, error)
		MarkRead(ctx context.Context, recipient model.Recipient, id uuid.UUID) error
		MarkAllRead(ctx context.Context, recipient model.Recipient) error
		Delete(ctx context.Context, recipient model.Recipient, id uuid.UUID) error
		DeleteAll(ctx context.Context, recipient model.Recipient) error
	}
)
