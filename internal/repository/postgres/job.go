package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
)

const jobColumns = `id, lab_id, clinic_id, service_id, patient_name, teeth, shade, notes,
	promised_date, status, final_price, paid, created_by, created_at, updated_at`

type jobRepository struct {
	BaseRepository
}

func NewJobRepository(db *sqlx.DB) repository.JobRepository {
	return &jobRepository{NewBaseRepository(db)}
}

func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.exec(ctx, query,
		job.ID, job.LabID, job.ClinicID, job.ServiceID, job.PatientName, job.Teeth,
		job.Shade, job.Notes, job.PromisedDate, job.Status, job.FinalPrice, job.Paid,
		job.CreatedBy, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *jobRepository) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := r.get(ctx, "job", &job, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus) error {
	return r.execOne(ctx, "job",
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), id)
}

func (r *jobRepository) SetPaid(ctx context.Context, id uuid.UUID, paid bool) error {
	return r.execOne(ctx, "job",
		`UPDATE jobs SET paid = ?, updated_at = ? WHERE id = ?`, paid, time.Now().UTC(), id)
}

func (r *jobRepository) SetPrice(ctx context.Context, id uuid.UUID, price float64) error {
	return r.execOne(ctx, "job",
		`UPDATE jobs SET final_price = ?, updated_at = ? WHERE id = ?`, price, time.Now().UTC(), id)
}

func (r *jobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "job", `DELETE FROM jobs WHERE id = ?`, id)
}

// List applies the stored-column filters. Lateness is derived by the caller.
func (r *jobRepository) List(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []interface{}

	if filter.LabID != nil {
		query += ` AND lab_id = ?`
		args = append(args, *filter.LabID)
	}
	if filter.ClinicID != nil {
		query += ` AND clinic_id = ?`
		args = append(args, *filter.ClinicID)
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY promised_date, created_at`

	if filter.PageSize > 0 {
		page := filter.Pagination.Normalize()
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.PageSize, page.Offset())
	}

	var jobs []*model.Job
	if err := r.selectAll(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) CountByClinic(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var count int
	if err := r.get(ctx, "job", &count, `SELECT COUNT(*) FROM jobs WHERE clinic_id = ?`, clinicID); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

const attachmentColumns = `id, job_id, file_name, content_type, size_bytes, storage_key, url, uploaded_by, created_at`

type attachmentRepository struct {
	BaseRepository
}

func NewAttachmentRepository(db *sqlx.DB) repository.AttachmentRepository {
	return &attachmentRepository{NewBaseRepository(db)}
}

func (r *attachmentRepository) Create(ctx context.Context, att *model.Attachment) error {
	query := `INSERT INTO job_attachments (` + attachmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query,
		att.ID, att.JobID, att.FileName, att.ContentType, att.Size,
		att.StorageKey, att.URL, att.UploadedBy, att.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

func (r *attachmentRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Attachment, error) {
	var atts []*model.Attachment
	query := `SELECT ` + attachmentColumns + ` FROM job_attachments WHERE job_id = ? ORDER BY created_at`
	if err := r.selectAll(ctx, &atts, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return atts, nil
}

func (r *attachmentRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	if _, err := r.exec(ctx, `DELETE FROM job_attachments WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	return nil
}

const messageColumns = `id, job_id, author_kind, author_id, body, created_at`

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{NewBaseRepository(db)}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `INSERT INTO job_messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := r.exec(ctx, query, msg.ID, msg.JobID, msg.AuthorKind, msg.AuthorID, msg.Body, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Message, error) {
	var msgs []*model.Message
	query := `SELECT ` + messageColumns + ` FROM job_messages WHERE job_id = ? ORDER BY created_at`
	if err := r.selectAll(ctx, &msgs, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) DeleteByJob(ctx context.Context, jobID uuid.UUID) error {
	if _, err := r.exec(ctx, `DELETE FROM job_messages WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}
