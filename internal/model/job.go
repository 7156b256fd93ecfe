package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the closed set of production states.
type JobStatus string

const (
	JobStatusPending      JobStatus = "Pending"
	JobStatusInProduction JobStatus = "InProduction"
	JobStatusCompleted    JobStatus = "Completed"
	JobStatusCancelled    JobStatus = "Cancelled"
)

// legacyStatuses maps historical status strings onto canonical states. They
// are accepted on input and read, never written.
var legacyStatuses = map[string]JobStatus{
	"Recebido":   JobStatusPending,
	"EmProva":    JobStatusInProduction,
	"Finalizado": JobStatusCompleted,
	"Entregue":   JobStatusCompleted,
}

// LegacyStatusAliases returns a copy of the alias table.
func LegacyStatusAliases() map[string]JobStatus {
	out := make(map[string]JobStatus, len(legacyStatuses))
	for k, v := range legacyStatuses {
		out[k] = v
	}
	return out
}

// ParseJobStatus resolves canonical names and legacy aliases.
func ParseJobStatus(s string) (JobStatus, error) {
	switch st := JobStatus(s); st {
	case JobStatusPending, JobStatusInProduction, JobStatusCompleted, JobStatusCancelled:
		return st, nil
	}
	if st, ok := legacyStatuses[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCancelled
}

// IsClosed reports whether the job no longer counts as work in progress.
func (s JobStatus) IsClosed() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

var forwardOrder = []JobStatus{JobStatusPending, JobStatusInProduction, JobStatusCompleted}

func orderOf(s JobStatus) int {
	for i, st := range forwardOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether a job may move from s to next in one step.
// Production states move one step forward or back; Cancelled is reachable
// from every other state and is final.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next || s.IsTerminal() {
		return false
	}
	if next == JobStatusCancelled {
		return true
	}
	from, to := orderOf(s), orderOf(next)
	if from < 0 || to < 0 {
		return false
	}
	return to-from == 1 || from-to == 1
}

func (s *JobStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("job status is null")
	default:
		return fmt.Errorf("cannot scan %T into JobStatus", src)
	}
	st, err := ParseJobStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s JobStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *JobStatus) UnmarshalText(text []byte) error {
	st, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Job is a work order exchanged between a lab and a clinic.
type Job struct {
	Base
	LabID        uuid.UUID   `db:"lab_id" json:"lab_id"`
	ClinicID     uuid.UUID   `db:"clinic_id" json:"clinic_id"`
	ServiceID    *uuid.UUID  `db:"service_id" json:"service_id,omitempty"`
	PatientName  string      `db:"patient_name" json:"patient_name"`
	Teeth        string      `db:"teeth" json:"teeth"`
	Shade        string      `db:"shade" json:"shade"`
	Notes        string      `db:"notes" json:"notes"`
	PromisedDate time.Time   `db:"promised_date" json:"promised_date"`
	Status       JobStatus   `db:"status" json:"status"`
	FinalPrice   float64     `db:"final_price" json:"final_price"`
	Paid         bool        `db:"paid" json:"paid"`
	CreatedBy    AccountKind `db:"created_by" json:"created_by"`
}

// IsLate reports whether the job is still open on or after its promised day.
func (j *Job) IsLate(today time.Time) bool {
	if j.Status.IsClosed() {
		return false
	}
	return !DateOnly(today).Before(DateOnly(j.PromisedDate))
}

// PaymentState is the receivable state of a job: received, due or upcoming.
// Unpaid cancelled jobs report void, a fourth value, because nothing is owed
// for them however late they are.
type PaymentState string

const (
	PaymentReceived PaymentState = "received"
	PaymentDue      PaymentState = "due"
	PaymentUpcoming PaymentState = "upcoming"
	// PaymentVoid marks unpaid cancelled jobs, which are never receivable.
	PaymentVoid PaymentState = "void"
)

// PaymentState derives the receivable state of the job at today.
func (j *Job) PaymentState(today time.Time) PaymentState {
	switch {
	case j.Paid:
		return PaymentReceived
	case j.Status == JobStatusCancelled:
		return PaymentVoid
	case j.Status == JobStatusCompleted && !DateOnly(today).Before(DateOnly(j.PromisedDate)):
		return PaymentDue
	default:
		return PaymentUpcoming
	}
}

// JobView is a job together with the states derived at read time.
type JobView struct {
	*Job
	Late         bool         `json:"late"`
	PaymentState PaymentState `json:"payment_state"` // received, due, upcoming or void
}

func NewJobView(job *Job, today time.Time) *JobView {
	return &JobView{Job: job, Late: job.IsLate(today), PaymentState: job.PaymentState(today)}
}

// CreateJobRequest is submitted by either party. ManualPrice, when set, is
// used verbatim as the final price.
type CreateJobRequest struct {
	LabID        uuid.UUID  `json:"lab_id" validate:"required"`
	ClinicID     uuid.UUID  `json:"clinic_id" validate:"required"`
	ServiceID    *uuid.UUID `json:"service_id"`
	PatientName  string     `json:"patient_name" validate:"required"`
	Teeth        string     `json:"teeth"`
	Shade        string     `json:"shade"`
	Notes        string     `json:"notes"`
	PromisedDate time.Time  `json:"promised_date" validate:"required"`
	ManualPrice  *float64   `json:"manual_price"`
}

type JobFilter struct {
	Status   *JobStatus
	LabID    *uuid.UUID
	ClinicID *uuid.UUID
	LateOnly bool
	Pagination
}

// FinancialSummary aggregates final prices by payment state.
type FinancialSummary struct {
	Received      float64 `json:"received"`
	Due           float64 `json:"due"`
	Upcoming      float64 `json:"upcoming"`
	ReceivedCount int     `json:"received_count"`
	DueCount      int     `json:"due_count"`
	UpcomingCount int     `json:"upcoming_count"`
	LateCount     int     `json:"late_count"`
}

// Add folds one job into the summary.
func (s *FinancialSummary) Add(view *JobView) {
	if view.Late {
		s.LateCount++
	}
	switch view.PaymentState {
	case PaymentReceived:
		s.Received += view.FinalPrice
		s.ReceivedCount++
	case PaymentDue:
		s.Due += view.FinalPrice
		s.DueCount++
	case PaymentUpcoming:
		s.Upcoming += view.FinalPrice
		s.UpcomingCount++
	}
}

// Attachment references a blob held by the storage provider.
type Attachment struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	JobID       uuid.UUID   `db:"job_id" json:"job_id"`
	FileName    string      `db:"file_name" json:"file_name"`
	ContentType string      `db:"content_type" json:"content_type"`
	Size        int64       `db:"size_bytes" json:"size"`
	StorageKey  string      `db:"storage_key" json:"-"`
	URL         string      `db:"url" json:"url"`
	UploadedBy  AccountKind `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// Message is a chat entry on a job.
type Message struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	JobID      uuid.UUID   `db:"job_id" json:"job_id"`
	AuthorKind AccountKind `db:"author_kind" json:"author_kind"`
	AuthorID   uuid.UUID   `db:"author_id" json:"author_id"`
	Body       string      `db:"body" json:"body"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
