package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/service/notification"
	"github.com/jwalitptl/dentallab-api/internal/service/pricing"
	"github.com/jwalitptl/dentallab-api/internal/testutil"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

type harness struct {
	fx       *testutil.Fixtures
	svc      *Service
	notifier *notification.Service
	pusher   *testutil.RecordingPusher
	blobs    *testutil.MemoryBlobStore
	clock    *testutil.Clock
}

func newHarness(t *testing.T) *harness {
	db := testutil.NewDB(t)
	fx := testutil.NewFixtures(t, db)
	r := fx.Repos

	pusher := &testutil.RecordingPusher{}
	blobs := testutil.NewMemoryBlobStore()
	clock := testutil.NewClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	notifier := notification.NewService(r.Notifications, pusher, nil, nil)

	svc := NewService(Dependencies{
		Tx:          r.Tx,
		Jobs:        r.Jobs,
		Attachments: r.Attachments,
		Messages:    r.Messages,
		Labs:        r.Labs,
		Clinics:     r.Clinics,
		Links:       r.Links,
		Pricer:      pricing.NewResolver(r.Catalog, r.Links, r.PriceTables),
		Notifier:    notifier,
		Blobs:       blobs,
	}).WithClock(clock.Now)

	return &harness{fx: fx, svc: svc, notifier: notifier, pusher: pusher, blobs: blobs, clock: clock}
}

func (h *harness) request(lab *model.Laboratory, clinic *model.Clinic, serviceID *uuid.UUID) *model.CreateJobRequest {
	return &model.CreateJobRequest{
		LabID:        lab.ID,
		ClinicID:     clinic.ID,
		ServiceID:    serviceID,
		PatientName:  "Maria Silva",
		Teeth:        "11,12",
		Shade:        "A2",
		PromisedDate: h.clock.Now().AddDate(0, 0, 5),
	}
}

func TestCreatePricingScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	lab := h.fx.Lab("Lab L")
	clinic := h.fx.Clinic("Clinic C")
	svc := h.fx.Service(lab.ID, "Crown", 100)
	table := h.fx.PriceTable(lab.ID, "Partners")
	h.fx.TableItem(table.ID, svc.ID, 80)
	h.fx.Link(lab.ID, clinic.ID, &table.ID)

	fromClinic, err := h.svc.Create(ctx, model.ClinicAccount(clinic), h.request(lab, clinic, &svc.ID))
	require.NoError(t, err)
	assert.Equal(t, 80.0, fromClinic.FinalPrice)
	assert.Equal(t, model.JobStatusPending, fromClinic.Status)
	assert.Equal(t, model.AccountKindClinic, fromClinic.CreatedBy)

	manual := 50.0
	req := h.request(lab, clinic, &svc.ID)
	req.ManualPrice = &manual
	fromLab, err := h.svc.Create(ctx, model.LabAccount(lab), req)
	require.NoError(t, err)
	assert.Equal(t, 50.0, fromLab.FinalPrice)
}

func TestCreateNotifiesLabOnlyForClinicSubmissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	h.fx.Link(lab.ID, clinic.ID, nil)

	_, err := h.svc.Create(ctx, model.LabAccount(lab), h.request(lab, clinic, nil))
	require.NoError(t, err)
	assert.Empty(t, h.pusher.Sent())

	job, err := h.svc.Create(ctx, model.ClinicAccount(clinic), h.request(lab, clinic, nil))
	require.NoError(t, err)
	assert.Zero(t, job.FinalPrice)

	sent := h.pusher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, model.LabRecipient(lab.ID), sent[0].Recipient)
	assert.Equal(t, "New job received", sent[0].Notification.Title)

	count, err := h.notifier.CountUnread(ctx, model.LabRecipient(lab.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	other := h.fx.Clinic("Other")
	h.fx.Link(lab.ID, clinic.ID, nil)

	req := h.request(lab, clinic, nil)
	req.PatientName = "   "
	_, err := h.svc.Create(ctx, model.LabAccount(lab), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = h.svc.Create(ctx, model.ClinicAccount(other), h.request(lab, clinic, nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	missing := h.request(lab, clinic, nil)
	missing.ClinicID = uuid.New()
	_, err = h.svc.Create(ctx, model.LabAccount(lab), missing)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = h.svc.Create(ctx, nil, h.request(lab, clinic, nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestCreateRequiresPartnership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	stranger := h.fx.Clinic("Stranger")

	_, err := h.svc.Create(ctx, model.ClinicAccount(stranger), h.request(lab, stranger, nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = h.svc.Create(ctx, model.LabAccount(lab), h.request(lab, stranger, nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	count, err := h.notifier.CountUnread(ctx, model.LabRecipient(lab.ID))
	require.NoError(t, err)
	assert.Zero(t, count)

	jobs, err := h.fx.Repos.Jobs.List(ctx, model.JobFilter{LabID: &lab.ID})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestCreateManualPriceStillChecksService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	rival := h.fx.Lab("Rival")
	clinic := h.fx.Clinic("Clinic")
	h.fx.Link(lab.ID, clinic.ID, nil)
	foreign := h.fx.Service(rival.ID, "Rival crown", 300)

	manual := 10.0
	req := h.request(lab, clinic, &foreign.ID)
	req.ManualPrice = &manual
	_, err := h.svc.Create(ctx, model.LabAccount(lab), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	missing := uuid.New()
	req = h.request(lab, clinic, &missing)
	req.ManualPrice = &manual
	_, err = h.svc.Create(ctx, model.LabAccount(lab), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	jobs, err := h.fx.Repos.Jobs.List(ctx, model.JobFilter{LabID: &lab.ID})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestTransitionSequence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now().AddDate(0, 0, 3))
	actor := model.LabAccount(lab)

	_, err := h.svc.Transition(ctx, actor, job.ID, model.JobStatusCompleted)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	for _, next := range []model.JobStatus{
		model.JobStatusInProduction,
		model.JobStatusCompleted,
		model.JobStatusInProduction,
		model.JobStatusPending,
	} {
		view, err := h.svc.Transition(ctx, actor, job.ID, next)
		require.NoError(t, err, next)
		assert.Equal(t, next, view.Status)
	}

	stored, err := h.fx.Repos.Jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, stored.Status)
}

func TestTransitionNotifiesClinic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())

	_, err := h.svc.Transition(ctx, model.LabAccount(lab), job.ID, model.JobStatusInProduction)
	require.NoError(t, err)

	items, total, err := h.notifier.List(ctx, model.ClinicRecipient(clinic.ID), model.Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.False(t, items[0].Read)
	assert.Equal(t, "/jobs/"+job.ID.String(), *items[0].Link)
	assert.Contains(t, items[0].Body, "InProduction")
}

func TestTransitionCommitsWhenPushFails(t *testing.T) {
	h := newHarness(t)
	h.pusher.Err = errors.New("socket closed")
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())

	_, err := h.svc.Transition(ctx, model.LabAccount(lab), job.ID, model.JobStatusInProduction)
	require.NoError(t, err)

	stored, err := h.fx.Repos.Jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusInProduction, stored.Status)
}

func TestOnlyOwningLabMutates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	otherLab := h.fx.Lab("Other lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())

	_, err := h.svc.Transition(ctx, model.ClinicAccount(clinic), job.ID, model.JobStatusInProduction)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = h.svc.Transition(ctx, model.LabAccount(otherLab), job.ID, model.JobStatusInProduction)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = h.svc.MarkPaid(ctx, model.ClinicAccount(clinic), job.ID, true)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	// The clinic still sees the job.
	_, err = h.svc.Get(ctx, model.ClinicAccount(clinic), job.ID)
	assert.NoError(t, err)

	_, err = h.svc.Get(ctx, model.LabAccount(otherLab), job.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestMarkPaidKeepsStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusCompleted, h.clock.Now().AddDate(0, 0, -1))

	view, err := h.svc.Get(ctx, model.LabAccount(lab), job.ID)
	require.NoError(t, err)
	assert.False(t, view.Late)
	assert.Equal(t, model.PaymentDue, view.PaymentState)

	view, err = h.svc.MarkPaid(ctx, model.LabAccount(lab), job.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, view.Status)
	assert.Equal(t, model.PaymentReceived, view.PaymentState)
}

func TestUpdatePrice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())

	_, err := h.svc.UpdatePrice(ctx, model.LabAccount(lab), job.ID, -1)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	view, err := h.svc.UpdatePrice(ctx, model.LabAccount(lab), job.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, 120.0, view.FinalPrice)
}

func TestListDerivesLateness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	otherClinic := h.fx.Clinic("Other")
	today := h.clock.Now()

	late := h.fx.Job(lab.ID, clinic.ID, model.JobStatusInProduction, today.AddDate(0, 0, -1))
	h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, today.AddDate(0, 0, 2))
	h.fx.Job(lab.ID, otherClinic.ID, model.JobStatusCompleted, today.AddDate(0, 0, -2))

	all, err := h.svc.List(ctx, model.LabAccount(lab), model.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	lateOnly, err := h.svc.List(ctx, model.LabAccount(lab), model.JobFilter{LateOnly: true})
	require.NoError(t, err)
	require.Len(t, lateOnly, 1)
	assert.Equal(t, late.ID, lateOnly[0].ID)

	// A clinic only ever sees its own jobs.
	mine, err := h.svc.List(ctx, model.ClinicAccount(clinic), model.JobFilter{ClinicID: &otherClinic.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	// Two days on, the pending job reaches its promised date.
	h.clock.Advance(48 * time.Hour)
	lateOnly, err = h.svc.List(ctx, model.LabAccount(lab), model.JobFilter{LateOnly: true})
	require.NoError(t, err)
	assert.Len(t, lateOnly, 2)
}

func TestFinancialSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	today := h.clock.Now()
	actor := model.LabAccount(lab)

	due := h.fx.Job(lab.ID, clinic.ID, model.JobStatusCompleted, today)
	paid := h.fx.Job(lab.ID, clinic.ID, model.JobStatusCompleted, today.AddDate(0, 0, -3))
	upcoming := h.fx.Job(lab.ID, clinic.ID, model.JobStatusInProduction, today.AddDate(0, 0, 4))
	for id, price := range map[uuid.UUID]float64{due.ID: 100, paid.ID: 70, upcoming.ID: 30} {
		_, err := h.svc.UpdatePrice(ctx, actor, id, price)
		require.NoError(t, err)
	}
	_, err := h.svc.MarkPaid(ctx, actor, paid.ID, true)
	require.NoError(t, err)

	summary, err := h.svc.FinancialSummary(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, 100.0, summary.Due)
	assert.Equal(t, 70.0, summary.Received)
	assert.Equal(t, 30.0, summary.Upcoming)
	assert.Zero(t, summary.LateCount)
}

func TestDeleteCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())
	actor := model.ClinicAccount(clinic)

	att, err := h.svc.AddAttachment(ctx, actor, job.ID, "../scan.stl", "model/stl", []byte("solid"))
	require.NoError(t, err)
	assert.Equal(t, "scan.stl", att.FileName)
	assert.Equal(t, "memory://"+att.StorageKey, att.URL)
	_, err = h.svc.PostMessage(ctx, model.LabAccount(lab), job.ID, "Shade confirmed")
	require.NoError(t, err)
	require.Equal(t, 1, h.blobs.Len())

	require.NoError(t, h.svc.Delete(ctx, actor, job.ID))

	_, err = h.fx.Repos.Jobs.Get(ctx, job.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	atts, err := h.fx.Repos.Attachments.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, atts)
	msgs, err := h.fx.Repos.Messages.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Zero(t, h.blobs.Len())
}

func TestDeleteCompletesWhenStorageCleanupFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())
	actor := model.LabAccount(lab)

	_, err := h.svc.AddAttachment(ctx, actor, job.ID, "photo.jpg", "image/jpeg", []byte{0xff, 0xd8})
	require.NoError(t, err)
	h.blobs.RemoveErr = errors.New("bucket unavailable")

	require.NoError(t, h.svc.Delete(ctx, actor, job.ID))
	_, err = h.fx.Repos.Jobs.Get(ctx, job.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestDeleteRequiresParty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	stranger := h.fx.Clinic("Stranger")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())

	err := h.svc.Delete(ctx, model.ClinicAccount(stranger), job.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = h.svc.AddAttachment(ctx, model.ClinicAccount(stranger), job.ID, "a.pdf", "", []byte("x"))
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestMessages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lab := h.fx.Lab("Lab")
	clinic := h.fx.Clinic("Clinic")
	job := h.fx.Job(lab.ID, clinic.ID, model.JobStatusPending, h.clock.Now())

	_, err := h.svc.PostMessage(ctx, model.ClinicAccount(clinic), job.ID, "  ")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	msg, err := h.svc.PostMessage(ctx, model.ClinicAccount(clinic), job.ID, " Please rush ")
	require.NoError(t, err)
	assert.Equal(t, "Please rush", msg.Body)
	assert.Equal(t, clinic.ID, msg.AuthorID)

	msgs, err := h.svc.ListMessages(ctx, model.LabAccount(lab), job.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.AccountKindClinic, msgs[0].AuthorKind)
}
