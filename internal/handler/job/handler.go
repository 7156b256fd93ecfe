package job

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dentallab-api/internal/handler"
	"github.com/jwalitptl/dentallab-api/internal/model"
	jobService "github.com/jwalitptl/dentallab-api/internal/service/job"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/httputil"
)

type Handler struct {
	service        *jobService.Service
	maxUploadBytes int64
}

func NewHandler(service *jobService.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	jobs := r.Group("/jobs")
	{
		jobs.POST("", h.CreateJob)
		jobs.GET("", h.ListJobs)
		jobs.GET("/summary", h.FinancialSummary)
		jobs.GET("/:id", h.GetJob)
		jobs.PUT("/:id/status", h.UpdateStatus)
		jobs.PUT("/:id/paid", h.MarkPaid)
		jobs.PUT("/:id/price", h.UpdatePrice)
		jobs.DELETE("/:id", h.DeleteJob)
		jobs.POST("/:id/attachments", h.AddAttachment)
		jobs.GET("/:id/attachments", h.ListAttachments)
		jobs.POST("/:id/messages", h.PostMessage)
		jobs.GET("/:id/messages", h.ListMessages)
	}
}

type statusRequest struct {
	Status model.JobStatus `json:"status" binding:"required"`
}

type paidRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}

type priceRequest struct {
	Price *float64 `json:"price" binding:"required"`
}

type messageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *Handler) CreateJob(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	view, err := h.service.Create(c.Request.Context(), acc, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, view)
}

// ListJobs accepts status, late, lab_id, clinic_id, page and page_size. The
// counterpart filter applies on top of the caller's own side.
func (h *Handler) ListJobs(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	views, err := h.service.List(c.Request.Context(), acc, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, views)
}

func parseFilter(c *gin.Context) (model.JobFilter, error) {
	var filter model.JobFilter

	if raw := c.Query("status"); raw != "" {
		st, err := model.ParseJobStatus(raw)
		if err != nil {
			return filter, apperrors.Validation("%v", err)
		}
		filter.Status = &st
	}
	if raw := c.Query("late"); raw != "" {
		late, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.Validation("invalid late")
		}
		filter.LateOnly = late
	}
	for name, dst := range map[string]**uuid.UUID{"lab_id": &filter.LabID, "clinic_id": &filter.ClinicID} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, apperrors.Validation("invalid %s", name)
		}
		*dst = &id
	}
	if c.Query("page") != "" || c.Query("page_size") != "" {
		filter.Pagination = handler.PaginationQuery(c)
	}
	return filter, nil
}

func (h *Handler) FinancialSummary(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	summary, err := h.service.FinancialSummary(c.Request.Context(), acc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

func (h *Handler) GetJob(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), acc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	view, err := h.service.Transition(c.Request.Context(), acc, id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) MarkPaid(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	var req paidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	view, err := h.service.MarkPaid(c.Request.Context(), acc, id, *req.Paid)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) UpdatePrice(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	view, err := h.service.UpdatePrice(c.Request.Context(), acc, id, *req.Price)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) DeleteJob(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), acc, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": id})
}

// AddAttachment takes a multipart upload in the "file" field.
func (h *Handler) AddAttachment(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		httputil.RespondWithBadRequest(c, "file is required")
		return
	}
	if header.Size > h.maxUploadBytes {
		httputil.RespondWithBadRequest(c, "file is too large")
		return
	}

	f, err := header.Open()
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("unreadable upload", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("unreadable upload", err))
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		httputil.RespondWithBadRequest(c, "file is too large")
		return
	}

	att, err := h.service.AddAttachment(c.Request.Context(), acc, id, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, att)
}

func (h *Handler) ListAttachments(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	items, err := h.service.ListAttachments(c.Request.Context(), acc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, items)
}

func (h *Handler) PostMessage(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	msg, err := h.service.PostMessage(c.Request.Context(), acc, id, req.Body)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	acc, id, ok := h.target(c)
	if !ok {
		return
	}

	msgs, err := h.service.ListMessages(c.Request.Context(), acc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, msgs)
}

// target resolves the caller and the :id job parameter, answering the request
// itself on failure.
func (h *Handler) target(c *gin.Context) (*model.Account, uuid.UUID, bool) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, uuid.Nil, false
	}
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return nil, uuid.Nil, false
	}
	return acc, id, true
}
