package account

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dentallab-api/internal/handler"
	"github.com/jwalitptl/dentallab-api/internal/model"
	accountService "github.com/jwalitptl/dentallab-api/internal/service/account"
	"github.com/jwalitptl/dentallab-api/pkg/httputil"
)

type Handler struct {
	service *accountService.Service
}

func NewHandler(service *accountService.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts registration and admin routes on authenticated, which
// only needs verified claims, and the profile routes on resolved, which needs
// an existing account.
func (h *Handler) RegisterRoutes(authenticated, resolved *gin.RouterGroup) {
	accounts := authenticated.Group("/accounts")
	{
		accounts.POST("/labs", h.RegisterLab)
		accounts.POST("/clinics", h.RegisterClinic)
	}
	authenticated.POST("/admin/labs/:id/activate", h.ActivateLab)

	me := resolved.Group("/accounts/me")
	{
		me.GET("", h.Me)
		me.PUT("/branding", h.UpdateBranding)
	}
}

func (h *Handler) RegisterLab(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.LabRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}
	if req.Email == "" {
		req.Email = claims.Email
	}

	lab, err := h.service.RegisterLab(c.Request.Context(), claims.Subject, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, lab)
}

func (h *Handler) RegisterClinic(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ClinicRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}
	if req.Email == "" {
		req.Email = claims.Email
	}

	clinic, err := h.service.RegisterClinic(c.Request.Context(), claims.Subject, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, clinic)
}

func (h *Handler) ActivateLab(c *gin.Context) {
	claims, err := handler.Claims(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	labID, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	lab, err := h.service.ActivateLab(c.Request.Context(), claims, labID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lab)
}

func (h *Handler) Me(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, acc)
}

func (h *Handler) UpdateBranding(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.Branding
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	lab, err := h.service.UpdateBranding(c.Request.Context(), acc, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lab)
}
