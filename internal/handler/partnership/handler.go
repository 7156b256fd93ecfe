package partnership

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dentallab-api/internal/handler"
	"github.com/jwalitptl/dentallab-api/internal/model"
	partnershipService "github.com/jwalitptl/dentallab-api/internal/service/partnership"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/httputil"
)

type Handler struct {
	service *partnershipService.Service
}

func NewHandler(service *partnershipService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	invites := r.Group("/invites")
	{
		invites.POST("", h.IssueInvite)
		invites.GET("", h.ListInvites)
		invites.POST("/:token/redeem", h.RedeemInvite)
	}

	partners := r.Group("/partners")
	{
		partners.GET("", h.ListPartners)
		partners.POST("/clinics", h.CreateManualClinic)
		partners.DELETE("/clinics/:clinicId", h.RemoveLink)
		partners.PUT("/clinics/:clinicId/price-table", h.AssignPriceTable)
	}
}

type inviteResponse struct {
	*model.InviteToken
	Link string `json:"link"`
}

func (h *Handler) IssueInvite(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.InviteRequest
	// An empty body issues a link-only invite.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithBadRequest(c, err.Error())
			return
		}
	}

	invite, err := h.service.IssueInvite(c.Request.Context(), acc, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, inviteResponse{InviteToken: invite, Link: h.service.InviteLink(invite.ID)})
}

func (h *Handler) ListInvites(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	invites, err := h.service.ListInvites(c.Request.Context(), acc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	resp := make([]inviteResponse, 0, len(invites))
	for _, inv := range invites {
		resp = append(resp, inviteResponse{InviteToken: inv, Link: h.service.InviteLink(inv.ID)})
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) RedeemInvite(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.InvalidInvite("unknown token"))
		return
	}

	link, err := h.service.RedeemInvite(c.Request.Context(), acc, token)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, link)
}

func (h *Handler) ListPartners(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	partners, err := h.service.ListPartners(c.Request.Context(), acc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, partners)
}

func (h *Handler) CreateManualClinic(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ClinicRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	clinic, err := h.service.CreateManualClinic(c.Request.Context(), acc, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, clinic)
}

func (h *Handler) RemoveLink(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	clinicID, err := handler.UUIDParam(c, "clinicId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.RemoveLink(c.Request.Context(), acc, clinicID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"removed": clinicID})
}

func (h *Handler) AssignPriceTable(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	clinicID, err := handler.UUIDParam(c, "clinicId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.AssignPriceTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	if err := h.service.AssignPriceTable(c.Request.Context(), acc, clinicID, req.PriceTableID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"clinic_id": clinicID, "price_table_id": req.PriceTableID})
}
