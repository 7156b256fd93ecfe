package catalog

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dentallab-api/internal/handler"
	"github.com/jwalitptl/dentallab-api/internal/model"
	catalogService "github.com/jwalitptl/dentallab-api/internal/service/catalog"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/httputil"
)

type Handler struct {
	service *catalogService.Service
}

func NewHandler(service *catalogService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	services := r.Group("/services")
	{
		services.POST("", h.CreateService)
		services.GET("", h.ListServices)
		services.PUT("/:id", h.UpdateService)
		services.DELETE("/:id", h.DeactivateService)
	}

	tables := r.Group("/price-tables")
	{
		tables.POST("", h.CreatePriceTable)
		tables.GET("", h.ListPriceTables)
		tables.GET("/:id", h.GetPriceTable)
		tables.DELETE("/:id", h.DeletePriceTable)
		tables.PUT("/:id/items/:serviceId", h.SetTableItem)
		tables.DELETE("/:id/items/:serviceId", h.RemoveTableItem)
		tables.POST("/:id/import", h.ImportAllServices)
		tables.POST("/:id/duplicate", h.DuplicateTable)
	}
}

func (h *Handler) CreateService(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ServiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	svc, err := h.service.CreateService(c.Request.Context(), acc, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, svc)
}

// ListServices accepts lab_id (required for clinics) and active_only.
func (h *Handler) ListServices(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var labID *uuid.UUID
	if raw := c.Query("lab_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation("invalid lab_id"))
			return
		}
		labID = &id
	}
	activeOnly, _ := strconv.ParseBool(c.Query("active_only"))

	services, err := h.service.ListServices(c.Request.Context(), acc, labID, activeOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, services)
}

func (h *Handler) UpdateService(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ServiceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	svc, err := h.service.UpdateService(c.Request.Context(), acc, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, svc)
}

// DeactivateService hides a service from new jobs. Existing jobs keep their
// reference.
func (h *Handler) DeactivateService(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.DeactivateService(c.Request.Context(), acc, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deactivated": id})
}

func (h *Handler) CreatePriceTable(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.PriceTableInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	table, err := h.service.CreatePriceTable(c.Request.Context(), acc, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, table)
}

func (h *Handler) ListPriceTables(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	tables, err := h.service.ListPriceTables(c.Request.Context(), acc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tables)
}

func (h *Handler) GetPriceTable(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	table, err := h.service.GetPriceTable(c.Request.Context(), acc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, table)
}

func (h *Handler) DeletePriceTable(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.DeletePriceTable(c.Request.Context(), acc, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": id})
}

func (h *Handler) SetTableItem(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	tableID, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	serviceID, err := handler.UUIDParam(c, "serviceId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.TableItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBadRequest(c, err.Error())
		return
	}

	item, err := h.service.SetTableItem(c.Request.Context(), acc, tableID, serviceID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, item)
}

func (h *Handler) RemoveTableItem(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	tableID, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	serviceID, err := handler.UUIDParam(c, "serviceId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.RemoveTableItem(c.Request.Context(), acc, tableID, serviceID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"removed": serviceID})
}

func (h *Handler) ImportAllServices(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	tableID, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ImportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithBadRequest(c, err.Error())
			return
		}
	}

	result, err := h.service.ImportAllServices(c.Request.Context(), acc, tableID, req.DiscountPercent)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) DuplicateTable(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	tableID, err := handler.UUIDParam(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	table, err := h.service.DuplicateTable(c.Request.Context(), acc, tableID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, table)
}
