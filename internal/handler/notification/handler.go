package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/dentallab-api/internal/handler"
	"github.com/jwalitptl/dentallab-api/internal/model"
	notificationService "github.com/jwalitptl/dentallab-api/internal/service/notification"
	"github.com/jwalitptl/dentallab-api/pkg/httputil"
)

// SessionServer upgrades a request into a push session for a recipient.
type SessionServer interface {
	ServeSession(w http.ResponseWriter, r *http.Request, to model.Recipient) error
}

type Handler struct {
	service  *notificationService.Service
	sessions SessionServer
}

func NewHandler(service *notificationService.Service, sessions SessionServer) *Handler {
	return &Handler{service: service, sessions: sessions}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.PUT("/read-all", h.MarkAllRead)
		notifications.PUT("/:id/read", h.MarkRead)
		notifications.DELETE("/:id", h.Delete)
		notifications.DELETE("", h.DeleteAll)
	}
	r.GET("/ws", h.Subscribe)
}

func (h *Handler) List(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	page := handler.PaginationQuery(c)
	items, total, err := h.service.List(c.Request.Context(), acc.Recipient(), page)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, items, page.Page, page.PageSize, total)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	count, err := h.service.CountUnread(c.Request.Context(), acc.Recipient())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"unread": count})
}

func (h *Handler) MarkRead(c *gin.Context) {
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

	if err := h.service.MarkRead(c.Request.Context(), acc.Recipient(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"read": id})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.MarkAllRead(c.Request.Context(), acc.Recipient()); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"read_all": true})
}

func (h *Handler) Delete(c *gin.Context) {
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

	if err := h.service.Delete(c.Request.Context(), acc.Recipient(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": id})
}

func (h *Handler) DeleteAll(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.DeleteAll(c.Request.Context(), acc.Recipient()); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted_all": true})
}

// Subscribe upgrades to a websocket that receives the caller's notifications
// as they are recorded.
func (h *Handler) Subscribe(c *gin.Context) {
	acc, err := handler.CurrentAccount(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	to := acc.Recipient()
	if err := h.sessions.ServeSession(c.Writer, c.Request, to); err != nil {
		// The upgrader has already answered the client.
		log.Debug().Err(err).Str("recipient", to.String()).Msg("websocket upgrade failed")
	}
}
