package notifications

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence surface the handler needs. Satisfied by
// *Repository; stubbed in tests.
type Store interface {
	List(ctx context.Context, hostID uuid.UUID, opts ListOptions) ([]*Notification, error)
	MarkRead(ctx context.Context, id, hostID uuid.UUID) (bool, error)
	UnreadCount(ctx context.Context, hostID uuid.UUID) (int, error)
}

// Handler handles the host-facing notification API.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a new notification Handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register registers notification routes on the given host-scoped group.
// The group is expected to carry the host token middleware.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.ListNotifications)
	rg.PUT("/notifications/:id/read", h.MarkRead)
	rg.GET("/notifications/count", h.UnreadCount)
}

// ListNotifications handles GET /hosts/:host_id/notifications.
func (h *Handler) ListNotifications(c *gin.Context) {
	hostID, ok := hostIDParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	opts := ListOptions{
		UnreadOnly: c.Query("unread_only") == "true",
		Type:       c.Query("type"),
		Priority:   c.Query("priority"),
		Limit:      limit,
	}

	items, err := h.store.List(c.Request.Context(), hostID, opts)
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	if items == nil {
		items = []*Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "count": len(items)})
}

// MarkRead handles PUT /hosts/:host_id/notifications/:id/read. Not-found
// and not-owned collapse into the same 404 so callers cannot probe for
// other hosts' notification ids.
func (h *Handler) MarkRead(c *gin.Context) {
	hostID, ok := hostIDParam(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID"})
		return
	}

	updated, err := h.store.MarkRead(c.Request.Context(), id, hostID)
	if err != nil {
		h.logger.Error("mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// UnreadCount handles GET /hosts/:host_id/notifications/count.
func (h *Handler) UnreadCount(c *gin.Context) {
	hostID, ok := hostIDParam(c)
	if !ok {
		return
	}

	count, err := h.store.UnreadCount(c.Request.Context(), hostID)
	if err != nil {
		h.logger.Error("unread count", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func hostIDParam(c *gin.Context) (uuid.UUID, bool) {
	hostID, err := uuid.Parse(c.Param("host_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid host ID"})
		return uuid.Nil, false
	}
	return hostID, true
}
