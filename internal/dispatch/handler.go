package dispatch

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes the dispatch entry point to the rest of the
// application: booking and payment services post events here instead of
// touching the notification and webhook layers directly.
type Handler struct {
	dispatcher *Dispatcher
	logger     *zap.Logger

	onCreated func()
}

// NewHandler creates a dispatch Handler.
func NewHandler(dispatcher *Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// SetCreatedRecorder configures a callback fired per notification created.
func (h *Handler) SetCreatedRecorder(fn func()) { h.onCreated = fn }

// Register registers the dispatch route on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/events", h.DispatchEvent)
}

// DispatchRequest is the payload domain code posts when something happens.
type DispatchRequest struct {
	EventType      string         `json:"event_type" binding:"required"`
	HostID         uuid.UUID      `json:"host_id"    binding:"required"`
	Title          string         `json:"title"      binding:"required"`
	Message        string         `json:"message"    binding:"required"`
	Priority       string         `json:"priority"`
	BookingID      *uuid.UUID     `json:"booking_id"`
	PropertyID     *uuid.UUID     `json:"property_id"`
	ActionRequired bool           `json:"action_required"`
	ActionURL      string         `json:"action_url"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	Data           map[string]any `json:"data"`
}

// DispatchEvent handles POST /events. A 201 means the notification was
// durably recorded; webhook delivery proceeds in the background and its
// outcome never affects this response.
func (h *Handler) DispatchEvent(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.dispatcher.Dispatch(c.Request.Context(), Event{
		Type:           req.EventType,
		HostID:         req.HostID,
		Title:          req.Title,
		Message:        req.Message,
		Priority:       req.Priority,
		BookingID:      req.BookingID,
		PropertyID:     req.PropertyID,
		ActionRequired: req.ActionRequired,
		ActionURL:      req.ActionURL,
		ExpiresAt:      req.ExpiresAt,
		Data:           req.Data,
	})
	if err != nil {
		h.logger.Error("dispatch event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event was not recorded"})
		return
	}
	if h.onCreated != nil {
		h.onCreated()
	}

	c.JSON(http.StatusCreated, gin.H{"notification": n})
}
