package stream

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves the long-lived event stream and the announcement endpoint.
type Handler struct {
	hub    *Hub
	poller *Poller
	logger *zap.Logger

	onEvent func(eventType string)
}

// NewHandler creates a stream Handler.
func NewHandler(hub *Hub, poller *Poller, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, poller: poller, logger: logger}
}

// SetEventRecorder configures a callback fired for every event written
// to a client.
func (h *Handler) SetEventRecorder(fn func(eventType string)) { h.onEvent = fn }

// RegisterHost registers the stream route on the host-scoped group.
func (h *Handler) RegisterHost(rg *gin.RouterGroup) {
	rg.GET("/events", h.StreamEvents)
}

// RegisterAdmin registers the announcement route.
func (h *Handler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.POST("/announcements", h.Announce)
}

// StreamEvents handles GET /hosts/:host_id/events. The response is held
// open as a server-sent event stream until the client disconnects or the
// server shuts down; registration and teardown are strictly scoped to
// this handler's lifetime.
func (h *Handler) StreamEvents(c *gin.Context) {
	hostID, err := uuid.Parse(c.Param("host_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid host ID"})
		return
	}

	conn, err := h.hub.Register(hostID)
	if err != nil {
		if errors.Is(err, ErrTooManyConnections) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream capacity reached, retry later"})
			return
		}
		h.logger.Error("stream: register connection", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open stream"})
		return
	}
	defer h.hub.Unregister(conn)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.poller.Run(pollCtx, hostID, conn)

	h.logger.Info("stream: connected",
		zap.String("host_id", hostID.String()),
		zap.Int("connections", h.hub.Connections()),
	)

	h.writeEvent(c, Event{Type: EventConnected, Data: gin.H{"host_id": hostID}})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-conn.Events():
			if !ok {
				return false
			}
			h.writeEvent(c, evt)
			return true
		}
	})

	h.logger.Info("stream: disconnected", zap.String("host_id", hostID.String()))
}

func (h *Handler) writeEvent(c *gin.Context, evt Event) {
	c.SSEvent(evt.Type, evt.Data)
	if h.onEvent != nil {
		h.onEvent(evt.Type)
	}
}

// AnnounceRequest is the payload for a system-wide announcement.
type AnnounceRequest struct {
	Title   string `json:"title"   binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Announce handles POST /announcements. Broadcasts a
// system_announcement event to every connected client.
func (h *Handler) Announce(c *gin.Context) {
	var req AnnounceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.hub.Broadcast(Event{Type: EventSystemAnnouncement, Data: gin.H{
		"title":   req.Title,
		"message": req.Message,
	}})

	c.JSON(http.StatusOK, gin.H{"recipients": h.hub.Connections()})
}
