package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the manual webhook test endpoint.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a new delivery Handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Register registers delivery routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/webhooks/test", h.TestDelivery)
}

// TestFireRequest is the payload for a manual delivery cycle.
type TestFireRequest struct {
	EventType string         `json:"event_type" binding:"required"`
	Data      map[string]any `json:"data"`
}

// TestDelivery handles POST /webhooks/test. It synchronously runs one
// delivery cycle against all matching active subscriptions and returns
// the per-subscriber outcome report. For manual verification, not
// production traffic.
func (h *Handler) TestDelivery(c *gin.Context) {
	var req TestFireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.engine.Deliver(c.Request.Context(), req.EventType, req.Data)
	if err != nil {
		h.logger.Error("test delivery", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":          report,
		"no_subscribers":  report.NoSubscribers(),
		"all_failed":      report.AllFailed(),
		"partial_failure": report.PartialFailure(),
	})
}
