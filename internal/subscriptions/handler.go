package subscriptions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for webhook subscription management.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a new subscription Handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register registers subscription routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	subs := rg.Group("/subscriptions")
	{
		subs.POST("", h.CreateSubscription)
		subs.GET("", h.ListSubscriptions)
		subs.DELETE("/:id", h.DeleteSubscription)
		subs.GET("/:id/deliveries", h.ListDeliveries)
	}
}

// CreateSubscription handles POST /subscriptions.
func (h *Handler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          verr.Error(),
				"invalid_events": verr.Invalid,
				"valid_events":   KnownEvents(),
			})
			return
		}
		h.logger.Error("create subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create subscription"})
		return
	}

	// SharedSecret is json:"-" so the stored secret never leaves the server.
	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

// ListSubscriptions handles GET /subscriptions.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	subs, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list subscriptions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list subscriptions"})
		return
	}
	if subs == nil {
		subs = []*WebhookSubscription{}
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}

// DeleteSubscription handles DELETE /subscriptions/:id. Always 200 on a
// well-formed id; deletion is idempotent.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}

	if err := h.svc.Unregister(c.Request.Context(), id); err != nil {
		h.logger.Error("delete subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// ListDeliveries handles GET /subscriptions/:id/deliveries.
func (h *Handler) ListDeliveries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription ID"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	attempts, err := h.svc.Deliveries(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("list deliveries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list deliveries"})
		return
	}
	if attempts == nil {
		attempts = []*DeliveryAttempt{}
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": attempts, "count": len(attempts)})
}
