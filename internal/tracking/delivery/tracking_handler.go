package delivery

import (
	"context"
	"errors"
	"net/http"

	authDelivery "grocery-backend/internal/auth/delivery"
	authdomain "grocery-backend/internal/auth/domain"
	orderdomain "grocery-backend/internal/order/domain"
	"grocery-backend/internal/tracking/domain"
	"grocery-backend/internal/tracking/repository"
	"grocery-backend/internal/tracking/session"
	"grocery-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PositionWriter records driver samples
type PositionWriter interface {
	Save(ctx context.Context, driverID string, sample domain.PositionSample) error
}

// FixSource assembles the latest fix for an order
type FixSource interface {
	Latest(ctx context.Context, orderID string) (*domain.Fix, error)
}

// OrderReader loads orders for authorization and status
type OrderReader interface {
	FindByID(ctx context.Context, id string) (*orderdomain.TrackedOrder, error)
	FindActiveByDriver(ctx context.Context, driverID string) (*orderdomain.TrackedOrder, error)
}

// SessionController exposes smoothed session state and the per-order switch
type SessionController interface {
	Snapshot(orderID string) (session.Snapshot, bool)
	SetEnabled(orderID string, enabled bool) bool
}

// TrackingHandler handles driver location ingest and tracking reads
type TrackingHandler struct {
	positions PositionWriter
	feed      FixSource
	orders    OrderReader
	sessions  SessionController
	logger    zerolog.Logger
}

func NewTrackingHandler(positions PositionWriter, feed FixSource, orders OrderReader, sessions SessionController, logger zerolog.Logger) *TrackingHandler {
	return &TrackingHandler{
		positions: positions,
		feed:      feed,
		orders:    orders,
		sessions:  sessions,
		logger:    logger.With().Str("component", "TrackingAPI").Logger(),
	}
}

// TrackingResponse is the read model served to the tracking view
type TrackingResponse struct {
	OrderID   string                  `json:"order_id"`
	Status    orderdomain.OrderStatus `json:"status"`
	Milestone string                  `json:"milestone"`
	Fix       *domain.Fix             `json:"fix"`
	Session   *session.Snapshot       `json:"session"`
}

// IngestLocation stores the calling driver's latest position
// POST /api/drivers/me/location
func (h *TrackingHandler) IngestLocation(c *gin.Context) {
	driverID := c.GetString("userID")

	var sample domain.PositionSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		metrics.LocationIngestTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.positions.Save(c.Request.Context(), driverID, sample); err != nil {
		if errors.Is(err, repository.ErrStaleSample) {
			metrics.LocationIngestTotal.WithLabelValues("stale").Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "sample is older than the latest position"})
			return
		}
		h.logger.Error().Err(err).Str("driver_id", driverID).Msg("Failed to store position")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store position"})
		return
	}
	metrics.LocationIngestTotal.WithLabelValues("stored").Inc()

	resp := gin.H{"status": "stored"}
	if active, err := h.orders.FindActiveByDriver(c.Request.Context(), driverID); err == nil && active != nil {
		resp["order_id"] = active.ID
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetTracking returns the latest fix and smoothed state of an order
// GET /api/orders/:id/tracking
func (h *TrackingHandler) GetTracking(c *gin.Context) {
	orderID := c.Param("id")
	caller := authDelivery.CurrentPrincipal(c)

	order, err := h.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if !canView(caller, order) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return
	}

	resp := TrackingResponse{
		OrderID:   order.ID,
		Status:    order.Status,
		Milestone: order.LastNotifiedMilestone.String(),
	}

	if order.Status.IsActiveDelivery() {
		fix, err := h.feed.Latest(c.Request.Context(), order.ID)
		if err != nil {
			h.logger.Warn().Err(err).Str("order_id", order.ID).Msg("Position feed unavailable")
		}
		resp.Fix = fix
	}
	if snap, ok := h.sessions.Snapshot(order.ID); ok {
		resp.Session = &snap
	}

	c.JSON(http.StatusOK, resp)
}

// SetTrackingRequest turns live tracking of an order on or off
type SetTrackingRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetTracking lets the customer pause or resume live tracking of their order
// PUT /api/orders/:id/tracking
func (h *TrackingHandler) SetTracking(c *gin.Context) {
	orderID := c.Param("id")
	caller := authDelivery.CurrentPrincipal(c)

	var req SetTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	order, err := h.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if caller == nil || caller.UserID != order.CustomerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
		return
	}

	if !h.sessions.SetEnabled(order.ID, *req.Enabled) {
		c.JSON(http.StatusConflict, gin.H{"error": "order is not being tracked"})
		return
	}
	h.logger.Info().Str("order_id", order.ID).Bool("enabled", *req.Enabled).Msg("Tracking toggled by customer")
	c.JSON(http.StatusOK, gin.H{"order_id": order.ID, "enabled": *req.Enabled})
}

func canView(p *authdomain.Principal, order *orderdomain.TrackedOrder) bool {
	if p == nil {
		return false
	}
	switch {
	case p.UserID == order.CustomerID:
		return true
	case p.Role == authdomain.RoleDriver && p.UserID == order.DriverID:
		return true
	case p.Role != authdomain.RoleDriver && p.IsStaffOf(order.StoreID):
		return true
	}
	return false
}
