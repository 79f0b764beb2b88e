package delivery

import (
	"net/http"

	authDelivery "grocery-backend/internal/auth/delivery"
	"grocery-backend/internal/notification/router"

	"github.com/gin-gonic/gin"
)

// NotificationHandler resolves received pushes for thin clients
type NotificationHandler struct {
	router *router.Router
}

func NewNotificationHandler(r *router.Router) *NotificationHandler {
	return &NotificationHandler{router: r}
}

type RouteRequest struct {
	Data map[string]string `json:"data" binding:"required"`
}

// Route maps a push data payload to the action for the caller's role
// POST /api/notifications/route
func (h *NotificationHandler) Route(c *gin.Context) {
	caller := authDelivery.CurrentPrincipal(c)

	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := h.router.Route(caller.Role, req.Data)
	c.JSON(http.StatusOK, gin.H{
		"action": action,
		"noop":   action.NoOp(),
	})
}
