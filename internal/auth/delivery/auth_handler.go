package delivery

import (
	"net/http"
	"sync"

	"grocery-backend/internal/auth/dto"
	"grocery-backend/internal/auth/usecase"
	"grocery-backend/internal/notification"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds custom binding tags to gin's validator
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = notification.RegisterPushToken(v)
		}
	})
}

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	RegisterValidators()
	return &AuthHandler{authUsecase: authUsecase}
}

// RegisterPushToken stores the caller's device token
// POST /api/push-tokens
func (h *AuthHandler) RegisterPushToken(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.RegisterPushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid push token"})
		return
	}

	if err := h.authUsecase.RegisterPushToken(c.Request.Context(), userID, req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register push token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "push token registered"})
}

// UnregisterPushToken clears the caller's device token
// DELETE /api/push-tokens
func (h *AuthHandler) UnregisterPushToken(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.authUsecase.UnregisterPushToken(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister push token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "push token removed"})
}

// Me returns the verified caller
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentPrincipal(c))
}
