package delivery

import (
	"net/http"
	"strings"

	authdomain "grocery-backend/internal/auth/domain"
	"grocery-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		principal, err := authUsecase.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Set("userID", principal.UserID)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed
func RequireRole(roles ...authdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		c.Abort()
	}
}

// CurrentPrincipal returns the caller set by AuthMiddleware
func CurrentPrincipal(c *gin.Context) *authdomain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*authdomain.Principal)
	return p
}
