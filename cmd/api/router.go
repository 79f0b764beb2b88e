package api

import (
	"net/http"

	"grocery-backend/internal/auth/delivery"
	authdomain "grocery-backend/internal/auth/domain"
	authUsecase "grocery-backend/internal/auth/usecase"
	notificationDelivery "grocery-backend/internal/notification/delivery"
	trackingDelivery "grocery-backend/internal/tracking/delivery"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, trackingHandler *trackingDelivery.TrackingHandler, notificationHandler *notificationDelivery.NotificationHandler) {
	authHandler := delivery.NewAuthHandler(authUsecase)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.GET("/auth/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)

		// Push token routes (protected)
		tokens := api.Group("/push-tokens")
		tokens.Use(delivery.AuthMiddleware(authUsecase))
		{
			tokens.POST("", authHandler.RegisterPushToken)
			tokens.DELETE("", authHandler.UnregisterPushToken)
		}

		// Driver routes (protected, drivers only)
		drivers := api.Group("/drivers")
		drivers.Use(delivery.AuthMiddleware(authUsecase), delivery.RequireRole(authdomain.RoleDriver))
		{
			drivers.POST("/me/location", trackingHandler.IngestLocation)
		}

		// Order tracking routes (protected)
		orders := api.Group("/orders")
		orders.Use(delivery.AuthMiddleware(authUsecase))
		{
			orders.GET("/:id/tracking", trackingHandler.GetTracking)
			orders.PUT("/:id/tracking", trackingHandler.SetTracking)
		}

		notifications := api.Group("/notifications")
		notifications.Use(delivery.AuthMiddleware(authUsecase))
		{
			notifications.POST("/route", notificationHandler.Route)
		}
	}
}
