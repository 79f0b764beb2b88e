package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	authUsecase "grocery-backend/internal/auth/usecase"
	notificationDelivery "grocery-backend/internal/notification/delivery"
	trackingDelivery "grocery-backend/internal/tracking/delivery"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

type Handler struct {
	authUsecase         authUsecase.AuthUsecase
	trackingHandler     *trackingDelivery.TrackingHandler
	notificationHandler *notificationDelivery.NotificationHandler
	logger              zerolog.Logger

	mu     sync.Mutex
	server *http.Server
	closed bool
}

func NewHandler(authUc authUsecase.AuthUsecase, trackingHandler *trackingDelivery.TrackingHandler, notificationHandler *notificationDelivery.NotificationHandler, logger zerolog.Logger) *Handler {
	return &Handler{
		authUsecase:         authUc,
		trackingHandler:     trackingHandler,
		notificationHandler: notificationHandler,
		logger:              logger.With().Str("component", "HTTP").Logger(),
	}
}

// Engine builds the gin engine with middleware and routes
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), h.requestLogger())

	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", "X-Requested-With", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	SetupRoutes(r, h.authUsecase, h.trackingHandler, h.notificationHandler)
	return r
}

// requestID propagates the caller's request id or assigns a new one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug().
			Str("request_id", c.GetString("requestID")).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Start serves HTTP until Shutdown is called
func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.logger.Info().Msg("Shutdown requested before start, not serving")
		return nil
	}
	h.server = srv
	h.mu.Unlock()

	h.logger.Info().Str("addr", addr).Msg("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests. Called before Start, it makes Start
// return without serving.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	srv := h.server
	h.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
