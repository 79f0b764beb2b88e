package scheduler

import (
	"context"
	"time"

	"grocery-backend/internal/tracking/session"

	"github.com/rs/zerolog"
)

// DefaultInterval between reconcile passes
const DefaultInterval = 1 * time.Minute

// Sessions is the part of the session manager the reconciler drives
type Sessions interface {
	Start(orderID string)
	Stop(orderID string)
	Orders() []string
}

// SessionReconciler keeps running tracking sessions in line with order
// status in the database. It recovers from missed or reordered order events.
type SessionReconciler struct {
	orders   session.ActiveOrderLister
	sessions Sessions
	interval time.Duration
	logger   zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewSessionReconciler creates a new reconciler
func NewSessionReconciler(orders session.ActiveOrderLister, sessions Sessions, interval time.Duration, logger zerolog.Logger) *SessionReconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SessionReconciler{
		orders:   orders,
		sessions: sessions,
		interval: interval,
		logger:   logger.With().Str("component", "Reconciler").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the reconcile loop
func (r *SessionReconciler) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("Starting session reconciler")

	go func() {
		defer close(r.done)

		// Run immediately on start
		r.Reconcile(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Reconcile(ctx)
			case <-ctx.Done():
				r.logger.Info().Msg("Reconciler stopped")
				return
			case <-r.stopChan:
				r.logger.Info().Msg("Reconciler stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight pass
func (r *SessionReconciler) Stop() {
	close(r.stopChan)
	<-r.done
}

// Reconcile starts sessions for active orders that have none and stops
// sessions whose order has left delivery. Running sessions are read before
// the database so an order event landing mid-pass is never undone: only
// sessions seen running are stopped and only sessions seen missing are started.
func (r *SessionReconciler) Reconcile(ctx context.Context) {
	running := r.sessions.Orders()

	active, err := session.ActiveOrderIDs(ctx, r.orders)
	if err != nil {
		r.logger.Error().Err(err).Msg("Error listing active orders")
		return
	}

	want := make(map[string]struct{}, len(active))
	for _, id := range active {
		want[id] = struct{}{}
	}

	have := make(map[string]struct{}, len(running))
	stopped := 0
	for _, id := range running {
		have[id] = struct{}{}
		if _, ok := want[id]; !ok {
			r.sessions.Stop(id)
			stopped++
		}
	}

	started := 0
	for id := range want {
		if _, ok := have[id]; !ok {
			r.sessions.Start(id)
			started++
		}
	}

	if started > 0 || stopped > 0 {
		r.logger.Info().Int("started", started).Int("stopped", stopped).Msg("Reconciled tracking sessions")
	}
}
