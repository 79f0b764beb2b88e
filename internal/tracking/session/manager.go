package session

import (
	"context"
	"fmt"
	"sync"

	orderdomain "grocery-backend/internal/order/domain"
	"grocery-backend/internal/tracking/domain"
	"grocery-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// ActiveOrderLister finds orders that should be tracked after a restart
type ActiveOrderLister interface {
	FindByStatus(ctx context.Context, status orderdomain.OrderStatus) ([]*orderdomain.TrackedOrder, error)
}

// Manager runs one Session per order in delivery. Sessions never share state.
type Manager struct {
	cfg       Config
	source    PositionSource
	evaluator MilestoneEvaluator
	orders    ActiveOrderLister
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions live until Shutdown
func NewManager(cfg Config, source PositionSource, evaluator MilestoneEvaluator, orders ActiveOrderLister, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:       cfg.withDefaults(),
		source:    source,
		evaluator: evaluator,
		orders:    orders,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*Session),
	}
}

// Start begins tracking orderID. Starting an already tracked order is a no-op.
func (m *Manager) Start(orderID string) {
	if orderID == "" {
		return
	}

	m.mu.Lock()
	if _, ok := m.sessions[orderID]; ok {
		m.mu.Unlock()
		return
	}
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	s := New(m.cfg, m.source, m.evaluator, m.logger)
	s.OnPosition(countPosition)
	m.sessions[orderID] = s
	metrics.TrackingActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	s.Start(m.ctx, orderID)
}

// Stop tears down the session for orderID, if any
func (m *Manager) Stop(orderID string) {
	m.mu.Lock()
	s, ok := m.sessions[orderID]
	delete(m.sessions, orderID)
	metrics.TrackingActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if ok {
		s.Stop()
	}
}

// SetEnabled suspends or resumes tracking of one order without dropping its
// session. It reports whether the order is tracked.
func (m *Manager) SetEnabled(orderID string, enabled bool) bool {
	m.mu.Lock()
	s, ok := m.sessions[orderID]
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.SetEnabled(enabled)
	return true
}

// Snapshot returns the session state for orderID
func (m *Manager) Snapshot(orderID string) (Snapshot, bool) {
	m.mu.Lock()
	s, ok := m.sessions[orderID]
	m.mu.Unlock()

	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Active returns the number of tracked orders
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Orders returns the ids of tracked orders
func (m *Manager) Orders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Resume restarts sessions for every order still in delivery
func (m *Manager) Resume(ctx context.Context) error {
	if m.orders == nil {
		return nil
	}
	orders, err := ActiveOrderIDs(ctx, m.orders)
	if err != nil {
		return err
	}
	for _, id := range orders {
		m.Start(id)
	}
	m.logger.Info().Int("orders", len(orders)).Msg("Resumed tracking sessions")
	return nil
}

// ActiveOrderIDs lists orders whose driver is out delivering or at the door
func ActiveOrderIDs(ctx context.Context, orders ActiveOrderLister) ([]string, error) {
	var ids []string
	for _, status := range []orderdomain.OrderStatus{orderdomain.OrderStatusDelivering, orderdomain.OrderStatusArrived} {
		found, err := orders.FindByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("failed to list orders in delivery: %w", err)
		}
		for _, o := range found {
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}

func countPosition(_ string, p domain.Position) {
	kind := "snapped"
	if p.Interpolated {
		kind = "interpolated"
	}
	metrics.TrackingPositionsEmittedTotal.WithLabelValues(kind).Inc()
}

// Shutdown stops every session and refuses new ones
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.cancel()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	metrics.TrackingActiveSessions.Set(0)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
	m.logger.Info().Int("sessions", len(sessions)).Msg("Tracking manager stopped")
}
