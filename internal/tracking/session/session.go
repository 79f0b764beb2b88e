package session

import (
	"context"
	"sync"
	"time"

	"grocery-backend/internal/tracking/domain"
	"grocery-backend/internal/tracking/smoother"
	"grocery-backend/pkg/geo"
	"grocery-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// PositionSource returns the latest fix for an order. A nil fix with a nil
// error means the driver has not reported a position yet.
type PositionSource interface {
	Latest(ctx context.Context, orderID string) (*domain.Fix, error)
}

// MilestoneEvaluator is fed every successful poll
type MilestoneEvaluator interface {
	Evaluate(ctx context.Context, reading domain.Reading) error
}

// Config controls polling and smoothing
type Config struct {
	Cadence          time.Duration
	Steps            int
	FailureThreshold int
}

func (c Config) withDefaults() Config {
	if c.Cadence <= 0 {
		c.Cadence = smoother.DefaultCadence
	}
	if c.Steps <= 0 {
		c.Steps = smoother.DefaultSteps
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	return c
}

// Snapshot is the externally visible state of a session
type Snapshot struct {
	OrderID        string           `json:"order_id"`
	Position       *domain.Position `json:"position,omitempty"`
	DistanceMeters float64          `json:"distance_meters"`
	ETA            time.Duration    `json:"eta_ns"`
	HasETA         bool             `json:"has_eta"`
	IsTracking     bool             `json:"is_tracking"`
	Enabled        bool             `json:"enabled"`
}

// Session owns the polling lifecycle for one order at a time.
type Session struct {
	cfg       Config
	source    PositionSource
	evaluator MilestoneEvaluator
	logger    zerolog.Logger
	now       func() time.Time
	observer  func(orderID string, p domain.Position)

	// lifecycle serializes Start, Stop and SetEnabled
	lifecycle sync.Mutex

	mu           sync.Mutex
	epoch        uint64
	orderID      string
	enabled      bool
	isTracking   bool
	failures     int
	hasSample    bool
	lastSampleAt time.Time
	position     *domain.Position
	distance     float64
	eta          time.Duration
	hasETA       bool
	smoother     *smoother.Smoother
	loopCancel   context.CancelFunc
	loopDone     chan struct{}
}

// New creates an idle, enabled session
func New(cfg Config, source PositionSource, evaluator MilestoneEvaluator, logger zerolog.Logger) *Session {
	return &Session{
		cfg:       cfg.withDefaults(),
		source:    source,
		evaluator: evaluator,
		logger:    logger.With().Str("component", "TrackingSession").Logger(),
		now:       time.Now,
		enabled:   true,
	}
}

// OnPosition registers a callback for every smoothed display position
func (s *Session) OnPosition(fn func(orderID string, p domain.Position)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Start begins polling for orderID, replacing whatever order the session held.
// An empty orderID leaves the session suspended.
func (s *Session) Start(ctx context.Context, orderID string) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	oldCancel, oldDone, oldSmoother := s.loopCancel, s.loopDone, s.smoother

	s.orderID = orderID
	s.isTracking = orderID != "" && s.enabled
	s.failures = 0
	s.hasSample = false
	s.lastSampleAt = time.Time{}
	s.position = nil
	s.distance, s.eta, s.hasETA = 0, 0, false
	s.smoother = smoother.New(s.cfg.Cadence, s.cfg.Steps, s.emitter(epoch, orderID))
	s.loopCancel, s.loopDone = nil, nil

	var loopCtx context.Context
	if orderID != "" {
		loopCtx, s.loopCancel = context.WithCancel(ctx)
		s.loopDone = make(chan struct{})
	}
	sm, done := s.smoother, s.loopDone
	s.mu.Unlock()

	s.teardown(oldCancel, oldDone, oldSmoother)

	if orderID == "" {
		s.logger.Debug().Msg("No order to track, session suspended")
		return
	}

	s.logger.Info().Str("order_id", orderID).Dur("cadence", s.cfg.Cadence).Msg("Tracking started")
	go s.loop(loopCtx, epoch, orderID, sm, done)
}

// Stop tears the session down. No position is emitted after Stop returns.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	s.epoch++
	oldCancel, oldDone, oldSmoother := s.loopCancel, s.loopDone, s.smoother
	orderID := s.orderID
	s.loopCancel, s.loopDone, s.smoother = nil, nil, nil
	s.orderID = ""
	s.isTracking = false
	s.mu.Unlock()

	s.teardown(oldCancel, oldDone, oldSmoother)
	if orderID != "" {
		s.logger.Info().Str("order_id", orderID).Msg("Tracking stopped")
	}
}

// SetEnabled suspends or resumes polling without dropping the order.
// Disabling cancels any in-flight interpolation.
func (s *Session) SetEnabled(enabled bool) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.enabled == enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = enabled
	s.isTracking = enabled && s.orderID != ""
	s.failures = 0
	sm := s.smoother
	s.mu.Unlock()

	if !enabled && sm != nil {
		sm.Stop()
	}
	s.logger.Info().Bool("enabled", enabled).Msg("Tracking toggled")
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		OrderID:        s.orderID,
		DistanceMeters: s.distance,
		ETA:            s.eta,
		HasETA:         s.hasETA,
		IsTracking:     s.isTracking,
		Enabled:        s.enabled,
	}
	if s.position != nil {
		p := *s.position
		snap.Position = &p
	}
	return snap
}

// IsTracking reports whether recent polls have been succeeding
func (s *Session) IsTracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTracking
}

func (s *Session) teardown(cancel context.CancelFunc, done chan struct{}, sm *smoother.Smoother) {
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if sm != nil {
		sm.Stop()
	}
}

func (s *Session) emitter(epoch uint64, orderID string) smoother.EmitFunc {
	return func(p domain.Position) {
		s.mu.Lock()
		if s.epoch != epoch || !s.enabled {
			s.mu.Unlock()
			return
		}
		s.position = &p
		observer := s.observer
		s.mu.Unlock()

		if observer != nil {
			observer(orderID, p)
		}
	}
}

func (s *Session) loop(ctx context.Context, epoch uint64, orderID string, sm *smoother.Smoother, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Cadence)
	defer ticker.Stop()

	// Poll immediately so the first position does not wait a full cadence
	s.poll(ctx, epoch, orderID, sm)

	for {
		select {
		case <-ticker.C:
			s.poll(ctx, epoch, orderID, sm)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) active(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && s.enabled
}

// poll runs one fetch-smooth-evaluate cycle. Failures only bump the counter.
func (s *Session) poll(ctx context.Context, epoch uint64, orderID string, sm *smoother.Smoother) {
	if !s.active(epoch) {
		return
	}

	fix, err := s.source.Latest(ctx, orderID)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	if s.epoch != epoch || !s.enabled {
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.failures++
		failures := s.failures
		downgraded := failures >= s.cfg.FailureThreshold && s.isTracking
		if downgraded {
			s.isTracking = false
		}
		s.mu.Unlock()

		metrics.TrackingPollsTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("order_id", orderID).Int("consecutive_failures", failures).Msg("Position poll failed")
		if downgraded {
			s.logger.Warn().Str("order_id", orderID).Msg("Tracking degraded after consecutive poll failures")
		}
		return
	}

	if fix == nil {
		s.mu.Unlock()
		metrics.TrackingPollsTotal.WithLabelValues("empty").Inc()
		s.logger.Debug().Str("order_id", orderID).Msg("No position reported yet")
		return
	}

	if !s.isTracking {
		s.logger.Info().Str("order_id", orderID).Msg("Tracking recovered")
	}
	s.failures = 0
	s.isTracking = true

	reading := domain.Reading{
		OrderID:        orderID,
		DistanceMeters: geo.DistanceMeters(fix.Sample.Point(), fix.Destination),
	}
	if fix.EstimatedArrival != nil {
		reading.ETA = etaFrom(*fix.EstimatedArrival, s.now())
		reading.HasETA = true
	}
	s.distance, s.eta, s.hasETA = reading.DistanceMeters, reading.ETA, reading.HasETA

	fresh := !s.hasSample || fix.Sample.Timestamp.After(s.lastSampleAt)
	if fresh {
		s.hasSample = true
		s.lastSampleAt = fix.Sample.Timestamp
	}
	s.mu.Unlock()

	metrics.TrackingPollsTotal.WithLabelValues("ok").Inc()

	// Re-polls of an unchanged sample keep the trajectory where it is
	if fresh {
		sm.Push(fix.Sample)
	}

	if s.evaluator != nil {
		// A milestone claimed during teardown must still be sent
		if err := s.evaluator.Evaluate(context.WithoutCancel(ctx), reading); err != nil {
			s.logger.Warn().Err(err).Str("order_id", orderID).Msg("Milestone evaluation failed")
		}
	}
}

func etaFrom(arrival, now time.Time) time.Duration {
	eta := arrival.Sub(now)
	if eta < 0 {
		return 0
	}
	return eta
}
