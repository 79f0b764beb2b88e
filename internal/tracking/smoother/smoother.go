package smoother

import (
	"context"
	"sync"
	"time"

	"grocery-backend/internal/tracking/domain"
	"grocery-backend/pkg/geo"
)

const (
	DefaultCadence = 2 * time.Second
	DefaultSteps   = 10
)

// EmitFunc receives every display position in order. It is called with the
// smoother's lock held and must not call back into the Smoother.
type EmitFunc func(domain.Position)

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Smoother turns discrete samples for one subject into a stream of
// interpolated display positions.
type Smoother struct {
	steps     int
	interval  time.Duration
	emit      EmitFunc
	newTicker func(time.Duration) ticker

	mu     sync.Mutex
	last   *domain.Position
	gen    uint64
	cancel context.CancelFunc
}

// New creates a smoother that spreads each new sample over steps positions
// emitted every cadence/steps.
func New(cadence time.Duration, steps int, emit EmitFunc) *Smoother {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	if steps <= 0 {
		steps = DefaultSteps
	}
	return &Smoother{
		steps:     steps,
		interval:  cadence / time.Duration(steps),
		emit:      emit,
		newTicker: newRealTicker,
	}
}

// Push feeds a new raw sample. The first sample snaps; later samples cancel any
// in-flight sequence and interpolate from the last emitted position.
func (s *Smoother) Push(sample domain.PositionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()

	if s.last == nil {
		s.emitLocked(domain.Position{PositionSample: sample})
		return
	}

	from := *s.last
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen
	t := s.newTicker(s.interval)

	go s.run(ctx, gen, t, from.PositionSample, sample)
}

// Stop cancels the in-flight sequence. Nothing is emitted after Stop returns.
func (s *Smoother) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Reset cancels the in-flight sequence and forgets the anchor, so the next
// sample snaps again.
func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.last = nil
}

// Last returns the most recently emitted position
func (s *Smoother) Last() (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return domain.Position{}, false
	}
	return *s.last, true
}

// cancelLocked bumps the generation so a sequence that already picked up a
// tick drops it instead of emitting.
func (s *Smoother) cancelLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Smoother) emitLocked(p domain.Position) {
	s.last = &p
	if s.emit != nil {
		s.emit(p)
	}
}

func (s *Smoother) run(ctx context.Context, gen uint64, t ticker, from, to domain.PositionSample) {
	defer t.Stop()

	for step := 1; step <= s.steps; step++ {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
		}

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.emitLocked(interpolate(from, to, step, s.steps))
		if step == s.steps && s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.mu.Unlock()
	}
}

func interpolate(from, to domain.PositionSample, step, steps int) domain.Position {
	if step >= steps {
		return domain.Position{PositionSample: to, Interpolated: true, Step: steps}
	}
	t := float64(step) / float64(steps)
	return domain.Position{
		PositionSample: domain.PositionSample{
			Latitude:  geo.Lerp(from.Latitude, to.Latitude, t),
			Longitude: geo.Lerp(from.Longitude, to.Longitude, t),
			Speed:     geo.Lerp(from.Speed, to.Speed, t),
			Heading:   geo.LerpAngle(from.Heading, to.Heading, t),
			Accuracy:  to.Accuracy,
			Timestamp: to.Timestamp,
		},
		Interpolated: true,
		Step:         step,
	}
}
