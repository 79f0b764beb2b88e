package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grocery-backend/internal/tracking/domain"
	"grocery-backend/internal/tracking/smoother"
	"grocery-backend/pkg/geo"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var destination = geo.Point{Lat: 10.7769, Lng: 106.7009}

// scriptedSource replays queued results, then repeats the last one
type scriptedSource struct {
	mu      sync.Mutex
	results []sourceResult
	calls   []string
}

type sourceResult struct {
	fix *domain.Fix
	err error
}

func (s *scriptedSource) queue(fix *domain.Fix, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, sourceResult{fix: fix, err: err})
}

func (s *scriptedSource) Latest(_ context.Context, orderID string) (*domain.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, orderID)
	if len(s.results) == 0 {
		return nil, nil
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r.fix, r.err
}

func (s *scriptedSource) polledOrders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingEvaluator struct {
	mu       sync.Mutex
	readings []domain.Reading
}

func (r *recordingEvaluator) Evaluate(_ context.Context, reading domain.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, reading)
	return nil
}

func (r *recordingEvaluator) all() []domain.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Reading(nil), r.readings...)
}

// fixAt returns a fix whose sample sits metersNorth of the destination
func fixAt(orderID string, metersNorth float64, ts time.Time) *domain.Fix {
	lat := destination.Lat + metersNorth/111195.0
	return &domain.Fix{
		OrderID: orderID,
		Sample: domain.PositionSample{
			Latitude:  lat,
			Longitude: destination.Lng,
			Heading:   180,
			Speed:     6,
			Timestamp: ts,
		},
		Destination: destination,
	}
}

// primed returns a session holding orderID without a running poll loop
func primed(src PositionSource, ev MilestoneEvaluator) (*Session, uint64, *smoother.Smoother) {
	s := New(Config{Cadence: time.Hour, Steps: 4}, src, ev, zerolog.Nop())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.orderID = "order-1"
	s.isTracking = true
	s.smoother = smoother.New(time.Hour, 4, s.emitter(s.epoch, "order-1"))
	return s, s.epoch, s.smoother
}

func TestPollComputesDistanceAndETA(t *testing.T) {
	src := &scriptedSource{}
	ev := &recordingEvaluator{}
	s, epoch, sm := primed(src, ev)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	fix := fixAt("order-1", 400, now)
	arrival := now.Add(90 * time.Second)
	fix.EstimatedArrival = &arrival
	src.queue(fix, nil)

	s.poll(context.Background(), epoch, "order-1", sm)

	snap := s.Snapshot()
	assert.InDelta(t, 400, snap.DistanceMeters, 1)
	assert.Equal(t, 90*time.Second, snap.ETA)
	assert.True(t, snap.HasETA)
	assert.True(t, snap.IsTracking)
	require.NotNil(t, snap.Position, "first sample snaps straight to the display")
	assert.False(t, snap.Position.Interpolated)
	assert.Equal(t, fix.Sample, snap.Position.PositionSample)

	readings := ev.all()
	require.Len(t, readings, 1)
	assert.Equal(t, "order-1", readings[0].OrderID)
	assert.InDelta(t, 400, readings[0].DistanceMeters, 1)
}

func TestETAFloorsAtZero(t *testing.T) {
	src := &scriptedSource{}
	s, epoch, sm := primed(src, nil)

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }
	fix := fixAt("order-1", 50, now)
	late := now.Add(-time.Minute)
	fix.EstimatedArrival = &late
	src.queue(fix, nil)

	s.poll(context.Background(), epoch, "order-1", sm)

	assert.Equal(t, time.Duration(0), s.Snapshot().ETA)
}

func TestConsecutiveFailuresDowngradeTracking(t *testing.T) {
	src := &scriptedSource{}
	s, epoch, sm := primed(src, nil)
	ctx := context.Background()
	boom := errors.New("feed timeout")

	src.queue(fixAt("order-1", 800, time.Unix(10, 0)), nil)
	s.poll(ctx, epoch, "order-1", sm)
	before := s.Snapshot()
	require.NotNil(t, before.Position)

	src.mu.Lock()
	src.results = nil
	src.mu.Unlock()
	src.queue(nil, boom)
	src.queue(nil, boom)
	src.queue(nil, boom)
	src.queue(fixAt("order-1", 700, time.Unix(12, 0)), nil)

	s.poll(ctx, epoch, "order-1", sm)
	assert.True(t, s.IsTracking(), "one failure is tolerated")
	s.poll(ctx, epoch, "order-1", sm)
	assert.True(t, s.IsTracking(), "two failures are tolerated")
	s.poll(ctx, epoch, "order-1", sm)
	assert.False(t, s.IsTracking(), "third consecutive failure downgrades")

	after := s.Snapshot()
	assert.Equal(t, before.Position, after.Position, "failures never reset the trajectory")
	assert.Equal(t, "order-1", after.OrderID, "failures never tear the session down")

	s.poll(ctx, epoch, "order-1", sm)
	assert.True(t, s.IsTracking(), "a success resumes tracking")
	assert.InDelta(t, 700, s.Snapshot().DistanceMeters, 1)
}

func TestUnchangedSampleIsNotReplayed(t *testing.T) {
	src := &scriptedSource{}
	ev := &recordingEvaluator{}
	s, epoch, sm := primed(src, ev)

	var mu sync.Mutex
	emitted := 0
	s.OnPosition(func(string, domain.Position) {
		mu.Lock()
		emitted++
		mu.Unlock()
	})

	src.queue(fixAt("order-1", 300, time.Unix(10, 0)), nil)
	for i := 0; i < 3; i++ {
		s.poll(context.Background(), epoch, "order-1", sm)
	}

	mu.Lock()
	assert.Equal(t, 1, emitted)
	mu.Unlock()
	assert.Len(t, ev.all(), 3, "milestones are still evaluated on every poll")
}

func TestDisabledSessionDoesNotPoll(t *testing.T) {
	src := &scriptedSource{}
	s, epoch, sm := primed(src, nil)

	s.SetEnabled(false)
	s.poll(context.Background(), epoch, "order-1", sm)
	assert.Empty(t, src.polledOrders())
	assert.False(t, s.IsTracking())

	s.SetEnabled(true)
	s.poll(context.Background(), epoch, "order-1", sm)
	assert.Equal(t, []string{"order-1"}, src.polledOrders())
}

func TestStartWithoutOrderStaysSuspended(t *testing.T) {
	src := &scriptedSource{}
	s := New(Config{Cadence: 10 * time.Millisecond, Steps: 2}, src, nil, zerolog.Nop())

	s.Start(context.Background(), "")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, src.polledOrders())
	assert.False(t, s.IsTracking())
	s.Stop()
}

func TestStartPollsAtCadence(t *testing.T) {
	src := &scriptedSource{}
	src.queue(fixAt("order-1", 300, time.Unix(10, 0)), nil)
	s := New(Config{Cadence: 10 * time.Millisecond, Steps: 2}, src, nil, zerolog.Nop())

	s.Start(context.Background(), "order-1")
	defer s.Stop()

	require.Eventually(t, func() bool { return len(src.polledOrders()) >= 3 }, time.Second, 5*time.Millisecond)
	assert.NotNil(t, s.Snapshot().Position)
}

func TestSwitchingOrdersDropsPreviousOrder(t *testing.T) {
	src := &scriptedSource{}
	s := New(Config{Cadence: 10 * time.Millisecond, Steps: 2}, src, nil, zerolog.Nop())

	var mu sync.Mutex
	var seen []string
	s.OnPosition(func(orderID string, _ domain.Position) {
		mu.Lock()
		seen = append(seen, orderID)
		mu.Unlock()
	})

	ts := time.Unix(0, 0)
	src.queue(fixAt("order-a", 900, ts), nil)
	s.Start(context.Background(), "order-a")
	require.Eventually(t, func() bool { return s.Snapshot().Position != nil }, time.Second, 5*time.Millisecond)

	// Let order-a keep interpolating toward a second sample while we switch
	src.queue(fixAt("order-a", 850, ts.Add(time.Second)), nil)
	time.Sleep(15 * time.Millisecond)

	s.Start(context.Background(), "order-b")
	mu.Lock()
	seenAtSwitch := len(seen)
	mu.Unlock()
	pollsAtSwitch := len(src.polledOrders())

	require.Eventually(t, func() bool { return len(src.polledOrders()) >= pollsAtSwitch+2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	for _, id := range src.polledOrders()[pollsAtSwitch:] {
		assert.Equal(t, "order-b", id)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, id := range seen[seenAtSwitch:] {
		assert.Equal(t, "order-b", id, "no positions for an order the session no longer owns")
	}
	assert.Equal(t, "", s.Snapshot().OrderID)
}
