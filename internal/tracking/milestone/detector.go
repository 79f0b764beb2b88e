// Package milestone turns distance readings into at-most-once proximity
// notifications for the customer of an order.
package milestone

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"grocery-backend/internal/notification"
	orderdomain "grocery-backend/internal/order/domain"
	"grocery-backend/internal/tracking/domain"
	"grocery-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	DefaultNearbyRadiusMeters  = 500.0
	DefaultArrivalRadiusMeters = 25.0

	lockStripes = 64
)

// OrderStore persists the last milestone notified for each order
type OrderStore interface {
	FindByID(ctx context.Context, id string) (*orderdomain.TrackedOrder, error)
	AdvanceMilestone(ctx context.Context, id string, from, to orderdomain.Milestone) (bool, error)
}

// Notifier delivers a message to one user
type Notifier interface {
	SendToUser(ctx context.Context, recipientID string, msg notification.Message) notification.Report
}

// Config holds the milestone radii
type Config struct {
	NearbyRadiusMeters  float64
	ArrivalRadiusMeters float64
}

// Detector advances the per-order milestone and sends one notification per
// milestone. The stored milestone is the only state; every transition goes
// through a check-and-set so concurrent callers cannot both send.
type Detector struct {
	cfg      Config
	orders   OrderStore
	notifier Notifier
	logger   zerolog.Logger

	// stripes keep sends for one order in milestone order within this process
	stripes [lockStripes]sync.Mutex
}

func NewDetector(cfg Config, orders OrderStore, notifier Notifier, logger zerolog.Logger) *Detector {
	if cfg.NearbyRadiusMeters <= 0 {
		cfg.NearbyRadiusMeters = DefaultNearbyRadiusMeters
	}
	if cfg.ArrivalRadiusMeters <= 0 {
		cfg.ArrivalRadiusMeters = DefaultArrivalRadiusMeters
	}
	return &Detector{
		cfg:      cfg,
		orders:   orders,
		notifier: notifier,
		logger:   logger.With().Str("component", "Milestone").Logger(),
	}
}

// Evaluate checks a distance reading against the radii
func (d *Detector) Evaluate(ctx context.Context, reading domain.Reading) error {
	proximity := notification.Proximity{
		DistanceMeters: reading.DistanceMeters,
		HasDistance:    true,
		ETA:            reading.ETA,
		HasETA:         reading.HasETA,
	}
	return d.advanceTo(ctx, reading.OrderID, proximity, d.target(reading.DistanceMeters))
}

// MarkArrived fires any pending milestone up to ARRIVED for an explicit
// arrival reported by the order service. No distance is reported with it.
func (d *Detector) MarkArrived(ctx context.Context, orderID string) error {
	return d.advanceTo(ctx, orderID, notification.Proximity{}, orderdomain.MilestoneArrived)
}

func (d *Detector) target(distanceMeters float64) orderdomain.Milestone {
	switch {
	case distanceMeters <= d.cfg.ArrivalRadiusMeters:
		return orderdomain.MilestoneArrived
	case distanceMeters <= d.cfg.NearbyRadiusMeters:
		return orderdomain.MilestoneNearby
	default:
		return orderdomain.MilestoneNone
	}
}

func (d *Detector) advanceTo(ctx context.Context, orderID string, proximity notification.Proximity, target orderdomain.Milestone) error {
	if orderID == "" || target == orderdomain.MilestoneNone {
		return nil
	}

	mu := d.stripe(orderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := d.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order == nil || order.CustomerID == "" {
		return nil
	}

	from := order.LastNotifiedMilestone
	for from < target {
		next := from + 1
		won, err := d.orders.AdvanceMilestone(ctx, order.ID, from, next)
		if err != nil {
			return fmt.Errorf("failed to advance %s to %s: %w", order.ID, next, err)
		}
		if !won {
			// Another writer moved the milestone, continue from its value
			fresh, err := d.orders.FindByID(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("failed to reload order %s: %w", order.ID, err)
			}
			if fresh == nil || fresh.LastNotifiedMilestone <= from {
				return nil
			}
			from = fresh.LastNotifiedMilestone
			continue
		}

		d.send(ctx, order, next, proximity)
		from = next
	}
	return nil
}

func (d *Detector) stripe(orderID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	return &d.stripes[h.Sum32()%lockStripes]
}

func (d *Detector) send(ctx context.Context, order *orderdomain.TrackedOrder, m orderdomain.Milestone, proximity notification.Proximity) {
	var msg notification.Message
	switch m {
	case orderdomain.MilestoneNearby:
		msg = notification.DriverNearbyMessage(order.ID, proximity)
	case orderdomain.MilestoneArrived:
		msg = notification.DriverArrivedMessage(order.ID, proximity, order.DeliveryPIN)
	default:
		return
	}

	metrics.MilestonesFiredTotal.WithLabelValues(m.String()).Inc()
	report := d.notifier.SendToUser(ctx, order.CustomerID, msg)
	d.logger.Info().
		Str("order_id", order.ID).
		Str("milestone", m.String()).
		Float64("distance_m", proximity.DistanceMeters).
		Bool("measured", proximity.HasDistance).
		Int("delivered", report.Delivered).
		Msg("Milestone fired")
}
