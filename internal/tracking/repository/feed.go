package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	orderdomain "grocery-backend/internal/order/domain"
	"grocery-backend/internal/tracking/domain"
	"grocery-backend/pkg/geo"
)

// minETASpeed keeps ETAs finite while the driver is stopped (m/s)
const minETASpeed = 3.0

// OrderFinder loads the order a fix is assembled for
type OrderFinder interface {
	FindByID(ctx context.Context, id string) (*orderdomain.TrackedOrder, error)
}

// Feed assembles fixes from the order destination and the assigned driver's
// latest position.
type Feed struct {
	orders    OrderFinder
	positions *PositionStore
}

func NewFeed(orders OrderFinder, positions *PositionStore) *Feed {
	return &Feed{orders: orders, positions: positions}
}

// Latest returns nil, nil while the order has no driver or the driver has
// not reported a position.
func (f *Feed) Latest(ctx context.Context, orderID string) (*domain.Fix, error) {
	order, err := f.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil || order.DriverID == "" {
		return nil, nil
	}

	sample, err := f.positions.Latest(ctx, order.DriverID)
	if err != nil {
		return nil, err
	}
	if sample == nil {
		return nil, nil
	}

	dest := order.Destination()
	distance := geo.DistanceMeters(sample.Point(), dest)
	arrival := estimateArrival(*sample, distance)

	return &domain.Fix{
		OrderID:          order.ID,
		DriverID:         order.DriverID,
		Sample:           *sample,
		Destination:      dest,
		DistanceMeters:   distance,
		EstimatedArrival: &arrival,
	}, nil
}

func estimateArrival(sample domain.PositionSample, distanceMeters float64) time.Time {
	speed := math.Max(sample.Speed, minETASpeed)
	return sample.Timestamp.Add(time.Duration(distanceMeters / speed * float64(time.Second)))
}
