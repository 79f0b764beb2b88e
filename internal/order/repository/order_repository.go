package repository

import (
	"context"

	"grocery-backend/internal/order/domain"
)

// OrderRepository defines the data access the tracking pipeline needs for orders
type OrderRepository interface {
	// FindByID returns nil, nil when the order does not exist
	FindByID(ctx context.Context, id string) (*domain.TrackedOrder, error)

	// FindByStatus lists orders currently in status
	FindByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.TrackedOrder, error)

	// FindActiveByDriver returns the order a driver is currently delivering, or nil
	FindActiveByDriver(ctx context.Context, driverID string) (*domain.TrackedOrder, error)

	// UpdateStatus records a status change published by the order service
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error

	// AdvanceMilestone moves last_notified_milestone from `from` to `to` only if
	// it still equals `from`. It reports whether this call made the change.
	AdvanceMilestone(ctx context.Context, id string, from, to domain.Milestone) (bool, error)

	// EngagedDrivers returns drivers of storeID assigned to an order in active delivery
	EngagedDrivers(ctx context.Context, storeID string) ([]string, error)
}
