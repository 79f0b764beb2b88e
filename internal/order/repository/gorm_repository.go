package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocery-backend/internal/order/domain"

	"gorm.io/gorm"
)

var activeDeliveryStatuses = []domain.OrderStatus{domain.OrderStatusDelivering, domain.OrderStatusArrived}

// gormOrderRepository implements OrderRepository using GORM
type gormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GORM-based OrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &gormOrderRepository{db: db}
}

func (r *gormOrderRepository) FindByID(ctx context.Context, id string) (*domain.TrackedOrder, error) {
	var order domain.TrackedOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.TrackedOrder, error) {
	var orders []*domain.TrackedOrder
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&orders).Error
	return orders, err
}

func (r *gormOrderRepository) FindActiveByDriver(ctx context.Context, driverID string) (*domain.TrackedOrder, error) {
	var order domain.TrackedOrder
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status IN ?", driverID, activeDeliveryStatuses).
		Order("updated_at DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.TrackedOrder{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update order status: %w", result.Error)
	}
	return nil
}

func (r *gormOrderRepository) AdvanceMilestone(ctx context.Context, id string, from, to domain.Milestone) (bool, error) {
	if to <= from {
		return false, nil
	}
	result := r.db.WithContext(ctx).Model(&domain.TrackedOrder{}).
		Where("id = ? AND last_notified_milestone = ?", id, from).
		Updates(map[string]interface{}{
			"last_notified_milestone": to,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to advance milestone: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *gormOrderRepository) EngagedDrivers(ctx context.Context, storeID string) ([]string, error) {
	var drivers []string
	err := r.db.WithContext(ctx).Model(&domain.TrackedOrder{}).
		Where("store_id = ? AND status IN ? AND driver_id <> ''", storeID, activeDeliveryStatuses).
		Distinct().
		Pluck("driver_id", &drivers).Error
	return drivers, err
}
