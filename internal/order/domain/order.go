package domain

import (
	"time"

	"grocery-backend/pkg/geo"
)

// OrderStatus is the lifecycle state owned by the order service
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPacking    OrderStatus = "packing"
	OrderStatusPacked     OrderStatus = "packed"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusArrived    OrderStatus = "arrived"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsTerminal reports whether tracking must stop for this status
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsActiveDelivery reports whether a driver assigned to the order is engaged
func (s OrderStatus) IsActiveDelivery() bool {
	return s == OrderStatusDelivering || s == OrderStatusArrived
}

// Milestone is a one-way proximity state. Values are ordered.
type Milestone int

const (
	MilestoneNone Milestone = iota
	MilestoneNearby
	MilestoneArrived
)

func (m Milestone) String() string {
	switch m {
	case MilestoneNearby:
		return "nearby"
	case MilestoneArrived:
		return "arrived"
	default:
		return "none"
	}
}

// TrackedOrder is the slice of an order the tracking pipeline needs.
// LastNotifiedMilestone only moves forward; see OrderRepository.AdvanceMilestone.
type TrackedOrder struct {
	ID                    string      `json:"id" gorm:"primaryKey"`
	CustomerID            string      `json:"customer_id" gorm:"index"`
	DriverID              string      `json:"driver_id,omitempty" gorm:"index"`
	StoreID               string      `json:"store_id" gorm:"index"`
	DestinationLat        float64     `json:"destination_lat"`
	DestinationLng        float64     `json:"destination_lng"`
	Status                OrderStatus `json:"status" gorm:"index;default:pending"`
	LastNotifiedMilestone Milestone   `json:"last_notified_milestone" gorm:"not null;default:0"`
	DeliveryPIN           string      `json:"-"` // shown to the customer only through the arrival push
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// Destination returns the drop-off coordinate
func (o *TrackedOrder) Destination() geo.Point {
	return geo.Point{Lat: o.DestinationLat, Lng: o.DestinationLng}
}
