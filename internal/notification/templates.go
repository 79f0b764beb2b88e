package notification

import (
	"fmt"
	"math"
	"strconv"
	"time"

	orderdomain "grocery-backend/internal/order/domain"
	"grocery-backend/pkg/fcm"
)

// Push types understood by the clients
const (
	TypeNewOrder      = "new_order"
	TypePackedOrder   = "packed_order"
	TypeOrderStatus   = "order_status"
	TypeDriverNearby  = "driver_nearby"
	TypeDriverArrived = "driver_arrived"
	TypeChatMessage   = "chat_message"
)

var statusCopy = map[orderdomain.OrderStatus][2]string{
	orderdomain.OrderStatusPending:    {"Order received", "Your order has been sent to the store."},
	orderdomain.OrderStatusPacking:    {"Packing your order", "A picker is collecting your items."},
	orderdomain.OrderStatusPacked:     {"Order packed", "Your order is packed and waiting for a driver."},
	orderdomain.OrderStatusDelivering: {"On the way", "Your driver has picked up your order."},
	orderdomain.OrderStatusArrived:    {"Driver arrived", "Your driver is at the door."},
	orderdomain.OrderStatusDelivered:  {"Delivered", "Enjoy your groceries!"},
	orderdomain.OrderStatusCancelled:  {"Order cancelled", "Your order has been cancelled."},
}

// IdempotencyKey identifies one milestone notification of one order
func IdempotencyKey(orderID string, m orderdomain.Milestone) string {
	return orderID + ":" + m.String()
}

// OrderStatusMessage tells the customer about a status change
func OrderStatusMessage(orderID string, status orderdomain.OrderStatus) Message {
	text, ok := statusCopy[status]
	if !ok {
		text = [2]string{"Order update", fmt.Sprintf("Your order is now %s.", status)}
	}
	return Message{
		Title: text[0],
		Body:  text[1],
		Data: map[string]string{
			"type":    TypeOrderStatus,
			"orderId": orderID,
			"status":  string(status),
		},
		Priority: fcm.PriorityDefault,
	}
}

// NewOrderMessage asks online pickers to take an order
func NewOrderMessage(orderID string) Message {
	return Message{
		Title: "New order",
		Body:  "A new order is waiting to be picked.",
		Data: map[string]string{
			"type":    TypeNewOrder,
			"orderId": orderID,
		},
		Priority: fcm.PriorityHigh,
	}
}

// PackedOrderMessage asks available drivers to take a packed order
func PackedOrderMessage(orderID string) Message {
	return Message{
		Title: "Order ready for delivery",
		Body:  "A packed order is waiting for a driver.",
		Data: map[string]string{
			"type":    TypePackedOrder,
			"orderId": orderID,
		},
		Priority: fcm.PriorityHigh,
	}
}

// Proximity is what a milestone push reports about the driver. An arrival
// announced by the order service carries no measurement.
type Proximity struct {
	DistanceMeters float64
	HasDistance    bool
	ETA            time.Duration
	HasETA         bool
}

// DriverNearbyMessage is sent once when the driver enters the nearby radius
func DriverNearbyMessage(orderID string, p Proximity) Message {
	data := map[string]string{
		"type":           TypeDriverNearby,
		"orderId":        orderID,
		"idempotencyKey": IdempotencyKey(orderID, orderdomain.MilestoneNearby),
	}
	body := "Your driver is almost there."
	if p.HasDistance {
		data["distanceMeters"] = formatMeters(p.DistanceMeters)
		body = fmt.Sprintf("Your driver is %s away.", formatDistance(p.DistanceMeters))
	}
	if p.HasETA {
		minutes := etaMinutes(p.ETA)
		data["etaMinutes"] = strconv.Itoa(minutes)
		if p.HasDistance {
			body = fmt.Sprintf("Your driver is %s away, about %d min.", formatDistance(p.DistanceMeters), minutes)
		} else {
			body = fmt.Sprintf("Your driver is about %d min away.", minutes)
		}
	}
	return Message{
		Title:    "Driver nearby",
		Body:     body,
		Data:     data,
		Priority: fcm.PriorityHigh,
	}
}

// DriverArrivedMessage is sent once when the driver reaches the destination.
// It carries the delivery PIN the customer reads out to the driver.
func DriverArrivedMessage(orderID string, p Proximity, pin string) Message {
	data := map[string]string{
		"type":           TypeDriverArrived,
		"orderId":        orderID,
		"etaMinutes":     "0",
		"idempotencyKey": IdempotencyKey(orderID, orderdomain.MilestoneArrived),
	}
	if p.HasDistance {
		data["distanceMeters"] = formatMeters(p.DistanceMeters)
	}
	body := "Your driver has arrived."
	if pin != "" {
		data["deliveryPin"] = pin
		body = fmt.Sprintf("Your driver has arrived. Delivery PIN: %s", pin)
	}
	return Message{
		Title:    "Driver arrived",
		Body:     body,
		Data:     data,
		Priority: fcm.PriorityHigh,
	}
}

func formatMeters(meters float64) string {
	return strconv.FormatFloat(math.Round(meters), 'f', 0, 64)
}

func etaMinutes(eta time.Duration) int {
	if eta <= 0 {
		return 0
	}
	return int(math.Ceil(eta.Minutes()))
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.1f km", meters/1000)
	}
	return fmt.Sprintf("%.0f m", math.Round(meters))
}
