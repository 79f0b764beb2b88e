package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	authdomain "grocery-backend/internal/auth/domain"
	orderdomain "grocery-backend/internal/order/domain"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// OrderEvent is published by the order service on every status change
type OrderEvent struct {
	OrderID        string                  `json:"orderId"`
	Status         orderdomain.OrderStatus `json:"status"`
	PreviousStatus orderdomain.OrderStatus `json:"previousStatus,omitempty"`
	StoreID        string                  `json:"storeId"`
}

// Sender is the part of the Dispatcher the service uses
type Sender interface {
	SendToUser(ctx context.Context, recipientID string, msg Message) Report
	SendToRoleInStore(ctx context.Context, storeID string, role authdomain.Role, statuses []authdomain.OnlineStatus, msg Message) Report
}

// OrderStatusStore mirrors order status into the tracking table
type OrderStatusStore interface {
	FindByID(ctx context.Context, id string) (*orderdomain.TrackedOrder, error)
	UpdateStatus(ctx context.Context, id string, status orderdomain.OrderStatus) error
}

// Tracker starts and stops per-order tracking sessions
type Tracker interface {
	Start(orderID string)
	Stop(orderID string)
}

// ArrivalMarker fires the arrival milestone on an explicit arrival
type ArrivalMarker interface {
	MarkArrived(ctx context.Context, orderID string) error
}

var onlineOnly = []authdomain.OnlineStatus{authdomain.StatusOnline}

// Service consumes order status events and turns them into notifications
// and tracking lifecycle changes.
type Service struct {
	pubsubClient *pubsub.Client
	topicName    string
	subName      string

	sender   Sender
	orders   OrderStatusStore
	tracker  Tracker
	arrivals ArrivalMarker
	logger   zerolog.Logger
}

func NewService(ctx context.Context, projectID, topicName, subName, credentialsFile string, sender Sender, orders OrderStatusStore, tracker Tracker, arrivals ArrivalMarker, logger zerolog.Logger) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	s := newService(sender, orders, tracker, arrivals, logger)
	s.pubsubClient = client
	s.topicName = topicName
	s.subName = subName
	if s.subName == "" {
		s.subName = topicName + "-sub" // Convention: topic-sub
	}
	return s, nil
}

func newService(sender Sender, orders OrderStatusStore, tracker Tracker, arrivals ArrivalMarker, logger zerolog.Logger) *Service {
	return &Service{
		sender:   sender,
		orders:   orders,
		tracker:  tracker,
		arrivals: arrivals,
		logger:   logger.With().Str("component", "PubSub").Logger(),
	}
}

// Start blocks receiving order events until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Str("topic", s.topicName).Str("subscription", s.subName).Msg("Starting order event consumer")

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error checking subscription existence")
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Error checking topic existence")
			return
		}
		if !topicExists {
			s.logger.Error().Str("topic", s.topicName).Msg("Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 20 * time.Second,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to create subscription")
			return
		}
		s.logger.Info().Str("subscription", s.subName).Msg("Created subscription")
	}

	s.logger.Info().Str("subscription", s.subName).Msg("Listening for order events")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg.Data)
		// Malformed or unprocessable events are dropped, never redelivered forever
		msg.Ack()
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Error receiving messages")
	}
}

// Close releases the Pub/Sub client
func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}

func (s *Service) handleMessage(ctx context.Context, data []byte) {
	var ev OrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to unmarshal order event")
		return
	}
	if ev.OrderID == "" || ev.Status == "" {
		s.logger.Warn().Str("order_id", ev.OrderID).Msg("Order event without id or status, dropping")
		return
	}

	log := s.logger.With().Str("order_id", ev.OrderID).Str("status", string(ev.Status)).Logger()

	order, err := s.orders.FindByID(ctx, ev.OrderID)
	if err != nil {
		log.Error().Err(err).Msg("Error loading order")
	}

	// Redelivered events keep tracking consistent but do not notify twice
	duplicate := order != nil && order.Status == ev.Status
	if !duplicate && order != nil {
		if err := s.orders.UpdateStatus(ctx, ev.OrderID, ev.Status); err != nil {
			log.Error().Err(err).Msg("Error updating order status")
		}
	}

	storeID := ev.StoreID
	if storeID == "" && order != nil {
		storeID = order.StoreID
	}

	switch ev.Status {
	case orderdomain.OrderStatusPending:
		if !duplicate && storeID != "" {
			s.sender.SendToRoleInStore(ctx, storeID, authdomain.RolePicker, onlineOnly, NewOrderMessage(ev.OrderID))
		}
	case orderdomain.OrderStatusPacked:
		if !duplicate && storeID != "" {
			s.sender.SendToRoleInStore(ctx, storeID, authdomain.RoleDriver, onlineOnly, PackedOrderMessage(ev.OrderID))
		}
	case orderdomain.OrderStatusDelivering:
		s.tracker.Start(ev.OrderID)
	case orderdomain.OrderStatusArrived:
		if err := s.arrivals.MarkArrived(ctx, ev.OrderID); err != nil {
			log.Error().Err(err).Msg("Error marking arrival")
		}
	case orderdomain.OrderStatusDelivered, orderdomain.OrderStatusCancelled:
		s.tracker.Stop(ev.OrderID)
	}

	if duplicate {
		log.Debug().Msg("Skipping notifications for redelivered event")
		return
	}

	// The arrival milestone push already tells the customer
	if ev.Status == orderdomain.OrderStatusArrived {
		return
	}
	if order != nil && order.CustomerID != "" {
		s.sender.SendToUser(ctx, order.CustomerID, OrderStatusMessage(ev.OrderID, ev.Status))
	}
	log.Debug().Msg("Order event handled")
}
