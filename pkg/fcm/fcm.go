package fcm

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// MaxBatchSize is the most messages FCM accepts in one SendEach call
const MaxBatchSize = 500

// Reason codes reported on failed receipts
const (
	ReasonDeviceNotRegistered = "DeviceNotRegistered"
	ReasonMismatchSenderID    = "MismatchSenderId"
	ReasonInvalidArgument     = "InvalidArgument"
	ReasonRateExceeded        = "MessageRateExceeded"
	ReasonUnavailable         = "Unavailable"
	ReasonInternal            = "InternalError"
	ReasonUnknown             = "Unknown"
)

// Priority of a push message
type Priority string

const (
	PriorityDefault Priority = "default"
	PriorityNormal  Priority = "normal"
	PriorityHigh    Priority = "high"
)

// Message is one push addressed to one device token
type Message struct {
	Token    string
	Title    string
	Body     string
	Data     map[string]string // custom data payload, "type" drives client routing
	Priority Priority
	Sound    string
}

// ReceiptStatus is the per-message outcome
type ReceiptStatus string

const (
	StatusOK    ReceiptStatus = "ok"
	StatusError ReceiptStatus = "error"
)

// Receipt reports the outcome for the message at the same index
type Receipt struct {
	Token     string
	Status    ReceiptStatus
	MessageID string
	Reason    string
	Err       error
}

// OK reports whether the provider accepted the message
func (r Receipt) OK() bool {
	return r.Status == StatusOK
}

// Permanent reports whether the token will never accept messages again
func (r Receipt) Permanent() bool {
	return r.Status == StatusError && r.Reason == ReasonDeviceNotRegistered
}

type sender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	sender   sender
	classify func(error) string
	logger   zerolog.Logger
}

// NewClient creates a new FCM client using the provided credentials file
func NewClient(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	c := newClient(messagingClient, logger)
	c.logger.Info().Msg("Client initialized successfully")
	return c, nil
}

func newClient(s sender, logger zerolog.Logger) *Client {
	return &Client{
		sender:   s,
		classify: classify,
		logger:   logger.With().Str("component", "FCM").Logger(),
	}
}

// MaxBatchSize returns the provider batch limit
func (c *Client) MaxBatchSize() int {
	return MaxBatchSize
}

// SendBatch submits up to MaxBatchSize messages and returns one receipt per
// message, in order. An error means the whole batch was not submitted.
func (c *Client) SendBatch(ctx context.Context, messages []Message) ([]Receipt, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(messages) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds FCM limit of %d", len(messages), MaxBatchSize)
	}

	out := make([]*messaging.Message, len(messages))
	for i, m := range messages {
		out[i] = toFCM(m)
	}

	response, err := c.sender.SendEach(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM batch: %w", err)
	}
	if response == nil || len(response.Responses) != len(messages) {
		return nil, errors.New("FCM returned a receipt count that does not match the batch")
	}

	c.logger.Debug().
		Int("success", response.SuccessCount).
		Int("failure", response.FailureCount).
		Msg("Batch sent")

	receipts := make([]Receipt, len(messages))
	for i, resp := range response.Responses {
		r := Receipt{Token: messages[i].Token}
		switch {
		case resp == nil:
			r.Status = StatusError
			r.Reason = ReasonUnknown
			r.Err = errors.New("missing response")
		case resp.Success:
			r.Status = StatusOK
			r.MessageID = resp.MessageID
		default:
			r.Status = StatusError
			r.Reason = c.classify(resp.Error)
			r.Err = resp.Error
			c.logger.Debug().Err(resp.Error).Str("token", MaskToken(r.Token)).Str("reason", r.Reason).Msg("Message rejected")
		}
		receipts[i] = r
	}
	return receipts, nil
}

func toFCM(m Message) *messaging.Message {
	sound := m.Sound
	if sound == "" {
		sound = "default"
	}

	androidPriority, apnsPriority := "normal", "5"
	if m.Priority == PriorityHigh {
		androidPriority, apnsPriority = "high", "10"
	}

	return &messaging.Message{
		Token: m.Token,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
		Data: m.Data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
			Notification: &messaging.AndroidNotification{
				Sound: sound,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: sound},
			},
		},
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsUnregistered(err):
		return ReasonDeviceNotRegistered
	case messaging.IsSenderIDMismatch(err):
		return ReasonMismatchSenderID
	case messaging.IsInvalidArgument(err):
		return ReasonInvalidArgument
	case messaging.IsQuotaExceeded(err):
		return ReasonRateExceeded
	case messaging.IsUnavailable(err):
		return ReasonUnavailable
	case messaging.IsInternal(err):
		return ReasonInternal
	default:
		return ReasonUnknown
	}
}

// MaskToken shortens a device token for logs
func MaskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:12] + "..."
}
