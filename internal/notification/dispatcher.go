package notification

import (
	"context"
	"sync"
	"time"

	authdomain "grocery-backend/internal/auth/domain"
	"grocery-backend/pkg/fcm"
	"grocery-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// Message is the provider-agnostic notification. The recipient is chosen by
// the Dispatcher call, Data["type"] tells the client how to route it.
type Message struct {
	Title    string
	Body     string
	Data     map[string]string
	Priority fcm.Priority
}

// Type returns the routing discriminator
func (m Message) Type() string {
	return m.Data["type"]
}

// Report summarises one fan-out
type Report struct {
	Recipients int `json:"recipients"`
	Submitted  int `json:"submitted"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
	Pruned     int `json:"pruned"`
}

func (r *Report) add(o Report) {
	r.Submitted += o.Submitted
	r.Delivered += o.Delivered
	r.Failed += o.Failed
	r.Pruned += o.Pruned
}

// Provider submits batches of push messages
type Provider interface {
	MaxBatchSize() int
	SendBatch(ctx context.Context, messages []fcm.Message) ([]fcm.Receipt, error)
}

// UserFinder resolves recipients
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*authdomain.User, error)
	FindStaff(ctx context.Context, storeID string, role authdomain.Role, statuses []authdomain.OnlineStatus) ([]*authdomain.User, error)
}

// TokenCleaner drops tokens the provider reported as dead
type TokenCleaner interface {
	ClearToken(ctx context.Context, userID, token string) (bool, error)
}

// EngagementChecker lists drivers already on an active delivery
type EngagementChecker interface {
	EngagedDrivers(ctx context.Context, storeID string) ([]string, error)
}

// Dispatcher fans messages out to device tokens. It keeps no state between
// calls and is safe for concurrent use.
type Dispatcher struct {
	provider Provider
	users    UserFinder
	tokens   TokenCleaner
	engaged  EngagementChecker
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher. engaged may be nil when driver
// exclusion is not needed.
func NewDispatcher(provider Provider, users UserFinder, tokens TokenCleaner, engaged EngagementChecker, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		users:    users,
		tokens:   tokens,
		engaged:  engaged,
		logger:   logger.With().Str("component", "Dispatcher").Logger(),
	}
}

type recipient struct {
	userID string
	token  string
}

// SendToUser delivers msg to one user's device. A missing user or token is a
// logged no-op.
func (d *Dispatcher) SendToUser(ctx context.Context, recipientID string, msg Message) Report {
	if recipientID == "" {
		return Report{}
	}
	user, err := d.users.FindByID(ctx, recipientID)
	if err != nil {
		d.logger.Error().Err(err).Str("user_id", recipientID).Msg("Error finding recipient")
		return Report{}
	}
	if user == nil {
		d.logger.Debug().Str("user_id", recipientID).Msg("Recipient not found, skipping")
		return Report{}
	}

	recipients := d.withTokens([]*authdomain.User{user})
	return d.deliver(ctx, recipients, msg)
}

// SendToRoleInStore delivers msg to every staff member of storeID holding
// role with one of statuses. Drivers already on an active delivery are left out.
func (d *Dispatcher) SendToRoleInStore(ctx context.Context, storeID string, role authdomain.Role, statuses []authdomain.OnlineStatus, msg Message) Report {
	staff, err := d.users.FindStaff(ctx, storeID, role, statuses)
	if err != nil {
		d.logger.Error().Err(err).Str("store_id", storeID).Str("role", string(role)).Msg("Error finding staff")
		return Report{}
	}

	if role == authdomain.RoleDriver && d.engaged != nil && len(staff) > 0 {
		busy, err := d.engaged.EngagedDrivers(ctx, storeID)
		if err != nil {
			d.logger.Warn().Err(err).Str("store_id", storeID).Msg("Could not load engaged drivers, notifying all")
		}
		staff = excludeUsers(staff, busy)
	}

	recipients := d.withTokens(staff)
	d.logger.Debug().
		Str("store_id", storeID).
		Str("role", string(role)).
		Int("staff", len(staff)).
		Int("with_token", len(recipients)).
		Str("type", msg.Type()).
		Msg("Fan-out resolved")
	return d.deliver(ctx, recipients, msg)
}

func (d *Dispatcher) withTokens(users []*authdomain.User) []recipient {
	out := make([]recipient, 0, len(users))
	for _, u := range users {
		token := u.Token()
		if token == "" {
			continue
		}
		if !ValidPushToken(token) {
			d.logger.Warn().Str("user_id", u.ID).Str("token", fcm.MaskToken(token)).Msg("Skipping malformed push token")
			continue
		}
		out = append(out, recipient{userID: u.ID, token: token})
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, recipients []recipient, msg Message) Report {
	report := Report{Recipients: len(recipients)}
	if len(recipients) == 0 {
		return report
	}

	size := d.provider.MaxBatchSize()
	if size <= 0 {
		size = fcm.MaxBatchSize
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		batches = chunk(recipients, size)
	)
	for _, batch := range batches {
		wg.Add(1)
		go func(batch []recipient) {
			defer wg.Done()
			r := d.sendChunk(ctx, batch, msg)
			mu.Lock()
			report.add(r)
			mu.Unlock()
		}(batch)
	}
	wg.Wait()

	d.logger.Info().
		Str("type", msg.Type()).
		Int("recipients", report.Recipients).
		Int("batches", len(batches)).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Int("pruned", report.Pruned).
		Msg("Notification dispatched")
	return report
}

func (d *Dispatcher) sendChunk(ctx context.Context, batch []recipient, msg Message) Report {
	messages := make([]fcm.Message, len(batch))
	for i, r := range batch {
		messages[i] = fcm.Message{
			Token:    r.token,
			Title:    msg.Title,
			Body:     msg.Body,
			Data:     msg.Data,
			Priority: msg.Priority,
		}
	}

	started := time.Now()
	receipts, err := d.provider.SendBatch(ctx, messages)
	metrics.PushBatchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		d.logger.Error().Err(err).Int("size", len(batch)).Msg("Batch submission failed")
		metrics.PushMessagesTotal.WithLabelValues("failed").Add(float64(len(batch)))
		return Report{Failed: len(batch)}
	}

	report := Report{Submitted: len(batch)}
	for i, r := range batch {
		if i >= len(receipts) {
			report.Failed++
			continue
		}
		receipt := receipts[i]
		if receipt.OK() {
			report.Delivered++
			continue
		}
		report.Failed++
		if !receipt.Permanent() {
			d.logger.Warn().Err(receipt.Err).Str("user_id", r.userID).Str("reason", receipt.Reason).Msg("Push rejected")
			continue
		}
		cleared, err := d.tokens.ClearToken(ctx, r.userID, r.token)
		if err != nil {
			d.logger.Error().Err(err).Str("user_id", r.userID).Msg("Failed to clear dead token")
			continue
		}
		if cleared {
			report.Pruned++
			metrics.PushTokensPrunedTotal.Inc()
			d.logger.Info().Str("user_id", r.userID).Str("token", fcm.MaskToken(r.token)).Msg("Cleared unregistered token")
		}
	}
	metrics.PushMessagesTotal.WithLabelValues("delivered").Add(float64(report.Delivered))
	metrics.PushMessagesTotal.WithLabelValues("failed").Add(float64(report.Failed))
	return report
}

func chunk(recipients []recipient, size int) [][]recipient {
	var out [][]recipient
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		out = append(out, recipients[start:end])
	}
	return out
}

func excludeUsers(users []*authdomain.User, ids []string) []*authdomain.User {
	if len(ids) == 0 {
		return users
	}
	skip := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		skip[id] = struct{}{}
	}
	out := users[:0:0]
	for _, u := range users {
		if _, ok := skip[u.ID]; !ok {
			out = append(out, u)
		}
	}
	return out
}
