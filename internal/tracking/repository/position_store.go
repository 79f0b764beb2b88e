package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grocery-backend/internal/tracking/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultPositionTTL bounds how long a silent driver keeps a position
const DefaultPositionTTL = 10 * time.Minute

// MaxClockSkew is how far ahead of the server a device clock may run.
// Later timestamps are replaced by the receive time.
const MaxClockSkew = 30 * time.Second

// ErrStaleSample is returned when a sample is not newer than the stored one
var ErrStaleSample = errors.New("sample is older than the latest stored position")

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// PositionStore keeps the latest sample per driver in Redis
type PositionStore struct {
	rdb redisClient
	ttl time.Duration
	now func() time.Time
}

func NewPositionStore(rdb redisClient, ttl time.Duration) *PositionStore {
	if ttl <= 0 {
		ttl = DefaultPositionTTL
	}
	return &PositionStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func positionKey(driverID string) string {
	return fmt.Sprintf("driver:%s:position", driverID)
}

// Save records sample as the driver's latest position. Samples that are not
// newer than the stored one are rejected with ErrStaleSample.
func (s *PositionStore) Save(ctx context.Context, driverID string, sample domain.PositionSample) error {
	current, err := s.Latest(ctx, driverID)
	if err != nil {
		return err
	}

	sample = sample.Normalize(current)
	if now := s.now(); sample.Timestamp.After(now.Add(MaxClockSkew)) {
		sample.Timestamp = now
	}

	if current != nil && !sample.Timestamp.After(current.Timestamp) {
		return ErrStaleSample
	}

	b, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode position: %w", err)
	}
	if err := s.rdb.Set(ctx, positionKey(driverID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store position: %w", err)
	}
	return nil
}

// Latest returns nil, nil when the driver has no recent position
func (s *PositionStore) Latest(ctx context.Context, driverID string) (*domain.PositionSample, error) {
	raw, err := s.rdb.Get(ctx, positionKey(driverID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read position: %w", err)
	}

	var sample domain.PositionSample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return nil, fmt.Errorf("failed to decode position: %w", err)
	}
	return &sample, nil
}
