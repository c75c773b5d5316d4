package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps one key per booking and lets Redis expire stale ones.
// The expiry is only housekeeping; staleness is still judged by Beacon.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	expiry    time.Duration
}

func NewRedisStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil for RedisStore")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, expiry: 2 * ttl}
}

func (r *RedisStore) key(bookingID string) string {
	return r.keyPrefix + "waiting:" + bookingID
}

func (r *RedisStore) Touch(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(rec.BookingID), raw, r.expiry).Err(); err != nil {
		return fmt.Errorf("redis: touch waiting %s: %w", rec.BookingID, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, bookingID string) (Record, bool, error) {
	raw, err := r.client.Get(ctx, r.key(bookingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis: get waiting %s: %w", bookingID, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Debug().Err(err).Str("module", "presence").Str("booking", bookingID).Msg("unreadable waiting record")
		return Record{}, false, nil
	}
	return rec, true, nil
}
