package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/callgate/internal/domain"
	"github.com/go-redis/redis/v8"
)

// RedisDirectory reads documents the booking service mirrors into Redis:
//
//	<prefix>booking:<id>        JSON domain.Booking
//	<prefix>booking_code:<code> booking id
//	<prefix>slot:<id>           JSON domain.Slot
type RedisDirectory struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisDirectory(client *redis.Client, keyPrefix string) *RedisDirectory {
	if client == nil {
		panic("redis client cannot be nil for RedisDirectory")
	}
	return &RedisDirectory{client: client, keyPrefix: keyPrefix}
}

func (r *RedisDirectory) bookingKey(id string) string { return r.keyPrefix + "booking:" + id }
func (r *RedisDirectory) codeKey(code string) string  { return r.keyPrefix + "booking_code:" + code }
func (r *RedisDirectory) slotKey(id string) string    { return r.keyPrefix + "slot:" + id }

func (r *RedisDirectory) Resolve(ctx context.Context, key string) (*domain.Booking, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrNotFound
	}
	var b domain.Booking
	err := r.getJSON(ctx, r.bookingKey(key), &b)
	if err == nil {
		return withID(&b, key), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id, err := r.client.Get(ctx, r.codeKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: resolve booking code: %w", err)
	}
	if err := r.getJSON(ctx, r.bookingKey(id), &b); err != nil {
		return nil, err
	}
	return withID(&b, id), nil
}

// withID fills the id from the storage key; documents may omit it and the
// room identity is derived from it.
func withID(b *domain.Booking, id string) *domain.Booking {
	if b.ID == "" {
		b.ID = id
	}
	return b
}

func (r *RedisDirectory) Slot(ctx context.Context, id string) (*domain.Slot, error) {
	var s domain.Slot
	if err := r.getJSON(ctx, r.slotKey(id), &s); err != nil {
		return nil, err
	}
	if s.ID == "" {
		s.ID = id
	}
	return &s, nil
}

func (r *RedisDirectory) getJSON(ctx context.Context, key string, v any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return nil
}
