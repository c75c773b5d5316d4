// Package presence implements the teacher "I am here" heartbeat. It is
// advisory only and carries no authorization.
package presence

import (
	"context"
	"time"
)

const DefaultTTL = 60 * time.Second

// Record is the stored heartbeat.
type Record struct {
	BookingID   string `json:"bookingId"`
	LastSeenISO string `json:"lastSeenISO"`
}

type Store interface {
	Touch(ctx context.Context, rec Record) error
	// Get returns ok=false when no heartbeat was ever stored (or it expired
	// out of the backing store).
	Get(ctx context.Context, bookingID string) (rec Record, ok bool, err error)
}

type Status struct {
	Waiting  bool
	LastSeen time.Time
}

type Beacon struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewBeacon(store Store, ttl time.Duration) *Beacon {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Beacon{store: store, ttl: ttl, now: time.Now}
}

func (b *Beacon) Mark(ctx context.Context, bookingID string) error {
	return b.store.Touch(ctx, Record{
		BookingID:   bookingID,
		LastSeenISO: b.now().UTC().Format(time.RFC3339Nano),
	})
}

// Status reports Waiting iff the last heartbeat is at most ttl old.
func (b *Beacon) Status(ctx context.Context, bookingID string) (Status, error) {
	rec, ok, err := b.store.Get(ctx, bookingID)
	if err != nil || !ok {
		return Status{}, err
	}
	seen, err := time.Parse(time.RFC3339Nano, rec.LastSeenISO)
	if err != nil {
		// unreadable record: treat as absent
		return Status{}, nil
	}
	return Status{
		Waiting:  b.now().Sub(seen) <= b.ttl,
		LastSeen: seen,
	}, nil
}
