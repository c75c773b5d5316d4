// Package booking resolves booking keys and slots from the store owned by the
// booking service. Nothing here writes bookings.
package booking

import (
	"context"
	"errors"

	"github.com/dkeye/callgate/internal/domain"
)

var ErrNotFound = errors.New("not found")

type Directory interface {
	// Resolve accepts either the internal id or the human-facing code.
	Resolve(ctx context.Context, key string) (*domain.Booking, error)
	Slot(ctx context.Context, id string) (*domain.Slot, error)
}
