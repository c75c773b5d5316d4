package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/callgate/internal/booking"
	"github.com/dkeye/callgate/internal/domain"
)

// Identity is what the caller claims to be.
type Identity struct {
	Email     string
	StudentID string
}

// admit resolves the booking key and role, then applies authorizeAndGate.
func (s *Service) admit(ctx context.Context, req Request) (*domain.Booking, domain.Role, error) {
	b, err := s.dir.Resolve(ctx, req.BookingKey)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("resolve booking: %w", err)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, "", ErrInvalidRole
	}
	if err := s.authorizeAndGate(ctx, b, role, Identity{Email: req.Email, StudentID: req.StudentID}); err != nil {
		return nil, "", err
	}
	return b, role, nil
}

// authorizeAndGate is the single policy shared by session setup and TURN
// issuance. Teachers and open bookings skip both the identity check and the
// join window.
func (s *Service) authorizeAndGate(ctx context.Context, b *domain.Booking, role domain.Role, id Identity) error {
	if b.Open || role == domain.RoleTeacher {
		return nil
	}

	switch {
	case b.StudentID != "":
		if id.StudentID == "" || id.StudentID != b.StudentID {
			return ErrForbidden
		}
	case b.Email != "":
		if normalizeEmail(id.Email) == "" || normalizeEmail(id.Email) != normalizeEmail(b.Email) {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}

	if s.cfg.DevMode || b.SlotID == "" {
		return nil
	}
	slot, err := s.dir.Slot(ctx, b.SlotID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			// gating needs a slot; a dangling reference is treated as ungated
			return nil
		}
		return fmt.Errorf("resolve slot: %w", err)
	}
	return s.checkWindow(*slot)
}

func (s *Service) checkWindow(slot domain.Slot) error {
	start, end, err := slot.Bounds(s.cfg.Location)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	openAt := start.Add(-s.cfg.Margin)
	closeAt := end.Add(s.cfg.Margin)
	now := s.now().UTC()
	if now.Before(openAt) || now.After(closeAt) {
		return &WindowError{OpenAt: openAt, CloseAt: closeAt, Start: start, End: end}
	}
	return nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
