package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("booking not found")
	ErrInvalidRole = errors.New("invalid role")
	ErrForbidden   = errors.New("forbidden")
	ErrConfig      = errors.New("configuration error")
)

// WindowError is returned when a gated student arrives outside the join
// window. It matches ErrForbidden under errors.Is.
type WindowError struct {
	OpenAt  time.Time
	CloseAt time.Time
	Start   time.Time
	End     time.Time
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("outside join window [%s, %s]",
		e.OpenAt.UTC().Format(time.RFC3339), e.CloseAt.UTC().Format(time.RFC3339))
}

func (e *WindowError) Unwrap() error { return ErrForbidden }
