package core

import "errors"

var ErrConnClosed = errors.New("connection closed")

// Frame is one encoded protocol message.
type Frame []byte

type ConnID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking.
	TrySend(Frame) error
	Close()
}

// GoingAwayCloser is implemented by transports that can tell the peer the
// server is shutting down before closing.
type GoingAwayCloser interface {
	CloseGoingAway()
}
