package core

import (
	"errors"
	"sync"
)

var errFull = errors.New("full")

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errFull
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) got() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Frame(nil), f.frames...)
}
