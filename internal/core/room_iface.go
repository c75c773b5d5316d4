package core

import (
	"errors"

	"github.com/dkeye/callgate/internal/domain"
)

var ErrRoomFull = errors.New("room full")

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Members() []MemberSession
	Others(id ConnID) []MemberSession

	// Admit checks capacity and inserts in one step.
	Admit(ms MemberSession) error
	// Remove returns the number of members left.
	Remove(id ConnID) int
	Broadcast(from ConnID, data Frame) PublishResult
}
