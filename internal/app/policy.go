package app

import (
	"fmt"

	"github.com/dkeye/callgate/internal/core"
)

type BackpressureAction int

const (
	// KickMember closes the slow member's connection.
	KickMember BackpressureAction = iota
	// DropFrame discards the frame and keeps the member.
	DropFrame
)

// ParseBackpressureAction accepts "kick" or "drop".
func ParseBackpressureAction(s string) (BackpressureAction, error) {
	switch s {
	case "kick", "":
		return KickMember, nil
	case "drop":
		return DropFrame, nil
	default:
		return KickMember, fmt.Errorf("unknown backpressure action %q", s)
	}
}

// Policy decides what happens to a member whose send queue is full.
type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
}

// SimplePolicy applies one action to every slow member. The zero value
// kicks: signaling is low volume, so a full queue means the peer is gone or
// stuck.
type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction {
	return p.Action
}
