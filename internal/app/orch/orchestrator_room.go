package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/callgate/internal/app"
	"github.com/dkeye/callgate/internal/auth"
	"github.com/dkeye/callgate/internal/core"
	"github.com/dkeye/callgate/internal/domain"
	"github.com/dkeye/callgate/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join verifies token and admits id into the room it names. The joiner gets
// joined before any peer_ready, and the other member hears peer_joined
// before peer_ready.
func (o *Orchestrator) Join(id core.ConnID, token string) (*domain.Member, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if _, ok := o.Registry.Member(id); ok {
		return nil, app.ErrAlreadyJoined
	}
	claims, err := o.Verifier.Verify(token)
	if err != nil {
		log.Info().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("join rejected")
		return nil, err
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("claims role: %w", err)
	}
	meta := domain.NewMember(domain.RoomID(claims.RoomID), claims.Subject, role, claims.DisplayName)

	_, err = o.Registry.Join(id, meta, func(self core.MemberSession, room core.RoomService, peers int) {
		o.deliver(room, self, protocol.JoinedFrame(meta, peers))

		joinedFrame := protocol.EventFrame(protocol.TypePeerJoined)
		for _, m := range room.Others(self.ID()) {
			o.deliver(room, m, joinedFrame)
		}
		if room.MemberCount() == domain.MaxRoomPeers {
			ready := protocol.EventFrame(protocol.TypePeerReady)
			for _, m := range room.Members() {
				o.deliver(room, m, ready)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// ErrorCode maps a Join or Relay failure to the code sent to the client.
// ok is false for failures that are not the client's to see.
func ErrorCode(err error) (code string, ok bool) {
	switch {
	case errors.Is(err, ErrMissingToken):
		return protocol.CodeMissingToken, true
	case errors.Is(err, core.ErrRoomFull):
		return protocol.CodeRoomFull, true
	case errors.Is(err, app.ErrAlreadyJoined):
		return protocol.CodeAlreadyJoined, true
	case errors.Is(err, app.ErrNotJoined):
		return protocol.CodeNotJoined, true
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingClaims), errors.Is(err, domain.ErrUnknownRole):
		// signature and claim failures look the same to the client
		return protocol.CodeInvalidToken, true
	default:
		return "", false
	}
}
