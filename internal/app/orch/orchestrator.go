package orch

import (
	"context"
	"errors"

	"github.com/dkeye/callgate/internal/app"
	"github.com/dkeye/callgate/internal/auth"
	"github.com/dkeye/callgate/internal/core"
	"github.com/dkeye/callgate/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrMissingToken = errors.New("missing token")

// Orchestrator drives the join/signal/leave state machine on top of the
// registry. Transport adapters call it; it never touches sockets directly.
type Orchestrator struct {
	Registry *app.Registry
	Policy   app.Policy
	Verifier auth.Verifier
}

// Connect registers an unjoined connection and greets it.
func (o *Orchestrator) Connect(id core.ConnID, conn core.SignalConnection, cancel context.CancelFunc) {
	o.Registry.Bind(id, conn, cancel)
	if err := conn.TrySend(protocol.HelloFrame()); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("hello not delivered")
	}
}

// Relay forwards data to the other member of id's room.
func (o *Orchestrator) Relay(id core.ConnID, f core.Frame) error {
	room, res, err := o.Registry.Relay(id, f)
	if err != nil {
		return err
	}
	for _, slow := range res.Dropped {
		o.onBackpressure(room, slow)
	}
	return nil
}

// Disconnect is the single cleanup path for every way a connection ends.
func (o *Orchestrator) Disconnect(id core.ConnID) {
	o.Registry.Cancel(id)
	meta, joined := o.Registry.Unbind(id, func(gone core.MemberSession, room core.RoomService, remaining []core.MemberSession) {
		f := protocol.EventFrame(protocol.TypePeerLeft)
		for _, m := range remaining {
			o.deliver(room, m, f)
		}
	})
	if joined {
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(meta.RoomID)).Msg("left room")
	}
}

func (o *Orchestrator) deliver(room core.RoomService, m core.MemberSession, f core.Frame) {
	err := m.Signal().TrySend(f)
	if err == nil || errors.Is(err, core.ErrConnClosed) {
		return
	}
	o.onBackpressure(room, m)
}

func (o *Orchestrator) onBackpressure(room core.RoomService, m core.MemberSession) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(room, m) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("conn", string(m.ID())).Str("room", string(room.ID())).Msg("kicking slow member")
		// the transport's read loop notices the close and calls Disconnect
		m.Signal().Close()
	case app.DropFrame:
		log.Debug().Str("module", "orch").Str("conn", string(m.ID())).Str("room", string(room.ID())).Msg("dropped frame for slow member")
	}
}
