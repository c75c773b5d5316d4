package signal

import (
	"github.com/dkeye/callgate/internal/app/orch"
	"github.com/dkeye/callgate/internal/core"
	"github.com/dkeye/callgate/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// handleJoin keeps the socket open on every failure so the client can retry.
func (ctl *SignalWSController) handleJoin(id core.ConnID, c *WsSignalConn, data []byte) {
	p := protocol.ParseJoin(data)
	meta, err := ctl.Orch.Join(id, p.Token)
	if err != nil {
		code, ok := orch.ErrorCode(err)
		if !ok {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("join failed")
			return
		}
		ctl.sendError(c, code)
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("room", string(meta.RoomID)).
		Str("role", string(meta.Role)).Msg("join")
}

func (ctl *SignalWSController) handleRelay(id core.ConnID, c *WsSignalConn, data []byte) {
	if err := ctl.Orch.Relay(id, protocol.SignalFrame(protocol.ParseSignal(data))); err != nil {
		if code, ok := orch.ErrorCode(err); ok {
			ctl.sendError(c, code)
		}
	}
}

// handleLeave closes with 1000; readPump's cleanup does the rest.
func (ctl *SignalWSController) handleLeave(id core.ConnID, c *WsSignalConn) {
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("leave")
	c.CloseWith(websocket.CloseNormalClosure, "")
}
