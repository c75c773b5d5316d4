package signal

import (
	"context"
	"time"

	"github.com/dkeye/callgate/internal/core"
	"github.com/dkeye/callgate/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping failed")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, id core.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Orch.Disconnect(id)
		c.Close()
	}()

	pongWait := ctl.opts.pongWait()
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
				} else {
					log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read ended")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleMessage(id, c, data)
		}
	}
}

func (ctl *SignalWSController) handleMessage(id core.ConnID, c *WsSignalConn, data []byte) {
	env, ok := protocol.ParseEnvelope(data)
	if !ok {
		log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("ignoring malformed frame")
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		ctl.handleJoin(id, c, data)
	case protocol.TypeSignal:
		ctl.handleRelay(id, c, data)
	case protocol.TypeLeave:
		ctl.handleLeave(id, c)
	default:
		if _, joined := ctl.Orch.Registry.Member(id); !joined {
			ctl.sendError(c, protocol.CodeNotJoined)
			return
		}
		log.Debug().Str("module", "signal").Str("type", env.Type).Msg("unknown message type")
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code string) {
	if err := c.TrySend(protocol.ErrorFrame(code)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("code", code).Msg("error reply dropped")
	}
}
