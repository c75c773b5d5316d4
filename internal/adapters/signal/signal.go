// Package signal is the WebSocket transport of the signaling broker.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/callgate/internal/app/orch"
	"github.com/dkeye/callgate/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

const (
	DefaultReadLimit  = 64 << 10
	DefaultPingPeriod = 54 * time.Second
	DefaultSendBuffer = 32

	writeWait = 5 * time.Second
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = DefaultPingPeriod
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	return o
}

// pongWait must exceed PingPeriod so one lost pong is not fatal.
func (o Options) pongWait() time.Duration {
	return o.PingPeriod * 10 / 9
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	opts Options
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{Orch: o, opts: opts.withDefaults()}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// CloseWith sends a close frame with code before tearing the socket down.
func (c *WsSignalConn) CloseWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("close frame not sent")
	}
	c.Close()
}

// CloseGoingAway tells the client the server is shutting down.
func (c *WsSignalConn) CloseGoingAway() {
	c.CloseWith(websocket.CloseGoingAway, "server shutting down")
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	id := core.ConnID(uuid.NewString())

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("remote", c.ClientIP()).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(id, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, id, conn)
}
