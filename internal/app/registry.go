package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/callgate/internal/core"
	"github.com/dkeye/callgate/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConn   = errors.New("unknown connection")
	ErrAlreadyJoined = errors.New("already joined")
	ErrNotJoined     = errors.New("not joined")
)

type connEntry struct {
	Conn    core.SignalConnection
	Cancel  context.CancelFunc
	Session core.MemberSession // nil until joined
}

// JoinFn runs after admission while the registry lock is held, so nothing
// can join or leave the room until it returns. It must not block.
type JoinFn func(self core.MemberSession, room core.RoomService, peers int)

// LeaveFn runs after removal under the same lock. remaining is empty when
// the room was deleted.
type LeaveFn func(gone core.MemberSession, room core.RoomService, remaining []core.MemberSession)

// Registry owns every room and the connection -> metadata table. Room
// lifecycle (create on first admit, delete when empty) and capacity checks
// are serialized by mu.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
	conns map[core.ConnID]*connEntry

	newRoom func(domain.RoomID) core.RoomService
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[domain.RoomID]core.RoomService),
		conns:   make(map[core.ConnID]*connEntry),
		newRoom: core.NewRoomService,
	}
}

// Bind registers a freshly connected, unjoined connection.
func (r *Registry) Bind(id core.ConnID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &connEntry{Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("bound connection")
}

// Join attaches meta to id and admits it into meta.RoomID. The size check and
// the insert happen under one lock; a full room is never created or grown.
func (r *Registry) Join(id core.ConnID, meta *domain.Member, fn JoinFn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return 0, ErrUnknownConn
	}
	if entry.Session != nil {
		return 0, ErrAlreadyJoined
	}

	room, exists := r.rooms[meta.RoomID]
	if !exists {
		room = r.newRoom(meta.RoomID)
	}
	peers := room.MemberCount()
	sess := core.NewMemberSession(id, meta, entry.Conn)
	if err := room.Admit(sess); err != nil {
		log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(meta.RoomID)).Msg("room full")
		return peers, err
	}
	if !exists {
		r.rooms[meta.RoomID] = room
	}
	entry.Session = sess
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(meta.RoomID)).
		Str("role", string(meta.Role)).Int("peers", peers).Msg("joined room")

	if fn != nil {
		fn(sess, room, peers)
	}
	return peers, nil
}

// Relay forwards f to every other member of id's room.
func (r *Registry) Relay(id core.ConnID, f core.Frame) (core.RoomService, core.PublishResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[id]
	if !ok || entry.Session == nil {
		return nil, core.PublishResult{}, ErrNotJoined
	}
	room, ok := r.rooms[entry.Session.Meta().RoomID]
	if !ok {
		return nil, core.PublishResult{}, ErrNotJoined
	}
	return room, room.Broadcast(id, f), nil
}

// Unbind forgets id. If it had joined, it leaves its room, the room is
// deleted once empty, and fn sees the remaining members.
func (r *Registry) Unbind(id core.ConnID, fn LeaveFn) (*domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("unbind connection")

	if entry.Session == nil {
		return nil, false
	}
	meta := entry.Session.Meta()
	room, ok := r.rooms[meta.RoomID]
	if !ok {
		return meta, true
	}
	var remaining []core.MemberSession
	if room.Remove(id) == 0 {
		delete(r.rooms, meta.RoomID)
		log.Info().Str("module", "app.registry").Str("room", string(meta.RoomID)).Msg("room closed")
	} else {
		remaining = room.Members()
	}
	if fn != nil {
		fn(entry.Session, room, remaining)
	}
	return meta, true
}

func (r *Registry) Member(id core.ConnID) (*domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[id]
	if !ok || entry.Session == nil {
		return nil, false
	}
	return entry.Session.Meta(), true
}

// RoomSize is 0 for rooms that do not exist.
func (r *Registry) RoomSize(room domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rs, ok := r.rooms[room]; ok {
		return rs.MemberCount()
	}
	return 0
}

func (r *Registry) HasRoom(room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room]
	return ok
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Rooms: len(r.rooms), Connections: len(r.conns)}
}

// Cancel stops id's connection-scoped context.
func (r *Registry) Cancel(id core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("canceled connection")
	return true
}

// CloseAll closes every live connection, bound or joined. Each transport's
// read loop then runs the normal Disconnect cleanup. It returns how many
// connections were closed.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	conns := make([]core.SignalConnection, 0, len(r.conns))
	for _, e := range r.conns {
		if e.Conn != nil {
			conns = append(conns, e.Conn)
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		if gc, ok := c.(core.GoingAwayCloser); ok {
			gc.CloseGoingAway()
			continue
		}
		c.Close()
	}
	log.Info().Str("module", "app.registry").Int("connections", len(conns)).Msg("closed all connections")
	return len(conns)
}
