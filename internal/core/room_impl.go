package core

import (
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/callgate/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room capped at `capacity` members.
// It never closes adapter-owned resources.
type roomImpl struct {
	id       domain.RoomID
	capacity int

	mu     sync.RWMutex
	byConn map[ConnID]MemberSession
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:       id,
		capacity: domain.MaxRoomPeers,
		byConn:   make(map[ConnID]MemberSession, domain.MaxRoomPeers),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

func (r *roomImpl) Admit(ms MemberSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byConn[ms.ID()]; ok {
		return nil
	}
	if len(r.byConn) >= r.capacity {
		return ErrRoomFull
	}
	r.byConn[ms.ID()] = ms
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(ms.ID())).Msg("member added")
	return nil
}

func (r *roomImpl) Remove(id ConnID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, id)
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Msg("member removed")
	return len(r.byConn)
}

// Members returns a snapshot ordered by connection id.
func (r *roomImpl) Members() []MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot("")
}

func (r *roomImpl) Others(id ConnID) []MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(id)
}

func (r *roomImpl) snapshot(skip ConnID) []MemberSession {
	out := make([]MemberSession, 0, len(r.byConn))
	for cid, ms := range r.byConn {
		if cid == skip {
			continue
		}
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *roomImpl) Broadcast(from ConnID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for cid, m := range r.byConn {
		if cid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			// a closed peer is already on its way out
			if !errors.Is(err, ErrConnClosed) {
				res.Dropped = append(res.Dropped, m)
			}
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
