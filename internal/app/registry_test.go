package app

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/callgate/internal/core"
	"github.com/dkeye/callgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type recConn struct {
	mu     sync.Mutex
	frames []string
	closed bool
}

func (c *recConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(f))
	return nil
}

func (c *recConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *recConn) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func meta(room, sub string) *domain.Member {
	return domain.NewMember(domain.RoomID(room), sub, domain.RoleStudent, "")
}

func TestRegistryJoinCapacityUnderContention(t *testing.T) {
	for round := 0; round < 20; round++ {
		r := NewRegistry()
		const n = 8
		for i := 0; i < n; i++ {
			r.Bind(core.ConnID(fmt.Sprintf("c%d", i)), &recConn{}, nil)
		}

		var admitted, full atomic.Int32
		var g errgroup.Group
		for i := 0; i < n; i++ {
			id := core.ConnID(fmt.Sprintf("c%d", i))
			g.Go(func() error {
				_, err := r.Join(id, meta("booking-1", string(id)), nil)
				switch {
				case err == nil:
					admitted.Add(1)
				case errors.Is(err, core.ErrRoomFull):
					full.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.EqualValues(t, 2, admitted.Load())
		assert.EqualValues(t, n-2, full.Load())
		assert.Equal(t, 2, r.RoomSize("booking-1"))
	}
}

func TestRegistryJoinReportsPriorPeers(t *testing.T) {
	r := NewRegistry()
	r.Bind("a", &recConn{}, nil)
	r.Bind("b", &recConn{}, nil)

	var seen []int
	fn := func(self core.MemberSession, room core.RoomService, peers int) {
		seen = append(seen, peers)
		assert.Equal(t, peers+1, room.MemberCount())
	}
	p, err := r.Join("a", meta("booking-1", "a"), fn)
	require.NoError(t, err)
	assert.Equal(t, 0, p)
	p, err = r.Join("b", meta("booking-1", "b"), fn)
	require.NoError(t, err)
	assert.Equal(t, 1, p)
	assert.Equal(t, []int{0, 1}, seen)
}

func TestRegistryRejectsUnknownAndDoubleJoin(t *testing.T) {
	r := NewRegistry()
	_, err := r.Join("ghost", meta("booking-1", "x"), nil)
	assert.ErrorIs(t, err, ErrUnknownConn)

	r.Bind("a", &recConn{}, nil)
	_, err = r.Join("a", meta("booking-1", "a"), nil)
	require.NoError(t, err)
	_, err = r.Join("a", meta("booking-2", "a"), nil)
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	assert.False(t, r.HasRoom("booking-2"))
}

func TestRegistryFullRoomIsNotCreatedForRejectedJoiner(t *testing.T) {
	r := NewRegistry()
	for _, id := range []core.ConnID{"a", "b", "c"} {
		r.Bind(id, &recConn{}, nil)
	}
	_, err := r.Join("a", meta("booking-1", "a"), nil)
	require.NoError(t, err)
	_, err = r.Join("b", meta("booking-1", "b"), nil)
	require.NoError(t, err)
	_, err = r.Join("c", meta("booking-1", "c"), nil)
	require.ErrorIs(t, err, core.ErrRoomFull)

	_, ok := r.Member("c")
	assert.False(t, ok, "rejected joiner must not carry metadata")
}

func TestRegistryRelayOnlyWithinRoom(t *testing.T) {
	r := NewRegistry()
	a, b, c := &recConn{}, &recConn{}, &recConn{}
	r.Bind("a", a, nil)
	r.Bind("b", b, nil)
	r.Bind("c", c, nil)
	_, err := r.Join("a", meta("booking-1", "a"), nil)
	require.NoError(t, err)
	_, err = r.Join("b", meta("booking-1", "b"), nil)
	require.NoError(t, err)
	_, err = r.Join("c", meta("booking-2", "c"), nil)
	require.NoError(t, err)

	_, res, err := r.Relay("a", core.Frame("hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []string{"hi"}, b.got())
	assert.Empty(t, a.got())
	assert.Empty(t, c.got())
}

func TestRegistryRelayRequiresJoin(t *testing.T) {
	r := NewRegistry()
	r.Bind("a", &recConn{}, nil)
	_, _, err := r.Relay("a", core.Frame("x"))
	assert.ErrorIs(t, err, ErrNotJoined)
	_, _, err = r.Relay("nobody", core.Frame("x"))
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestRegistryUnbindDeletesEmptyRoom(t *testing.T) {
	r := NewRegistry()
	r.Bind("a", &recConn{}, nil)
	r.Bind("b", &recConn{}, nil)
	_, err := r.Join("a", meta("booking-1", "a"), nil)
	require.NoError(t, err)
	_, err = r.Join("b", meta("booking-1", "b"), nil)
	require.NoError(t, err)

	var left []core.ConnID
	m, ok := r.Unbind("a", func(gone core.MemberSession, _ core.RoomService, remaining []core.MemberSession) {
		assert.Equal(t, core.ConnID("a"), gone.ID())
		for _, ms := range remaining {
			left = append(left, ms.ID())
		}
	})
	require.True(t, ok)
	assert.Equal(t, "a", m.Subject)
	assert.Equal(t, []core.ConnID{"b"}, left)
	assert.True(t, r.HasRoom("booking-1"))

	_, ok = r.Unbind("b", nil)
	require.True(t, ok)
	assert.False(t, r.HasRoom("booking-1"))
	assert.Equal(t, Stats{}, r.Stats())

	// a fresh join starts a new, empty room
	r.Bind("d", &recConn{}, nil)
	p, err := r.Join("d", meta("booking-1", "d"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, p)
}

func TestRegistryUnbindUnjoined(t *testing.T) {
	r := NewRegistry()
	r.Bind("a", &recConn{}, nil)
	_, ok := r.Unbind("a", func(core.MemberSession, core.RoomService, []core.MemberSession) {
		t.Fatal("leave callback must not run for unjoined connections")
	})
	assert.False(t, ok)
	assert.Equal(t, 0, r.Stats().Connections)
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Bind("a", &recConn{}, func() { called = true })
	assert.True(t, r.Cancel("a"))
	assert.True(t, called)
	assert.False(t, r.Cancel("b"))
}

type goingAwayConn struct {
	recConn
	goingAway bool
}

func (c *goingAwayConn) CloseGoingAway() {
	c.mu.Lock()
	c.goingAway = true
	c.mu.Unlock()
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	plain := &recConn{}
	polite := &goingAwayConn{}
	r.Bind("a", plain, nil)
	r.Bind("b", polite, nil)
	_, err := r.Join("a", meta("booking-1", "stu_1"), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, r.CloseAll())
	assert.True(t, plain.closed)
	assert.True(t, polite.goingAway)
	assert.False(t, polite.closed, "going-away close replaces plain Close")
}

func TestParseBackpressureAction(t *testing.T) {
	a, err := ParseBackpressureAction("drop")
	require.NoError(t, err)
	assert.Equal(t, DropFrame, a)

	a, err = ParseBackpressureAction("kick")
	require.NoError(t, err)
	assert.Equal(t, KickMember, a)
	assert.Equal(t, KickMember, SimplePolicy{}.OnBackPressure(nil, nil))

	_, err = ParseBackpressureAction("ignore")
	assert.Error(t, err)
}
