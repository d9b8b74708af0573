package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/jukebox/internal/domain"
)

type chanConn struct {
	frames chan Frame
}

func (c *chanConn) TrySend(f Frame) error {
	select {
	case c.frames <- f:
		return nil
	default:
		return errors.New("full")
	}
}

func (c *chanConn) Close() {}

func member(t *testing.T, name string, buf int) (MemberSession, *chanConn) {
	t.Helper()
	u, err := domain.NewUser(name)
	require.NoError(t, err)
	conn := &chanConn{frames: make(chan Frame, buf)}
	return NewMemberSession(domain.NewMember(u)).UpdateSignal(conn), conn
}

func TestRoom_MembershipCounts(t *testing.T) {
	r := NewRoomService("lobby")
	a, _ := member(t, "alice", 1)
	b, _ := member(t, "bob", 1)

	assert.Equal(t, 1, r.AddMember("a", a))
	assert.Equal(t, 2, r.AddMember("b", b))
	assert.Equal(t, 2, r.AddMember("b", b))
	assert.Len(t, r.MembersSnapshot(), 2)

	assert.Equal(t, 1, r.RemoveMember("a"))
	assert.Equal(t, 1, r.RemoveMember("missing"))
	assert.Equal(t, 1, r.MemberCount())
}

func TestRoom_BroadcastReportsDropped(t *testing.T) {
	r := NewRoomService("lobby")
	a, ac := member(t, "alice", 1)
	b, _ := member(t, "bob", 0)
	silent, _ := member(t, "carol", 1)
	silent.UpdateSignal(nil)
	r.AddMember("a", a)
	r.AddMember("b", b)
	r.AddMember("c", silent)

	res := r.Broadcast("", Frame("hi"))
	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []SessionID{"b"}, res.Dropped)
	assert.Equal(t, Frame("hi"), <-ac.frames)

	res = r.Broadcast("a", Frame("again"))
	assert.Equal(t, 0, res.SendTo)
}

type fakeMedia struct {
	MediaConnection
	closed int
}

func (f *fakeMedia) Close() { f.closed++ }

func TestMemberSession_UpdateMediaClosesPrevious(t *testing.T) {
	m, _ := member(t, "alice", 1)
	first, second := &fakeMedia{}, &fakeMedia{}

	m.UpdateMedia(first)
	m.UpdateMedia(first)
	assert.Equal(t, 0, first.closed)

	m.UpdateMedia(second)
	assert.Equal(t, 1, first.closed)
	assert.Same(t, second, m.Media())
}
