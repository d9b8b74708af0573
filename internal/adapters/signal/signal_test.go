package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/jukebox/internal/app"
	"github.com/dkeye/jukebox/internal/app/orch"
	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/app/sfu"
	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{orch.ErrNotInRoom, "not_in_room"},
		{fmt.Errorf("%w: song: %w", playback.ErrResolve, errors.New("boom")), "resolve_failed"},
		{playback.ErrInvalidSeek, "invalid_seek"},
		{domain.ErrDuplicate, "duplicate"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("something else"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

type testClient struct {
	t    *testing.T
	ctl  *SignalWSController
	sid  core.SessionID
	conn *WsSignalConn
}

func newTestController(t *testing.T, limiter *RoomRateLimiter) *SignalWSController {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Relays:   sfu.NewRelayManager(),
	}
	o.UseSessions(app.NewSessionManager(ctx, playback.Config{}, playback.Deps{}, nil))
	t.Cleanup(func() {
		o.Sessions.CloseAll()
		cancel()
	})
	return NewSignalWSController(o, limiter, Options{})
}

func (ctl *SignalWSController) client(t *testing.T, sid core.SessionID) *testClient {
	conn := &WsSignalConn{send: make(chan core.Frame, sendBuffer)}
	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	sess := core.NewMemberSession(domain.NewMember(user)).UpdateSignal(conn)
	ctl.Orch.Registry.BindSignal(sid, sess, func() {})
	return &testClient{t: t, ctl: ctl, sid: sid, conn: conn}
}

func (c *testClient) send(msg string) {
	c.ctl.handleSignal(context.Background(), c.sid, c.conn, []byte(msg))
}

// next returns the next frame sent to the client, decoded.
func (c *testClient) next() map[string]any {
	c.t.Helper()
	select {
	case f := <-c.conn.send:
		var m map[string]any
		require.NoError(c.t, json.Unmarshal(f, &m))
		return m
	case <-time.After(time.Second):
		c.t.Fatal("no frame received")
		return nil
	}
}

func TestHandleSignal_Basics(t *testing.T) {
	ctl := newTestController(t, nil)
	c := ctl.client(t, "a")

	c.send(`{"type":"ping"}`)
	assert.Equal(t, "pong", c.next()["type"])

	c.send(`not json`)
	assert.Equal(t, "bad_payload", c.next()["error"])

	c.send(`{"type":"dance"}`)
	reply := c.next()
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "unknown_command", reply["error"])

	c.send(`{"type":"whoami"}`)
	reply = c.next()
	assert.Equal(t, "whoami", reply["type"])
	assert.Equal(t, "guest", reply["username"])
}

func TestHandleSignal_JoinAndQueue(t *testing.T) {
	ctl := newTestController(t, nil)
	a := ctl.client(t, "a")
	b := ctl.client(t, "b")

	a.send(`{"type":"pause"}`)
	assert.Equal(t, "not_in_room", a.next()["error"])

	a.send(`{"type":"join","room":"   "}`)
	assert.Equal(t, "empty_name", a.next()["error"])

	a.send(`{"type":"join","room":"lobby","name":"alice"}`)
	state := a.next()
	assert.Equal(t, "room_state", state["type"])
	assert.Equal(t, "lobby", state["room"])
	assert.EqualValues(t, 1, state["count"])

	b.send(`{"type":"join","room":"lobby"}`)
	assert.Equal(t, "room_state", b.next()["type"])
	joined := a.next()
	assert.Equal(t, "member_joined", joined["type"])

	a.send(`{"type":"stop"}`)
	info := a.next()
	assert.Equal(t, "info", info["type"])
	assert.Equal(t, "nothing_playing", info["message"])

	a.send(`{"type":"queue"}`)
	q := a.next()
	assert.Equal(t, "queue", q["type"])
	assert.Equal(t, "idle", q["state"])
	assert.Empty(t, q["items"])

	a.send(`{"type":"seek"}`)
	assert.Equal(t, "bad_payload", a.next()["error"])

	a.send(`{"type":"playlist_list"}`)
	assert.Equal(t, "library_unavailable", a.next()["error"])

	b.send(`{"type":"leave"}`)
	assert.Equal(t, "ok", b.next()["type"])
	assert.Equal(t, "member_left", a.next()["type"])
}

func TestHandleSignal_RateLimited(t *testing.T) {
	ctl := newTestController(t, NewRoomRateLimiter(1, time.Minute))
	c := ctl.client(t, "a")

	c.send(`{"type":"rename","name":"bob"}`)
	assert.Equal(t, "whoami", c.next()["type"])
	c.send(`{"type":"rename","name":"rob"}`)
	assert.Equal(t, "rate_limited", c.next()["error"])

	c.send(`{"type":"ping"}`)
	assert.Equal(t, "pong", c.next()["type"], "ping is never limited")
}
