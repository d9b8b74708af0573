package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

type published struct {
	room domain.RoomID
	msg  map[string]any
}

type fakePublisher struct {
	got []published
}

func (p *fakePublisher) Publish(room domain.RoomID, f core.Frame) core.PublishResult {
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		panic(err)
	}
	p.got = append(p.got, published{room: room, msg: m})
	return core.PublishResult{SendTo: 1}
}

func TestSink_PostNowPlaying(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSink(pub)
	s.newID = func() string { return "msg-1" }

	ref, err := s.PostNowPlaying(context.Background(), "lobby", "music", core.NowPlaying{
		Title:    "Song",
		URL:      "https://y/1",
		Duration: 3 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, core.MessageRef{Room: "lobby", Channel: "music", ID: "msg-1"}, ref)

	require.Len(t, pub.got, 1)
	assert.Equal(t, domain.RoomID("lobby"), pub.got[0].room)
	msg := pub.got[0].msg
	assert.Equal(t, "now_playing", msg["type"])
	assert.Equal(t, "msg-1", msg["id"])
	assert.Equal(t, "music", msg["channel"])
	assert.Equal(t, "Song", msg["track"].(map[string]any)["title"])
}

func TestSink_Delete(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSink(pub)

	require.NoError(t, s.Delete(context.Background(), core.MessageRef{}))
	assert.Empty(t, pub.got, "zero ref is ignored")

	require.NoError(t, s.Delete(context.Background(), core.MessageRef{Room: "lobby", ID: "msg-1"}))
	require.Len(t, pub.got, 1)
	assert.Equal(t, "message_deleted", pub.got[0].msg["type"])
	assert.Equal(t, "msg-1", pub.got[0].msg["id"])
}

func TestSink_IDsAreUnique(t *testing.T) {
	s := NewSink(&fakePublisher{})
	a, err := s.PostNowPlaying(context.Background(), "r", "", core.NowPlaying{})
	require.NoError(t, err)
	b, err := s.PostNowPlaying(context.Background(), "r", "", core.NowPlaying{})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
