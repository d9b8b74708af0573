package sfu

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/jukebox/internal/core"
)

func sample() media.Sample {
	return media.Sample{Data: []byte{0xf8, 0xff, 0xfe}, Duration: 20 * time.Millisecond}
}

func TestRelayManager_SubscribeNeedsTrack(t *testing.T) {
	m := NewRelayManager()

	assert.False(t, m.Subscribe("room", "sid-1"))
	assert.Equal(t, 0, m.Subscribers("room"))

	_, err := m.NewListenerTrack("sid-1")
	require.NoError(t, err)
	assert.True(t, m.Subscribe("room", "sid-1"))
	assert.Equal(t, 1, m.Subscribers("room"))
}

func TestRelayManager_MoveBetweenRooms(t *testing.T) {
	m := NewRelayManager()
	_, err := m.NewListenerTrack("sid-1")
	require.NoError(t, err)

	require.True(t, m.Subscribe("a", "sid-1"))
	m.Unsubscribe("a", "sid-1")
	require.True(t, m.Subscribe("b", "sid-1"))

	assert.Equal(t, 0, m.Subscribers("a"))
	assert.Equal(t, 1, m.Subscribers("b"))
	require.NoError(t, m.WriteSample("b", sample()))
	assert.Equal(t, 1, m.Subscribers("b"), "a healthy track survives writes")
}

func TestRelayManager_DroppedListenerIsCleanedOnWrite(t *testing.T) {
	m := NewRelayManager()
	for _, sid := range []string{"sid-1", "sid-2"} {
		_, err := m.NewListenerTrack(core.SessionID(sid))
		require.NoError(t, err)
		require.True(t, m.Subscribe("room", core.SessionID(sid)))
	}

	m.DropListener("sid-1", nil)
	assert.Equal(t, 2, m.Subscribers("room"), "cleanup is lazy")

	require.NoError(t, m.WriteSample("room", sample()))
	assert.Equal(t, 1, m.Subscribers("room"))
	assert.False(t, m.Subscribe("other", "sid-1"))
}

func TestRelayManager_ReplacedTrackIsDropped(t *testing.T) {
	m := NewRelayManager()
	_, err := m.NewListenerTrack("sid-1")
	require.NoError(t, err)
	require.True(t, m.Subscribe("room", "sid-1"))

	// a reconnect creates a fresh track; the relay still holds the old one
	_, err = m.NewListenerTrack("sid-1")
	require.NoError(t, err)
	require.NoError(t, m.WriteSample("room", sample()))
	assert.Equal(t, 0, m.Subscribers("room"))

	require.True(t, m.Subscribe("room", "sid-1"))
	assert.Equal(t, 1, m.Subscribers("room"))
}

func TestRelayManager_DropListenerIgnoresOldTrack(t *testing.T) {
	m := NewRelayManager()
	old, err := m.NewListenerTrack("sid-1")
	require.NoError(t, err)
	_, err = m.NewListenerTrack("sid-1")
	require.NoError(t, err)

	m.DropListener("sid-1", old)
	assert.True(t, m.Subscribe("room", "sid-1"), "the newer track is still registered")
}

func TestRelayManager_WriteWithoutRelay(t *testing.T) {
	m := NewRelayManager()
	assert.NoError(t, m.WriteSample("nobody", sample()))

	_, err := m.NewListenerTrack("sid-1")
	require.NoError(t, err)
	require.True(t, m.Subscribe("room", "sid-1"))
	m.StopRelay("room")
	assert.Equal(t, 0, m.Subscribers("room"))
}
