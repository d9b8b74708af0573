package app

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/domain"
)

// slowConfigs blocks lookups of the "slow" room until release is closed.
type slowConfigs struct {
	entered chan struct{}
	release chan struct{}
}

func (c *slowConfigs) RoomConfig(_ context.Context, room domain.RoomID) (domain.Room, error) {
	if room == "slow" {
		c.entered <- struct{}{}
		<-c.release
	}
	return domain.Room{ID: room, NotifyChannel: domain.ChannelID("chan-" + room)}, nil
}

func newTestSessions(t *testing.T, configs RoomConfigs) *SessionManager {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m := NewSessionManager(ctx, playback.Config{DisableAutoplay: true}, playback.Deps{}, configs)
	t.Cleanup(func() {
		m.CloseAll()
		cancel()
	})
	return m
}

func TestSessionManager_GetOrCreateRestoresChannel(t *testing.T) {
	m := newTestSessions(t, &slowConfigs{})

	s, created := m.GetOrCreate("lobby")
	require.True(t, created)
	again, created := m.GetOrCreate("lobby")
	assert.False(t, created)
	assert.Same(t, s, again)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelID("chan-lobby"), snap.NotifyChannel)
}

func TestSessionManager_SlowConfigDoesNotBlockOtherRooms(t *testing.T) {
	cfgs := &slowConfigs{entered: make(chan struct{}), release: make(chan struct{})}
	m := newTestSessions(t, cfgs)

	var (
		wg   sync.WaitGroup
		slow *playback.Session
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow, _ = m.GetOrCreate("slow")
	}()
	<-cfgs.entered

	fast, created := m.GetOrCreate("fast")
	require.True(t, created)
	require.NotNil(t, fast)
	assert.Equal(t, []domain.RoomID{"fast"}, m.Rooms())
	_, ok := m.Get("slow")
	assert.False(t, ok)

	close(cfgs.release)
	wg.Wait()
	got, ok := m.Get("slow")
	require.True(t, ok)
	assert.Same(t, slow, got)
	assert.Equal(t, []domain.RoomID{"fast", "slow"}, m.Rooms())
}

func TestSessionManager_Close(t *testing.T) {
	m := newTestSessions(t, nil)
	m.GetOrCreate("lobby")

	assert.True(t, m.Close("lobby"))
	assert.False(t, m.Close("lobby"))
	assert.Empty(t, m.Rooms())
}
