package app

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/domain"
	"github.com/dkeye/jukebox/internal/metrics"
)

// RoomConfigs is where a new session finds the settings its room had last time.
type RoomConfigs interface {
	RoomConfig(ctx context.Context, room domain.RoomID) (domain.Room, error)
}

// SessionManager owns the playback session of every active room.
// The bot is "connected" to a room exactly while its session exists.
type SessionManager struct {
	ctx     context.Context
	cfg     playback.Config
	deps    playback.Deps
	configs RoomConfigs

	mu           sync.Mutex
	sessions     map[domain.RoomID]*playback.Session
	onDisconnect func(domain.RoomID)
}

// NewSessionManager runs every session it creates under ctx. configs may be nil.
func NewSessionManager(ctx context.Context, cfg playback.Config, deps playback.Deps, configs RoomConfigs) *SessionManager {
	return &SessionManager{
		ctx:      ctx,
		cfg:      cfg,
		deps:     deps,
		configs:  configs,
		sessions: make(map[domain.RoomID]*playback.Session),
	}
}

// OnDisconnect registers fn to run after a session tore itself down on inactivity.
func (m *SessionManager) OnDisconnect(fn func(domain.RoomID)) {
	m.mu.Lock()
	m.onDisconnect = fn
	m.mu.Unlock()
}

// GetOrCreate returns the session of room, starting one if needed. created
// reports whether this call started it.
func (m *SessionManager) GetOrCreate(room domain.RoomID) (sess *playback.Session, created bool) {
	if s, ok := m.Get(room); ok {
		return s, false
	}

	// Read the store outside the lock.
	channel := m.restoreChannel(room)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[room]; ok {
		return s, false
	}
	deps := m.deps
	var self *playback.Session
	deps.OnDisconnect = func(id domain.RoomID) { m.disconnected(id, self) }
	self = playback.NewSession(room, channel, m.cfg, deps)
	m.sessions[room] = self
	metrics.Sessions.Inc()
	go self.Run(m.ctx)

	log.Info().Str("module", "app.sessions").Str("room", string(room)).Str("channel", string(channel)).Msg("session started")
	return self, true
}

func (m *SessionManager) restoreChannel(room domain.RoomID) domain.ChannelID {
	if m.configs == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
	defer cancel()
	cfg, err := m.configs.RoomConfig(ctx, room)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.sessions").Str("room", string(room)).Msg("load room config")
		return ""
	}
	return cfg.NotifyChannel
}

func (m *SessionManager) Get(room domain.RoomID) (*playback.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[room]
	return s, ok
}

// Rooms lists rooms with a live session, sorted.
func (m *SessionManager) Rooms() []domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RoomID, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Close stops the session of room and waits for its loop to exit.
func (m *SessionManager) Close(room domain.RoomID) bool {
	m.mu.Lock()
	s, ok := m.sessions[room]
	if ok {
		delete(m.sessions, room)
		metrics.Sessions.Dec()
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	log.Info().Str("module", "app.sessions").Str("room", string(room)).Msg("session closed")
	return true
}

func (m *SessionManager) CloseAll() {
	for _, room := range m.Rooms() {
		m.Close(room)
	}
}

// disconnected runs after the inactivity timer of sess fired. A session that
// has already been replaced is left alone.
func (m *SessionManager) disconnected(room domain.RoomID, sess *playback.Session) {
	m.mu.Lock()
	cur, ok := m.sessions[room]
	if !ok || cur != sess {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, room)
	metrics.Sessions.Dec()
	hook := m.onDisconnect
	m.mu.Unlock()

	sess.Close()
	log.Info().Str("module", "app.sessions").Str("room", string(room)).Msg("session disconnected on inactivity")
	if hook != nil {
		hook(room)
	}
}
