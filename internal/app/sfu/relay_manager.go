package sfu

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

var opusCapability = webrtc.RTPCodecCapability{
	MimeType:  webrtc.MimeTypeOpus,
	ClockRate: 48000,
	Channels:  2,
}

// RelayManager keeps one Relay per room and one OutTrack per listener.
type RelayManager struct {
	mu        sync.RWMutex
	relays    map[domain.RoomID]*Relay
	listeners map[core.SessionID]*OutTrack
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays:    make(map[domain.RoomID]*Relay),
		listeners: make(map[core.SessionID]*OutTrack),
	}
}

// NewListenerTrack creates the outgoing audio track of sid, replacing any
// previous one. The caller attaches it to the listener's PeerConnection.
func (m *RelayManager) NewListenerTrack(sid core.SessionID) (*webrtc.TrackLocalStaticSample, error) {
	track, err := webrtc.NewTrackLocalStaticSample(opusCapability, "audio", "jukebox-"+string(sid))
	if err != nil {
		return nil, err
	}
	ot := NewOutTrack(track)

	m.mu.Lock()
	if old, ok := m.listeners[sid]; ok {
		old.MarkDelete()
	}
	m.listeners[sid] = ot
	m.mu.Unlock()

	log.Info().Str("module", "relay").Str("sid", string(sid)).Msg("listener track created")
	return track, nil
}

func (m *RelayManager) relay(room domain.RoomID, create bool) (*Relay, bool) {
	m.mu.RLock()
	r, ok := m.relays[room]
	m.mu.RUnlock()
	if ok || !create {
		return r, ok
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.relays[room]; ok {
		return r, true
	}
	logger := log.With().Str("module", "relay").Str("room", string(room)).Logger()
	r = NewRelay(room, logger)
	m.relays[room] = r
	logger.Info().Msg("relay created")
	return r, true
}

// Subscribe starts sending the audio of room to sid. It reports false when
// sid has no media track yet.
func (m *RelayManager) Subscribe(room domain.RoomID, sid core.SessionID) bool {
	m.mu.RLock()
	ot, ok := m.listeners[sid]
	m.mu.RUnlock()
	if !ok || ot.GetState() == TrackStateDelete {
		return false
	}
	r, _ := m.relay(room, true)
	r.AddOutTrack(sid, ot)
	return true
}

func (m *RelayManager) Unsubscribe(room domain.RoomID, sid core.SessionID) {
	if r, ok := m.relay(room, false); ok {
		r.RemoveOutTrack(sid)
	}
}

// DropListener forgets the track of sid; every relay drops it on its next
// write. With a non-nil track, only that track is dropped, so closing a
// replaced PeerConnection leaves its successor alone.
func (m *RelayManager) DropListener(sid core.SessionID, track *webrtc.TrackLocalStaticSample) {
	m.mu.Lock()
	ot, ok := m.listeners[sid]
	if ok && track != nil && ot.Track != track {
		ok = false
	}
	if ok {
		delete(m.listeners, sid)
	}
	m.mu.Unlock()
	if ok {
		ot.MarkDelete()
	}
}

// WriteSample delivers one decoded sample to the listeners of room. Samples
// for a room nobody listens to are dropped.
func (m *RelayManager) WriteSample(room domain.RoomID, s media.Sample) error {
	r, ok := m.relay(room, false)
	if !ok {
		return nil
	}
	r.forward(s)
	return nil
}

// StopRelay removes the relay of room. Listener tracks stay usable.
func (m *RelayManager) StopRelay(room domain.RoomID) {
	m.mu.Lock()
	_, ok := m.relays[room]
	delete(m.relays, room)
	m.mu.Unlock()
	if ok {
		log.Info().Str("module", "relay").Str("room", string(room)).Msg("relay stopped")
	}
}

// Subscribers returns how many listeners currently receive the audio of room.
func (m *RelayManager) Subscribers(room domain.RoomID) int {
	r, ok := m.relay(room, false)
	if !ok {
		return 0
	}
	return r.Len()
}
