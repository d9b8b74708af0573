package sfu

import (
	"maps"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

// Relay fans the decoded audio of one room out to the tracks of its listeners.
type Relay struct {
	Room domain.RoomID

	mu        sync.RWMutex
	outTracks map[core.SessionID]*OutTrack

	logger zerolog.Logger
}

func NewRelay(room domain.RoomID, logger zerolog.Logger) *Relay {
	return &Relay{
		Room:      room,
		outTracks: make(map[core.SessionID]*OutTrack),
		logger:    logger,
	}
}

// forward writes one sample to every live out track. Returns how many got it.
func (r *Relay) forward(s media.Sample) int {
	r.mu.RLock()
	snapshot := make(map[core.SessionID]*OutTrack, len(r.outTracks))
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	sent := 0
	dirty := make([]core.SessionID, 0, len(snapshot))
	for dstSID, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dstSID)
		case TrackStateOk:
			if err := ot.Track.WriteSample(s); err != nil {
				r.logger.Error().
					Err(err).
					Str("dst_sid", string(dstSID)).
					Msg("relay write sample error, marking outtrack as delete")
				ot.MarkDelete()
				dirty = append(dirty, dstSID)
				continue
			}
			sent++
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
	return sent
}

func (r *Relay) cleanupDeleted(dirty []core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range dirty {
		if ot, ok := r.outTracks[sid]; ok && ot.GetState() == TrackStateDelete {
			delete(r.outTracks, sid)
		}
	}
}

func (r *Relay) AddOutTrack(dst core.SessionID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[dst] = ot
}

func (r *Relay) RemoveOutTrack(dst core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outTracks, dst)
}

func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outTracks)
}
