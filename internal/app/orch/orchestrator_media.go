package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
)

// PrepareMedia attaches a fresh outgoing audio track for sid to mc. It must
// run before the listener's offer is applied so the answer carries the track.
func (o *Orchestrator) PrepareMedia(sid core.SessionID, mc core.MediaConnection) error {
	track, err := o.Relays.NewListenerTrack(sid)
	if err != nil {
		return err
	}
	if _, err := mc.AddLocalTrack(track); err != nil {
		o.Relays.DropListener(sid, track)
		return err
	}
	mc.OnClosed(func() {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("media closed")
		o.Relays.DropListener(sid, track)
	})
	return nil
}

// OnMediaReady is called once the offer/answer exchange of sid is done. The
// listener starts receiving the audio of its room, if it is in one.
func (o *Orchestrator) OnMediaReady(sid core.SessionID) {
	room, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	if !o.Relays.Subscribe(room, sid) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Msg("media ready without a track")
	}
}

func (o *Orchestrator) cleanupMedia(sid core.SessionID) {
	if o.Relays != nil {
		o.Relays.DropListener(sid, nil)
	}
	if sess, ok := o.Registry.GetSession(sid); ok {
		if mc := sess.Media(); mc != nil {
			mc.Close()
		}
	}
}
