package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

// Join moves sid into roomID, leaving its previous room first. The bot
// connects to the room if it is not there yet.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, roomID domain.RoomID) ([]core.MemberDTO, error) {
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if from, _, ok := o.Registry.RoomOf(sid); ok {
		if from == roomID {
			room := o.Rooms.GetOrCreate(roomID)
			return room.MembersSnapshot(), nil
		}
		o.cleanupMembership(ctx, sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(from)).Msg("left previous room")
	}

	room := o.Rooms.GetOrCreate(roomID)
	room.AddMember(sid, session)
	o.Registry.UpdateRoom(sid, roomID)
	if o.Relays != nil {
		o.Relays.Subscribe(roomID, sid)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("added to room")

	if _, created := o.Sessions.GetOrCreate(roomID); created {
		log.Info().Str("module", "orch").Str("room", string(roomID)).Msg("bot connected")
	}
	o.membershipChanged(ctx, roomID)
	return room.MembersSnapshot(), nil
}

// Leave takes sid out of its room without closing its connection.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID) (domain.RoomID, error) {
	room, err := o.roomOf(sid)
	if err != nil {
		return "", err
	}
	o.cleanupMembership(ctx, sid)
	return room, nil
}

// KickBySID removes sid from its room.
func (o *Orchestrator) KickBySID(ctx context.Context, sid core.SessionID) {
	o.cleanupMembership(ctx, sid)
}

// Disconnect runs when the signal connection sess of sid went away. It
// reports the room sid was in, if any. A connection that has already been
// replaced by a newer one is ignored.
func (o *Orchestrator) Disconnect(ctx context.Context, sid core.SessionID, sess core.MemberSession) (domain.RoomID, bool) {
	cur, ok := o.Registry.GetSession(sid)
	if !ok || cur != sess {
		return "", false
	}
	room, _, inRoom := o.Registry.RoomOf(sid)
	o.cleanupMembership(ctx, sid)
	o.cleanupMedia(sid)
	o.Registry.Unbind(sid, sess)
	return room, inRoom
}

func (o *Orchestrator) cleanupMembership(ctx context.Context, sid core.SessionID) {
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	if o.Relays != nil {
		o.Relays.Unsubscribe(roomID, sid)
	}
	left := 0
	if room, ok := o.Rooms.Get(roomID); ok {
		left = room.RemoveMember(sid)
	}
	o.Registry.RemoveRoom(sid)
	if left == 0 {
		o.Rooms.StopRoom(roomID)
		if o.Relays != nil {
			o.Relays.StopRelay(roomID)
		}
	}
	o.membershipChanged(ctx, roomID)
}

// EvictBot disconnects the bot from roomID: playback stops and the queue is
// dropped. Listeners stay in the room.
func (o *Orchestrator) EvictBot(sid core.SessionID) (domain.RoomID, error) {
	room, err := o.roomOf(sid)
	if err != nil {
		return "", err
	}
	if !o.Sessions.Close(room) {
		return room, nil
	}
	log.Info().Str("module", "orch").Str("room", string(room)).Str("sid", string(sid)).Msg("bot evicted")
	o.botLeft(room)
	return room, nil
}

// EvictRoom removes every listener from roomID and disconnects the bot.
func (o *Orchestrator) EvictRoom(ctx context.Context, roomID domain.RoomID) {
	for _, snap := range o.Registry.MembersOfRoom(roomID) {
		o.KickBySID(ctx, snap.SID)
	}
	o.Sessions.Close(roomID)
	o.Rooms.StopRoom(roomID)
	if o.Relays != nil {
		o.Relays.StopRelay(roomID)
	}
}
