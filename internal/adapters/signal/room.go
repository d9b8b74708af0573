package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "join", errBadPayload)
		return
	}
	roomID, err := domain.NewRoomID(p.Room)
	if err != nil {
		ctl.sendError(conn, "join", err)
		return
	}

	if p.Name != "" {
		if err := ctl.Orch.Registry.UpdateUsername(sid, p.Name); err != nil {
			ctl.sendError(conn, "join", err)
			return
		}
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename on join")
	}

	from, _, wasIn := ctl.Orch.Registry.RoomOf(sid)
	members, err := ctl.Orch.Join(ctx, sid, roomID)
	if err != nil {
		ctl.sendError(conn, "join", err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", string(roomID)).Msg("join")

	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	if wasIn && from != roomID {
		ctl.BroadcastRoom(from, memberEvent{Type: "member_left", User: *user})
	}

	snap, _, err := ctl.Orch.Snapshot(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room_id", string(roomID)).Msg("room snapshot")
	}
	clientResp := struct {
		Type     string           `json:"type"`
		Room     domain.RoomID    `json:"room"`
		Members  []core.MemberDTO `json:"members"`
		Count    int              `json:"count"`
		Playback any              `json:"playback"`
	}{
		Type:     "room_state",
		Room:     roomID,
		Members:  members,
		Count:    len(members),
		Playback: toQueueView(snap),
	}
	ctl.sendJSON(conn, clientResp)

	if !wasIn || from != roomID {
		ctl.BroadcastFrom(sid, memberEvent{Type: "member_joined", User: *user})
	}
}

// handleLeave takes the listener out of its room; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	ctx context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	_ []byte,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	roomID, err := ctl.Orch.Leave(ctx, sid)
	if err != nil {
		ctl.sendError(conn, "leave", err)
		return
	}
	ctl.sendOK(conn, "leave", nil)

	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	ctl.BroadcastRoom(roomID, memberEvent{Type: "member_left", User: *user})
}

// handleLeaveRoom disconnects the bot from the caller's room.
func (ctl *SignalWSController) handleLeaveRoom(
	_ context.Context,
	sid core.SessionID,
	conn *WsSignalConn,
	_ []byte,
) {
	_, err := ctl.Orch.EvictBot(sid)
	ctl.reply(conn, "leave_room", nil, err)
}
