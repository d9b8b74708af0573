package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.opts.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, sess core.MemberSession, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.disconnect(sid, sess)
	}()

	if ctl.opts.PingPeriod > 0 {
		pongWait := ctl.opts.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		cmdCtx, cmdCancel := context.WithTimeout(ctx, commandTimeout)
		ctl.handleSignal(cmdCtx, sid, c, data)
		cmdCancel()
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "", errBadPayload)
		return
	}

	h, ok := ctl.routes[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env.Type, errUnknownCommand)
		return
	}
	if h.limited && !ctl.allow(sid) {
		ctl.sendError(c, env.Type, errRateLimited)
		return
	}
	h.fn(ctx, sid, c, data)
}

type handlerFunc func(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte)

type handler struct {
	fn      handlerFunc
	limited bool
}

func (ctl *SignalWSController) handlers() map[string]handler {
	return map[string]handler{
		"ping":      {fn: ctl.handlePing},
		"whoami":    {fn: ctl.handleWhoAmI},
		"rename":    {fn: ctl.handleRename, limited: true},
		"join":      {fn: ctl.handleJoin, limited: true},
		"leave":     {fn: ctl.handleLeave},
		"offer":     {fn: ctl.handleOffer},
		"candidate": {fn: ctl.handleCandidate},

		"play":        {fn: ctl.handlePlay, limited: true},
		"pause":       {fn: ctl.simple("pause", ctl.Orch.Pause), limited: true},
		"resume":      {fn: ctl.simple("resume", ctl.Orch.Resume), limited: true},
		"stop":        {fn: ctl.simple("stop", ctl.Orch.Stop), limited: true},
		"next":        {fn: ctl.simple("next", ctl.Orch.Next), limited: true},
		"previous":    {fn: ctl.simple("previous", ctl.Orch.Previous), limited: true},
		"seek":        {fn: ctl.handleSeek, limited: true},
		"shuffle":     {fn: ctl.handleShuffle, limited: true},
		"autoplay":    {fn: ctl.handleAutoplay, limited: true},
		"queue":       {fn: ctl.handleQueue},
		"history":     {fn: ctl.handleHistory},
		"set_channel": {fn: ctl.handleSetChannel, limited: true},
		"leave_room":  {fn: ctl.handleLeaveRoom, limited: true},

		"playlist_save":          {fn: ctl.named("playlist_save", ctl.playlistSave), limited: true},
		"playlist_append":        {fn: ctl.named("playlist_append", ctl.playlistAppend), limited: true},
		"playlist_load":          {fn: ctl.named("playlist_load", ctl.playlistLoad), limited: true},
		"playlist_list":          {fn: ctl.handlePlaylistList},
		"playlist_delete":        {fn: ctl.named("playlist_delete", ctl.playlistDelete), limited: true},
		"server_playlist_save":   {fn: ctl.named("server_playlist_save", ctl.serverPlaylistSave), limited: true},
		"server_playlist_load":   {fn: ctl.named("server_playlist_load", ctl.serverPlaylistLoad), limited: true},
		"server_playlist_list":   {fn: ctl.handleServerPlaylistList},
		"server_playlist_delete": {fn: ctl.named("server_playlist_delete", ctl.serverPlaylistDelete), limited: true},
		"favorite_add":           {fn: ctl.handleFavoriteAdd, limited: true},
		"favorite_list":          {fn: ctl.handleFavoriteList},
		"favorite_play":          {fn: ctl.handleFavoritePlay, limited: true},
	}
}

func (ctl *SignalWSController) allow(sid core.SessionID) bool {
	if ctl.Limiter == nil {
		return true
	}
	room, _, _ := ctl.Orch.Registry.RoomOf(sid)
	user := ctl.Orch.Registry.GetOrCreateUser(sid)
	return ctl.Limiter.Allow(room, user.ID)
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
