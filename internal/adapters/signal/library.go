package signal

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

type playlistPayload struct {
	Name string   `json:"name"`
	Refs []string `json:"refs,omitempty"`
}

type countReply struct {
	Name   string `json:"name,omitempty"`
	Tracks int    `json:"tracks"`
}

// named decodes a playlist payload and runs fn with its name.
func (ctl *SignalWSController) named(command string, fn func(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error)) handlerFunc {
	return func(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
		var p playlistPayload
		if err := json.Unmarshal(data, &p); err != nil {
			ctl.sendError(conn, command, errBadPayload)
			return
		}
		out, err := fn(ctx, sid, p)
		ctl.reply(conn, command, out, err)
	}
}

func counted(name string, n int, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return countReply{Name: name, Tracks: n}, nil
}

func (ctl *SignalWSController) playlistSave(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error) {
	n, err := ctl.Orch.SavePlaylist(ctx, sid, p.Name)
	return counted(p.Name, n, err)
}

func (ctl *SignalWSController) playlistAppend(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error) {
	n, err := ctl.Orch.AppendPlaylist(ctx, sid, p.Name, p.Refs)
	return counted(p.Name, n, err)
}

func (ctl *SignalWSController) playlistLoad(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error) {
	n, err := ctl.Orch.LoadPlaylist(ctx, sid, p.Name)
	return counted(p.Name, n, err)
}

func (ctl *SignalWSController) playlistDelete(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error) {
	return nil, ctl.Orch.DeletePlaylist(ctx, sid, p.Name)
}

func (ctl *SignalWSController) handlePlaylistList(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	lists, err := ctl.Orch.ListPlaylists(ctx, sid)
	ctl.reply(conn, "playlist_list", nonNil(lists), err)
}

func (ctl *SignalWSController) serverPlaylistSave(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error) {
	n, err := ctl.Orch.SaveServerPlaylist(ctx, sid, p.Name)
	return counted(p.Name, n, err)
}

func (ctl *SignalWSController) serverPlaylistLoad(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error) {
	n, err := ctl.Orch.LoadServerPlaylist(ctx, sid, p.Name)
	return counted(p.Name, n, err)
}

func (ctl *SignalWSController) serverPlaylistDelete(ctx context.Context, sid core.SessionID, p playlistPayload) (any, error) {
	return nil, ctl.Orch.DeleteServerPlaylist(ctx, sid, p.Name)
}

func (ctl *SignalWSController) handleServerPlaylistList(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	lists, err := ctl.Orch.ListServerPlaylists(ctx, sid)
	ctl.reply(conn, "server_playlist_list", nonNil(lists), err)
}

func (ctl *SignalWSController) handleFavoriteAdd(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	item, err := ctl.Orch.AddFavorite(ctx, sid)
	ctl.reply(conn, "favorite_add", toItemView(item, 0), err)
}

func (ctl *SignalWSController) handleFavoriteList(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	favs, err := ctl.Orch.Favorites(ctx, sid)
	items := lo.Map(favs, func(f domain.Favorite, i int) itemView { return toItemView(f.Item, i) })
	ctl.reply(conn, "favorite_list", nonNil(items), err)
}

func (ctl *SignalWSController) handleFavoritePlay(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	n, err := ctl.Orch.PlayFavorites(ctx, sid)
	out, err := counted("", n, err)
	ctl.reply(conn, "favorite_play", out, err)
}

// nonNil keeps empty lists as [] on the wire.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
