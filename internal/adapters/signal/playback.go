package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/lo"

	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

type itemView struct {
	Title     string  `json:"title"`
	Ref       string  `json:"ref"`
	Duration  float64 `json:"duration,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

type currentView struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Duration  float64 `json:"duration"`
	Elapsed   float64 `json:"elapsed"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

type queueView struct {
	Type     string           `json:"type"`
	Room     domain.RoomID    `json:"room"`
	State    playback.State   `json:"state"`
	Cursor   int              `json:"cursor"`
	Items    []itemView       `json:"items"`
	Current  *currentView     `json:"current,omitempty"`
	Autoplay bool             `json:"autoplay"`
	Channel  domain.ChannelID `json:"channel,omitempty"`
}

type historyView struct {
	Type   string                `json:"type"`
	Room   domain.RoomID         `json:"room"`
	Recent []domain.HistoryEntry `json:"recent"`
	Today  []domain.HistoryEntry `json:"today"`
}

func toItemView(q domain.QueueItem, _ int) itemView {
	return itemView{
		Title:     q.DisplayTitle(),
		Ref:       string(q.Ref),
		Duration:  q.DurationHint.Seconds(),
		Thumbnail: q.ThumbnailHint,
	}
}

func toQueueView(s playback.Snapshot) queueView {
	v := queueView{
		Type:     "queue",
		Room:     s.Room,
		State:    s.State,
		Cursor:   s.Cursor,
		Items:    lo.Map(s.Queue, toItemView),
		Autoplay: s.Autoplay,
		Channel:  s.NotifyChannel,
	}
	if s.Current != nil {
		v.Current = &currentView{
			Title:     s.Current.Title,
			URL:       s.Current.CanonicalURL,
			Duration:  s.Current.Duration.Seconds(),
			Elapsed:   s.Elapsed.Seconds(),
			Thumbnail: s.Current.Thumbnail,
		}
	}
	return v
}

// simple adapts an orchestrator command without arguments or result.
func (ctl *SignalWSController) simple(name string, fn func(context.Context, core.SessionID) error) handlerFunc {
	return func(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
		ctl.reply(conn, name, nil, fn(ctx, sid))
	}
}

func (ctl *SignalWSController) handlePlay(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Query string `json:"query"`
		Now   bool   `json:"now"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "play", errBadPayload)
		return
	}
	res, err := ctl.Orch.Play(ctx, sid, p.Query, p.Now)
	if err != nil {
		ctl.sendError(conn, "play", err)
		return
	}
	out := struct {
		Started  bool   `json:"started"`
		Position int    `json:"position,omitempty"`
		Title    string `json:"title,omitempty"`
	}{Started: res.Started, Position: res.Position}
	if res.Stream != nil {
		out.Title = res.Stream.Title
	}
	ctl.sendOK(conn, "play", out)
}

func (ctl *SignalWSController) handleSeek(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Seconds *float64 `json:"seconds"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Seconds == nil {
		ctl.sendError(conn, "seek", errBadPayload)
		return
	}
	offset := time.Duration(*p.Seconds * float64(time.Second))
	ctl.reply(conn, "seek", nil, ctl.Orch.Seek(ctx, sid, offset))
}

func (ctl *SignalWSController) handleShuffle(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	n, err := ctl.Orch.Shuffle(ctx, sid)
	ctl.reply(conn, "shuffle", map[string]int{"shuffled": n}, err)
}

func (ctl *SignalWSController) handleAutoplay(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		On bool `json:"on"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "autoplay", errBadPayload)
		return
	}
	ctl.reply(conn, "autoplay", map[string]bool{"on": p.On}, ctl.Orch.SetAutoplay(ctx, sid, p.On))
}

func (ctl *SignalWSController) handleSetChannel(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "set_channel", errBadPayload)
		return
	}
	ctl.reply(conn, "set_channel", nil, ctl.Orch.SetChannel(ctx, sid, domain.ChannelID(p.Channel)))
}

func (ctl *SignalWSController) handleQueue(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	snap, err := ctl.Orch.Queue(ctx, sid)
	if err != nil {
		ctl.sendError(conn, "queue", err)
		return
	}
	ctl.sendJSON(conn, toQueueView(snap))
}

func (ctl *SignalWSController) handleHistory(ctx context.Context, sid core.SessionID, conn *WsSignalConn, _ []byte) {
	snap, err := ctl.Orch.Queue(ctx, sid)
	if err != nil {
		ctl.sendError(conn, "history", err)
		return
	}
	ctl.sendJSON(conn, historyView{Type: "history", Room: snap.Room, Recent: snap.History, Today: snap.Today})
}
