package orch

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

// Play queues raw, a link or search text. With now set it replaces what is
// playing.
func (o *Orchestrator) Play(ctx context.Context, sid core.SessionID, raw string, now bool) (playback.PlayResult, error) {
	ref, err := domain.NewTrackRef(raw)
	if err != nil {
		return playback.PlayResult{}, err
	}
	var res playback.PlayResult
	err = o.withSession(ctx, sid, func(s *playback.Session) error {
		res, err = s.Play(ctx, domain.QueueItem{Ref: ref}, now)
		return err
	})
	return res, err
}

func (o *Orchestrator) Pause(ctx context.Context, sid core.SessionID) error {
	return o.withExisting(sid, func(s *playback.Session) error { return s.Pause(ctx) })
}

func (o *Orchestrator) Resume(ctx context.Context, sid core.SessionID) error {
	return o.withSession(ctx, sid, func(s *playback.Session) error { return s.Resume(ctx) })
}

func (o *Orchestrator) Stop(ctx context.Context, sid core.SessionID) error {
	return o.withExisting(sid, func(s *playback.Session) error { return s.Stop(ctx) })
}

func (o *Orchestrator) Next(ctx context.Context, sid core.SessionID) error {
	return o.withExisting(sid, func(s *playback.Session) error { return s.Next(ctx) })
}

func (o *Orchestrator) Previous(ctx context.Context, sid core.SessionID) error {
	return o.withExisting(sid, func(s *playback.Session) error { return s.Previous(ctx) })
}

func (o *Orchestrator) Seek(ctx context.Context, sid core.SessionID, offset time.Duration) error {
	return o.withExisting(sid, func(s *playback.Session) error { return s.Seek(ctx, offset) })
}

func (o *Orchestrator) Shuffle(ctx context.Context, sid core.SessionID) (int, error) {
	var n int
	err := o.withExisting(sid, func(s *playback.Session) (err error) {
		n, err = s.Shuffle(ctx)
		return err
	})
	if errors.Is(err, playback.ErrNothingPlaying) {
		err = playback.ErrEmptyQueue
	}
	return n, err
}

func (o *Orchestrator) SetAutoplay(ctx context.Context, sid core.SessionID, on bool) error {
	return o.withSession(ctx, sid, func(s *playback.Session) error { return s.SetAutoplay(ctx, on) })
}

// SetChannel makes ch the room's notification channel. It is persisted when
// a library is configured, so the next session of the room starts with it.
func (o *Orchestrator) SetChannel(ctx context.Context, sid core.SessionID, ch domain.ChannelID) error {
	room, err := o.roomOf(sid)
	if err != nil {
		return err
	}
	if o.Library != nil {
		if err := o.Library.SetNotifyChannel(ctx, room, ch); err != nil {
			return err
		}
	}
	if s, ok := o.Sessions.Get(room); ok {
		if err := s.SetNotifyChannel(ctx, ch); err != nil && !errors.Is(err, playback.ErrSessionClosed) {
			return err
		}
	}
	log.Info().Str("module", "orch").Str("room", string(room)).Str("channel", string(ch)).Msg("notify channel set")
	return nil
}

// Queue returns the playback state of the caller's room. A room without a
// connected bot reports an idle, empty snapshot.
func (o *Orchestrator) Queue(ctx context.Context, sid core.SessionID) (playback.Snapshot, error) {
	room, err := o.roomOf(sid)
	if err != nil {
		return playback.Snapshot{}, err
	}
	snap, _, err := o.Snapshot(ctx, room)
	return snap, err
}

// Snapshot reports the state of room and whether the bot is connected to it.
func (o *Orchestrator) Snapshot(ctx context.Context, room domain.RoomID) (playback.Snapshot, bool, error) {
	s, ok := o.Sessions.Get(room)
	if !ok {
		return emptySnapshot(room), false, nil
	}
	snap, err := s.Snapshot(ctx)
	if errors.Is(err, playback.ErrSessionClosed) {
		return emptySnapshot(room), false, nil
	}
	return snap, err == nil, err
}

func emptySnapshot(room domain.RoomID) playback.Snapshot {
	return playback.Snapshot{
		Room:    room,
		State:   playback.StateIdle,
		Cursor:  -1,
		Queue:   []domain.QueueItem{},
		History: []domain.HistoryEntry{},
		Today:   []domain.HistoryEntry{},
	}
}

type RoomStatus struct {
	ID        domain.RoomID  `json:"id"`
	Listeners int            `json:"listeners"`
	Connected bool           `json:"connected"`
	State     playback.State `json:"state"`
}

// RoomStatuses lists every room that has listeners or a connected bot.
func (o *Orchestrator) RoomStatuses() []RoomStatus {
	listeners := lo.SliceToMap(o.Rooms.List(), func(info core.RoomInfo) (domain.RoomID, int) {
		return info.ID, info.MemberCount
	})
	ids := lo.Uniq(append(lo.Keys(listeners), o.Sessions.Rooms()...))
	slices.Sort(ids)
	return lo.Map(ids, func(id domain.RoomID, _ int) RoomStatus {
		st := RoomStatus{ID: id, Listeners: listeners[id], State: playback.StateIdle}
		if s, ok := o.Sessions.Get(id); ok {
			st.Connected = true
			st.State = s.State()
		}
		return st
	})
}
