package orch

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

// libraryKey resolves the playlist key of name for sid. shared selects the
// room-wide list instead of the caller's own.
func (o *Orchestrator) libraryKey(sid core.SessionID, name string, shared bool) (domain.PlaylistKey, domain.UserID, error) {
	if o.Library == nil {
		return domain.PlaylistKey{}, "", ErrLibraryUnavailable
	}
	room, err := o.roomOf(sid)
	if err != nil {
		return domain.PlaylistKey{}, "", err
	}
	user := o.Registry.GetOrCreateUser(sid).ID
	owner := user
	if shared {
		owner = ""
	}
	key, err := domain.NewPlaylistKey(room, owner, name)
	return key, user, err
}

// currentQueue is the queue of the caller's room, played items included.
func (o *Orchestrator) currentQueue(ctx context.Context, sid core.SessionID) ([]domain.QueueItem, error) {
	snap, err := o.Queue(ctx, sid)
	if err != nil {
		return nil, err
	}
	if len(snap.Queue) == 0 {
		return nil, playback.ErrEmptyQueue
	}
	return snap.Queue, nil
}

// currentItem is what the caller's room is playing right now.
func (o *Orchestrator) currentItem(ctx context.Context, sid core.SessionID) (domain.QueueItem, error) {
	snap, err := o.Queue(ctx, sid)
	if err != nil {
		return domain.QueueItem{}, err
	}
	if snap.Current == nil {
		return domain.QueueItem{}, playback.ErrNothingPlaying
	}
	return domain.QueueItem{
		Title:         snap.Current.Title,
		Ref:           domain.TrackRef(snap.Current.CanonicalURL),
		DurationHint:  snap.Current.Duration,
		ThumbnailHint: snap.Current.Thumbnail,
	}, nil
}

func refsToItems(refs []string) ([]domain.QueueItem, error) {
	items := make([]domain.QueueItem, 0, len(refs))
	for _, raw := range refs {
		ref, err := domain.NewTrackRef(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.QueueItem{Ref: ref})
	}
	return items, nil
}

// SavePlaylist stores the room's queue as the caller's playlist name,
// replacing any list of that name. It returns the number of saved tracks.
func (o *Orchestrator) SavePlaylist(ctx context.Context, sid core.SessionID, name string) (int, error) {
	key, _, err := o.libraryKey(sid, name, false)
	if err != nil {
		return 0, err
	}
	items, err := o.currentQueue(ctx, sid)
	if err != nil {
		return 0, err
	}
	if err := o.Library.Save(ctx, key, items); err != nil {
		return 0, err
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("playlist", key.Name).Int("tracks", len(items)).Msg("playlist saved")
	return len(items), nil
}

// AppendPlaylist adds refs to the caller's playlist name, or the track that
// is playing when refs is empty. It returns the new length of the list.
func (o *Orchestrator) AppendPlaylist(ctx context.Context, sid core.SessionID, name string, refs []string) (int, error) {
	key, _, err := o.libraryKey(sid, name, false)
	if err != nil {
		return 0, err
	}
	var items []domain.QueueItem
	if len(refs) == 0 {
		cur, err := o.currentItem(ctx, sid)
		if err != nil {
			return 0, err
		}
		items = []domain.QueueItem{cur}
	} else if items, err = refsToItems(refs); err != nil {
		return 0, err
	}
	return o.Library.Append(ctx, key, items)
}

func (o *Orchestrator) LoadPlaylist(ctx context.Context, sid core.SessionID, name string) (int, error) {
	key, _, err := o.libraryKey(sid, name, false)
	if err != nil {
		return 0, err
	}
	return o.load(ctx, sid, key)
}

func (o *Orchestrator) ListPlaylists(ctx context.Context, sid core.SessionID) ([]domain.PlaylistInfo, error) {
	return o.list(ctx, sid, false)
}

func (o *Orchestrator) DeletePlaylist(ctx context.Context, sid core.SessionID, name string) error {
	key, _, err := o.libraryKey(sid, name, false)
	if err != nil {
		return err
	}
	return o.Library.Delete(ctx, key)
}

// SaveServerPlaylist stores the room's queue as a list every listener of the
// room can load.
func (o *Orchestrator) SaveServerPlaylist(ctx context.Context, sid core.SessionID, name string) (int, error) {
	key, user, err := o.libraryKey(sid, name, true)
	if err != nil {
		return 0, err
	}
	items, err := o.currentQueue(ctx, sid)
	if err != nil {
		return 0, err
	}
	if err := o.Library.SaveShared(ctx, key, user, items); err != nil {
		return 0, err
	}
	log.Info().Str("module", "orch").Str("room", string(key.Room)).Str("playlist", key.Name).Int("tracks", len(items)).Msg("server playlist saved")
	return len(items), nil
}

func (o *Orchestrator) LoadServerPlaylist(ctx context.Context, sid core.SessionID, name string) (int, error) {
	key, _, err := o.libraryKey(sid, name, true)
	if err != nil {
		return 0, err
	}
	return o.load(ctx, sid, key)
}

func (o *Orchestrator) ListServerPlaylists(ctx context.Context, sid core.SessionID) ([]domain.PlaylistInfo, error) {
	return o.list(ctx, sid, true)
}

func (o *Orchestrator) DeleteServerPlaylist(ctx context.Context, sid core.SessionID, name string) error {
	key, _, err := o.libraryKey(sid, name, true)
	if err != nil {
		return err
	}
	return o.Library.Delete(ctx, key)
}

func (o *Orchestrator) load(ctx context.Context, sid core.SessionID, key domain.PlaylistKey) (int, error) {
	items, err := o.Library.Load(ctx, key)
	if err != nil {
		return 0, err
	}
	err = o.withSession(ctx, sid, func(s *playback.Session) error { return s.Enqueue(ctx, items) })
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (o *Orchestrator) list(ctx context.Context, sid core.SessionID, shared bool) ([]domain.PlaylistInfo, error) {
	if o.Library == nil {
		return nil, ErrLibraryUnavailable
	}
	room, err := o.roomOf(sid)
	if err != nil {
		return nil, err
	}
	var owner domain.UserID
	if !shared {
		owner = o.Registry.GetOrCreateUser(sid).ID
	}
	return o.Library.List(ctx, room, owner)
}

// AddFavorite stores the track playing in the caller's room. Adding the same
// track twice returns domain.ErrDuplicate.
func (o *Orchestrator) AddFavorite(ctx context.Context, sid core.SessionID) (domain.QueueItem, error) {
	if o.Library == nil {
		return domain.QueueItem{}, ErrLibraryUnavailable
	}
	item, err := o.currentItem(ctx, sid)
	if err != nil {
		return domain.QueueItem{}, err
	}
	fav := domain.Favorite{Owner: o.Registry.GetOrCreateUser(sid).ID, Item: item}
	if err := o.Library.AddFavorite(ctx, fav); err != nil {
		return domain.QueueItem{}, err
	}
	return item, nil
}

// Favorites lists the caller's favorites, newest first.
func (o *Orchestrator) Favorites(ctx context.Context, sid core.SessionID) ([]domain.Favorite, error) {
	if o.Library == nil {
		return nil, ErrLibraryUnavailable
	}
	return o.Library.Favorites(ctx, o.Registry.GetOrCreateUser(sid).ID)
}

// PlayFavorites queues every favorite of the caller in their room.
func (o *Orchestrator) PlayFavorites(ctx context.Context, sid core.SessionID) (int, error) {
	favs, err := o.Favorites(ctx, sid)
	if err != nil {
		return 0, err
	}
	if len(favs) == 0 {
		return 0, domain.ErrNotFound
	}
	items := lo.Map(favs, func(f domain.Favorite, _ int) domain.QueueItem { return f.Item })
	err = o.withSession(ctx, sid, func(s *playback.Session) error { return s.Enqueue(ctx, items) })
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
