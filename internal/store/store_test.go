package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/jukebox/internal/domain"
)

// setupTestStore opens a private in-memory database with the schema applied.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, initSchema(db))

	s := New(db)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func songs(refs ...string) []domain.QueueItem {
	out := make([]domain.QueueItem, 0, len(refs))
	for _, r := range refs {
		out = append(out, domain.QueueItem{
			Title:        "title " + r,
			Ref:          domain.TrackRef("https://video.example/" + r),
			DurationHint: 3 * time.Minute,
		})
	}
	return out
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "mix"}

	require.NoError(t, s.Save(ctx, key, songs("a", "b", "c")))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, songs("a", "b", "c"), got)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "mix"}

	require.NoError(t, s.Save(ctx, key, songs("a", "b", "c")))
	require.NoError(t, s.Save(ctx, key, songs("z")))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, songs("z"), got)

	infos, err := s.List(ctx, "r1", "u1")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Tracks)
}

func TestStore_PlaylistsAreScopedByOwnerAndRoom(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "mix"}, songs("a")))
	require.NoError(t, s.Save(ctx, domain.PlaylistKey{Room: "r1", Owner: "u2", Name: "mix"}, songs("b", "c")))
	require.NoError(t, s.Save(ctx, domain.PlaylistKey{Room: "r2", Owner: "u1", Name: "mix"}, songs("d")))

	got, err := s.Load(ctx, domain.PlaylistKey{Room: "r1", Owner: "u2", Name: "mix"})
	require.NoError(t, err)
	assert.Equal(t, songs("b", "c"), got)

	_, err = s.Load(ctx, domain.PlaylistKey{Room: "r2", Owner: "u2", Name: "mix"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Append(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "mix"}

	_, err := s.Append(ctx, key, songs("x"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Save(ctx, key, songs("a", "b")))
	n, err := s.Append(ctx, key, songs("c", "d"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, songs("a", "b", "c", "d"), got)
}

func TestStore_ListAndDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "b-side"}, songs("a", "b")))
	require.NoError(t, s.Save(ctx, domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "a-side"}, nil))

	infos, err := s.List(ctx, "r1", "u1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a-side", infos[0].Name)
	assert.Equal(t, 0, infos[0].Tracks)
	assert.Equal(t, "b-side", infos[1].Name)
	assert.Equal(t, 2, infos[1].Tracks)

	require.NoError(t, s.Delete(ctx, domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "b-side"}))
	err = s.Delete(ctx, domain.PlaylistKey{Room: "r1", Owner: "u1", Name: "b-side"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	infos, err = s.List(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestStore_SharedPlaylists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	key := domain.PlaylistKey{Room: "r1", Name: "party"}

	require.NoError(t, s.SaveShared(ctx, key, "admin", songs("a", "b")))

	infos, err := s.List(ctx, "r1", "")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, domain.UserID("admin"), infos[0].CreatedBy)
	assert.Equal(t, 2, infos[0].Tracks)

	// a personal playlist with the same name is a different list
	_, err = s.Load(ctx, domain.PlaylistKey{Room: "r1", Owner: "admin", Name: "party"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.SaveShared(ctx, key, "other", songs("c")))
	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, songs("c"), got)

	infos, err = s.List(ctx, "r1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("other"), infos[0].CreatedBy)

	require.NoError(t, s.Delete(ctx, key))
	infos, err = s.List(ctx, "r1", "")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestStore_Favorites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, it := range songs("a", "b") {
		require.NoError(t, s.AddFavorite(ctx, domain.Favorite{Owner: "u1", Item: it}))
	}
	err := s.AddFavorite(ctx, domain.Favorite{Owner: "u1", Item: songs("a")[0]})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	// another user may save the same track
	require.NoError(t, s.AddFavorite(ctx, domain.Favorite{Owner: "u2", Item: songs("a")[0]}))

	favs, err := s.Favorites(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, songs("b")[0], favs[0].Item, "newest first")
	assert.Equal(t, songs("a")[0], favs[1].Item)
	assert.Equal(t, domain.UserID("u1"), favs[0].Owner)
}

func TestStore_RoomConfig(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cfg, err := s.RoomConfig(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.Room{ID: "r1"}, cfg)

	require.NoError(t, s.SetNotifyChannel(ctx, "r1", "music"))
	require.NoError(t, s.SetNotifyChannel(ctx, "r1", "announcements"))

	cfg, err = s.RoomConfig(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelID("announcements"), cfg.NotifyChannel)
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jukebox.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetNotifyChannel(context.Background(), "r1", "c"))
	assert.FileExists(t, path)
}
