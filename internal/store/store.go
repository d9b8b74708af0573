// Package store persists playlists, favorites and per-room settings in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dkeye/jukebox/internal/domain"
)

// table names for one playlist flavour
type tables struct {
	lists string
	songs string
	owner string
}

var (
	userTables   = tables{lists: "playlists", songs: "playlist_songs", owner: "owner"}
	serverTables = tables{lists: "server_playlists", songs: "server_playlist_songs", owner: "created_by"}
)

func tablesFor(key domain.PlaylistKey) tables {
	if key.Shared() {
		return serverTables
	}
	return userTables
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file (and its directory) if needed and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("module", "store").Str("path", path).Msg("database ready")
	return New(db), nil
}

// New wraps an already initialised database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) playlistID(ctx context.Context, q queryer, key domain.PlaylistKey) (int64, error) {
	t := tablesFor(key)
	var (
		query string
		args  []any
	)
	if key.Shared() {
		query = fmt.Sprintf(`SELECT id FROM %s WHERE name = ? AND room = ?`, t.lists)
		args = []any{key.Name, string(key.Room)}
	} else {
		query = fmt.Sprintf(`SELECT id FROM %s WHERE name = ? AND room = ? AND owner = ?`, t.lists)
		args = []any{key.Name, string(key.Room), string(key.Owner)}
	}
	var id int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return id, err
}

// Load returns the songs of a playlist in order.
func (s *Store) Load(ctx context.Context, key domain.PlaylistKey) ([]domain.QueueItem, error) {
	id, err := s.playlistID(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	t := tablesFor(key)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT title, ref, duration_ms, thumbnail FROM %s
		WHERE playlist_id = ? ORDER BY song_order
	`, t.songs), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		var (
			it    domain.QueueItem
			ref   string
			durMS int64
			thumb sql.NullString
		)
		if err := rows.Scan(&it.Title, &ref, &durMS, &thumb); err != nil {
			return nil, err
		}
		it.Ref = domain.TrackRef(ref)
		it.DurationHint = time.Duration(durMS) * time.Millisecond
		it.ThumbnailHint = thumb.String
		items = append(items, it)
	}
	return items, rows.Err()
}

// Save creates the playlist or overwrites its songs.
func (s *Store) Save(ctx context.Context, key domain.PlaylistKey, items []domain.QueueItem) error {
	return s.save(ctx, key, key.Owner, items)
}

// SaveShared saves a room-wide playlist and records who last wrote it.
func (s *Store) SaveShared(ctx context.Context, key domain.PlaylistKey, by domain.UserID, items []domain.QueueItem) error {
	key.Owner = ""
	return s.save(ctx, key, by, items)
}

func (s *Store) save(ctx context.Context, key domain.PlaylistKey, by domain.UserID, items []domain.QueueItem) error {
	t := tablesFor(key)
	now := s.now().UnixMilli()
	return WithTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err := s.playlistID(ctx, tx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			res, err := tx.ExecContext(ctx, fmt.Sprintf(`
				INSERT INTO %s (name, room, %s, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			`, t.lists, t.owner), key.Name, string(key.Room), string(by), now, now)
			if err != nil {
				return err
			}
			if id, err = res.LastInsertId(); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE playlist_id = ?`, t.songs), id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = ? WHERE id = ?`, t.lists, t.owner), string(by), now, id); err != nil {
				return err
			}
		}
		return insertSongs(ctx, tx, t, id, 0, items)
	})
}

// Append adds items after the last song and returns the new length.
func (s *Store) Append(ctx context.Context, key domain.PlaylistKey, items []domain.QueueItem) (int, error) {
	t := tablesFor(key)
	var total int
	err := WithTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err := s.playlistID(ctx, tx, key)
		if err != nil {
			return err
		}
		var maxOrder sql.NullInt64
		if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(song_order) FROM %s WHERE playlist_id = ?`, t.songs), id).Scan(&maxOrder); err != nil {
			return err
		}
		start := 0
		if maxOrder.Valid {
			start = int(maxOrder.Int64) + 1
		}
		if err := insertSongs(ctx, tx, t, id, start, items); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET updated_at = ? WHERE id = ?`, t.lists), s.now().UnixMilli(), id); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE playlist_id = ?`, t.songs), id).Scan(&total)
	})
	return total, err
}

func insertSongs(ctx context.Context, tx *sql.Tx, t tables, playlistID int64, start int, items []domain.QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (playlist_id, title, ref, duration_ms, thumbnail, song_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.songs))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range items {
		if _, err := stmt.ExecContext(ctx,
			playlistID,
			it.DisplayTitle(),
			string(it.Ref),
			it.DurationHint.Milliseconds(),
			nullString(it.ThumbnailHint),
			start+i,
		); err != nil {
			return err
		}
	}
	return nil
}

// List returns a user's playlists in room, or the room's shared playlists
// when owner is empty.
func (s *Store) List(ctx context.Context, room domain.RoomID, owner domain.UserID) ([]domain.PlaylistInfo, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if owner == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT p.name, COUNT(s.id), COALESCE(p.created_by, ''), p.updated_at
			FROM server_playlists p
			LEFT JOIN server_playlist_songs s ON s.playlist_id = p.id
			WHERE p.room = ?
			GROUP BY p.id
			ORDER BY p.name
		`, string(room))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT p.name, COUNT(s.id), p.owner, p.updated_at
			FROM playlists p
			LEFT JOIN playlist_songs s ON s.playlist_id = p.id
			WHERE p.room = ? AND p.owner = ?
			GROUP BY p.id
			ORDER BY p.name
		`, string(room), string(owner))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlaylistInfo
	for rows.Next() {
		var (
			info    domain.PlaylistInfo
			by      string
			updated int64
		)
		if err := rows.Scan(&info.Name, &info.Tracks, &by, &updated); err != nil {
			return nil, err
		}
		info.CreatedBy = domain.UserID(by)
		info.UpdatedAt = time.UnixMilli(updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, key domain.PlaylistKey) error {
	t := tablesFor(key)
	return WithTx(ctx, s.db, func(tx *sql.Tx) error {
		id, err := s.playlistID(ctx, tx, key)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE playlist_id = ?`, t.songs), id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.lists), id)
		return err
	})
}

// AddFavorite returns domain.ErrDuplicate when the owner already saved the same reference.
func (s *Store) AddFavorite(ctx context.Context, fav domain.Favorite) error {
	at := fav.AddedAt
	if at.IsZero() {
		at = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO favorites (owner, title, ref, thumbnail, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		string(fav.Owner),
		fav.Item.DisplayTitle(),
		string(fav.Item.Ref),
		nullString(fav.Item.ThumbnailHint),
		fav.Item.DurationHint.Milliseconds(),
		at.UnixMilli(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// Favorites returns the owner's favorites, newest first.
func (s *Store) Favorites(ctx context.Context, owner domain.UserID) ([]domain.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, ref, thumbnail, duration_ms, created_at FROM favorites
		WHERE owner = ? ORDER BY created_at DESC, id DESC
	`, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Favorite
	for rows.Next() {
		f := domain.Favorite{Owner: owner}
		var (
			ref     string
			thumb   sql.NullString
			durMS   int64
			created int64
		)
		if err := rows.Scan(&f.Item.Title, &ref, &thumb, &durMS, &created); err != nil {
			return nil, err
		}
		f.Item.Ref = domain.TrackRef(ref)
		f.Item.ThumbnailHint = thumb.String
		f.Item.DurationHint = time.Duration(durMS) * time.Millisecond
		f.AddedAt = time.UnixMilli(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

// RoomConfig returns the stored settings of room. A room that was never
// configured yields its zero config.
func (s *Store) RoomConfig(ctx context.Context, room domain.RoomID) (domain.Room, error) {
	cfg := domain.Room{ID: room}
	var ch sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT notify_channel FROM room_config WHERE room = ?`, string(room)).Scan(&ch)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	cfg.NotifyChannel = domain.ChannelID(ch.String)
	return cfg, nil
}

func (s *Store) SetNotifyChannel(ctx context.Context, room domain.RoomID, channel domain.ChannelID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_config (room, notify_channel) VALUES (?, ?)
		ON CONFLICT(room) DO UPDATE SET notify_channel = excluded.notify_channel
	`, string(room), nullString(string(channel)))
	return err
}
