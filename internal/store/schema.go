package store

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			room TEXT NOT NULL,
			owner TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(name, room, owner)
		);

		CREATE TABLE IF NOT EXISTS playlist_songs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			ref TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			thumbnail TEXT,
			song_order INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_playlist_songs_order ON playlist_songs(playlist_id, song_order);

		CREATE TABLE IF NOT EXISTS server_playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			room TEXT NOT NULL,
			created_by TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(name, room)
		);

		CREATE TABLE IF NOT EXISTS server_playlist_songs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist_id INTEGER NOT NULL REFERENCES server_playlists(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			ref TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			thumbnail TEXT,
			song_order INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_server_playlist_songs_order ON server_playlist_songs(playlist_id, song_order);

		CREATE TABLE IF NOT EXISTS favorites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL,
			title TEXT NOT NULL,
			ref TEXT NOT NULL,
			thumbnail TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			UNIQUE(owner, ref)
		);

		CREATE TABLE IF NOT EXISTS room_config (
			room TEXT PRIMARY KEY,
			notify_channel TEXT
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion)
	return err
}
