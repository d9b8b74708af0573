package domain

import (
	"strings"
	"time"
)

const MaxPlaylistNameLen = 255

// PlaylistKey addresses a saved list. An empty Owner means a room-wide list.
type PlaylistKey struct {
	Room  RoomID
	Owner UserID
	Name  string
}

func NewPlaylistKey(room RoomID, owner UserID, name string) (PlaylistKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PlaylistKey{}, ErrEmptyName
	}
	if len(name) > MaxPlaylistNameLen {
		return PlaylistKey{}, ErrNameTooLong
	}
	return PlaylistKey{Room: room, Owner: owner, Name: name}, nil
}

func (k PlaylistKey) Shared() bool { return k.Owner == "" }

type PlaylistInfo struct {
	Name      string    `json:"name"`
	Tracks    int       `json:"tracks"`
	CreatedBy UserID    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Favorite struct {
	Owner   UserID    `json:"-"`
	Item    QueueItem `json:"item"`
	AddedAt time.Time `json:"added_at"`
}
