package domain

import "strings"

const MaxRoomIDLen = 64

type (
	RoomID    string
	ChannelID string
)

// Room is the persisted per-room configuration.
type Room struct {
	ID            RoomID
	NotifyChannel ChannelID
}

// NewRoomID trims and validates a room identifier coming from a client.
func NewRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyName
	}
	if len(raw) > MaxRoomIDLen {
		return "", ErrNameTooLong
	}
	return RoomID(raw), nil
}
