package core

import (
	"context"
	"time"

	"github.com/dkeye/jukebox/internal/domain"
)

// MessageRef identifies a posted UI message so it can be deleted later.
type MessageRef struct {
	Room    domain.RoomID    `json:"room"`
	Channel domain.ChannelID `json:"channel,omitempty"`
	ID      string           `json:"id"`
}

func (m MessageRef) IsZero() bool { return m.ID == "" }

type NowPlaying struct {
	Title     string        `json:"title"`
	URL       string        `json:"url"`
	Duration  time.Duration `json:"duration"`
	Elapsed   time.Duration `json:"elapsed"`
	Thumbnail string        `json:"thumbnail,omitempty"`
}

// Notifier is the chat UI. Failures are never fatal to playback.
type Notifier interface {
	PostNowPlaying(ctx context.Context, room domain.RoomID, channel domain.ChannelID, np NowPlaying) (MessageRef, error)
	Delete(ctx context.Context, ref MessageRef) error
}
