// Package notify delivers now-playing messages to the listeners of a room
// over their signal connections.
package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

// Publisher fans a frame out to everyone in a room.
type Publisher interface {
	Publish(room domain.RoomID, f core.Frame) core.PublishResult
}

type nowPlayingMsg struct {
	Type    string           `json:"type"`
	ID      string           `json:"id"`
	Room    domain.RoomID    `json:"room"`
	Channel domain.ChannelID `json:"channel,omitempty"`
	Track   core.NowPlaying  `json:"track"`
}

type deletedMsg struct {
	Type string        `json:"type"`
	ID   string        `json:"id"`
	Room domain.RoomID `json:"room"`
}

// Sink implements core.Notifier.
type Sink struct {
	pub   Publisher
	newID func() string
}

func NewSink(pub Publisher) *Sink {
	return &Sink{pub: pub, newID: uuid.NewString}
}

func (s *Sink) PostNowPlaying(_ context.Context, room domain.RoomID, channel domain.ChannelID, np core.NowPlaying) (core.MessageRef, error) {
	ref := core.MessageRef{Room: room, Channel: channel, ID: s.newID()}
	data, err := json.Marshal(nowPlayingMsg{
		Type:    "now_playing",
		ID:      ref.ID,
		Room:    room,
		Channel: channel,
		Track:   np,
	})
	if err != nil {
		return core.MessageRef{}, err
	}
	res := s.pub.Publish(room, data)
	log.Debug().
		Str("module", "notify.sink").
		Str("room", string(room)).
		Str("id", ref.ID).
		Int("sent_to", res.SendTo).
		Msg("now playing posted")
	return ref, nil
}

func (s *Sink) Delete(_ context.Context, ref core.MessageRef) error {
	if ref.IsZero() {
		return nil
	}
	data, err := json.Marshal(deletedMsg{Type: "message_deleted", ID: ref.ID, Room: ref.Room})
	if err != nil {
		return err
	}
	s.pub.Publish(ref.Room, data)
	return nil
}
