package orch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/app"
	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/app/sfu"
	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

var (
	ErrNotInRoom          = errors.New("not in a room")
	ErrLibraryUnavailable = errors.New("library unavailable")
)

// Orchestrator is the command facade the transports talk to. It ties
// listeners, rooms, playback sessions and the audio relays together.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Sessions *app.SessionManager
	Policy   app.Policy
	Relays   *sfu.RelayManager
	Library  core.LibraryStore
}

// UseSessions attaches the session manager. It is separate from construction
// because the sessions notify listeners through the orchestrator itself.
func (o *Orchestrator) UseSessions(m *app.SessionManager) {
	o.Sessions = m
	m.OnDisconnect(o.botLeft)
}

// Publish sends f to every listener of room and applies the backpressure
// policy to the ones that could not keep up.
func (o *Orchestrator) Publish(roomID domain.RoomID, f core.Frame) core.PublishResult {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return core.PublishResult{}
	}

	res := room.Broadcast("", f)
	if o.Policy == nil {
		return res
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("room", string(roomID)).Str("sid", string(slow)).Msg("kicking slow listener")
			// Publish may run on a session goroutine, which the kick reports back to.
			go o.KickBySID(context.Background(), slow)
		case app.DropFrame, app.NoAction:
		}
	}
	return res
}

func (o *Orchestrator) roomOf(sid core.SessionID) (domain.RoomID, error) {
	room, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return "", ErrNotInRoom
	}
	return room, nil
}

func (o *Orchestrator) listeners(room domain.RoomID) int {
	if r, ok := o.Rooms.Get(room); ok {
		return r.MemberCount()
	}
	return 0
}

// session returns the live session of room, connecting the bot if needed.
func (o *Orchestrator) session(ctx context.Context, room domain.RoomID) *playback.Session {
	s, created := o.Sessions.GetOrCreate(room)
	if created {
		if err := s.MembershipChanged(ctx, o.listeners(room)+1); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Msg("initial membership")
		}
	}
	return s
}

// withSession runs fn against the session of the caller's room. A session
// that shut down between lookup and use is replaced once.
func (o *Orchestrator) withSession(ctx context.Context, sid core.SessionID, fn func(*playback.Session) error) error {
	room, err := o.roomOf(sid)
	if err != nil {
		return err
	}
	err = fn(o.session(ctx, room))
	if errors.Is(err, playback.ErrSessionClosed) {
		err = fn(o.session(ctx, room))
	}
	return err
}

// withExisting is withSession for commands that make no sense without a
// connected bot.
func (o *Orchestrator) withExisting(sid core.SessionID, fn func(*playback.Session) error) error {
	room, err := o.roomOf(sid)
	if err != nil {
		return err
	}
	s, ok := o.Sessions.Get(room)
	if !ok {
		return playback.ErrNothingPlaying
	}
	err = fn(s)
	if errors.Is(err, playback.ErrSessionClosed) {
		return playback.ErrNothingPlaying
	}
	return err
}

func (o *Orchestrator) membershipChanged(ctx context.Context, room domain.RoomID) {
	s, ok := o.Sessions.Get(room)
	if !ok {
		return
	}
	if err := s.MembershipChanged(ctx, o.listeners(room)+1); err != nil && !errors.Is(err, playback.ErrSessionClosed) {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Msg("membership changed")
	}
}

func (o *Orchestrator) botLeft(room domain.RoomID) {
	log.Info().Str("module", "orch").Str("room", string(room)).Msg("bot left room")
	data, err := json.Marshal(struct {
		Type string        `json:"type"`
		Room domain.RoomID `json:"room"`
	}{"bot_left", room})
	if err != nil {
		return
	}
	o.Publish(room, data)
}
