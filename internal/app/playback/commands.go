package playback

import (
	"context"
	"time"

	"github.com/dkeye/jukebox/internal/domain"
)

type PlayResult struct {
	// Started is true when the item began playing right away.
	Started  bool
	// Position is the number of items ahead of it when it was only queued.
	Position int
	Stream   *domain.ResolvedStream
}

// Play queues item. When now is set, or nothing is loaded, the item is
// resolved first and played immediately; a resolve failure is returned to the
// caller and leaves the session untouched.
func (s *Session) Play(ctx context.Context, item domain.QueueItem, now bool) (PlayResult, error) {
	var res PlayResult
	err := s.do(ctx, "play", true, func() error {
		if !now && s.state.Loaded() {
			s.queue.Append(item)
			res.Position = s.queue.Remaining()
			return nil
		}

		stream, err := s.resolve(item.Ref)
		if err != nil {
			return err
		}
		item = withHints(item, stream)

		finished := s.stopDecoder()
		if finished != nil {
			s.recordPlayed(*finished)
		}
		s.queue.InsertNext(item)
		s.queue.Advance()
		if err := s.load(stream, 0); err != nil {
			s.setState(StateAwaitingNext)
			s.advance(nil)
			return err
		}
		s.announce()
		cur := *s.current
		res.Started = true
		res.Stream = &cur
		return nil
	})
	return res, err
}

func withHints(item domain.QueueItem, stream domain.ResolvedStream) domain.QueueItem {
	if item.Title == "" {
		item.Title = stream.Title
	}
	if item.DurationHint == 0 {
		item.DurationHint = stream.Duration
	}
	if item.ThumbnailHint == "" {
		item.ThumbnailHint = stream.Thumbnail
	}
	return item
}

// Enqueue appends items and starts playback if the session is idle.
func (s *Session) Enqueue(ctx context.Context, items []domain.QueueItem) error {
	if len(items) == 0 {
		return ErrEmptyQueue
	}
	return s.do(ctx, "enqueue", true, func() error {
		s.queue.Append(items...)
		if s.state == StateIdle {
			s.setState(StateAwaitingNext)
			s.advance(nil)
		}
		return nil
	})
}

func (s *Session) Pause(ctx context.Context) error {
	return s.do(ctx, "pause", true, func() error {
		switch s.state {
		case StatePaused:
			return ErrAlreadyPaused
		case StatePlaying:
		default:
			return ErrNothingPlaying
		}
		if err := s.handle.Pause(); err != nil {
			return err
		}
		s.elapsedBase = s.elapsed()
		s.runningSince = time.Time{}
		s.setState(StatePaused)
		return nil
	})
}

// Resume continues a paused decoder, or restarts the item under the cursor
// when playback was stopped.
func (s *Session) Resume(ctx context.Context) error {
	return s.do(ctx, "resume", true, func() error {
		switch s.state {
		case StatePlaying:
			return ErrAlreadyPlaying
		case StatePaused:
			if err := s.handle.Resume(); err != nil {
				return err
			}
			s.runningSince = s.now()
			s.setState(StatePlaying)
			return nil
		}
		item, ok := s.queue.Current()
		if !ok {
			return ErrNothingPlaying
		}
		stream, err := s.resolve(item.Ref)
		if err != nil {
			return err
		}
		if err := s.load(stream, 0); err != nil {
			return err
		}
		s.announce()
		return nil
	})
}

// Stop halts playback and keeps the queue. Stopping an idle session returns
// ErrNothingPlaying and changes nothing.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, "stop", true, func() error {
		if !s.state.Loaded() {
			return ErrNothingPlaying
		}
		s.stopDecoder()
		s.retractNowPlaying()
		s.setState(StateIdle)
		return nil
	})
}

// Next behaves like an immediate completion of the current item.
func (s *Session) Next(ctx context.Context) error {
	return s.do(ctx, "next", true, func() error {
		if s.state.Loaded() {
			finished := s.stopDecoder()
			s.setState(StateAwaitingNext)
			s.advance(finished)
			return nil
		}
		if s.queue.Remaining() == 0 {
			return ErrNothingPlaying
		}
		s.setState(StateAwaitingNext)
		s.advance(nil)
		return nil
	})
}

// Previous steps the cursor back two places so the advance lands one item
// back. On the first item this restarts it.
func (s *Session) Previous(ctx context.Context) error {
	return s.do(ctx, "previous", true, func() error {
		if s.queue.Len() == 0 {
			return ErrNothingPlaying
		}
		s.queue.Rewind(2)
		var finished *domain.ResolvedStream
		if s.state.Loaded() {
			finished = s.stopDecoder()
		}
		s.setState(StateAwaitingNext)
		s.advance(finished)
		return nil
	})
}

// Seek reloads the current item at offset. Offsets outside [0, duration) are
// rejected before anything changes.
func (s *Session) Seek(ctx context.Context, offset time.Duration) error {
	return s.do(ctx, "seek", true, func() error {
		return s.seek(offset)
	})
}

// Shuffle reorders the unplayed part of the queue and returns its length.
func (s *Session) Shuffle(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, "shuffle", true, func() error {
		n = s.queue.ShuffleTail(s.deps.Rand)
		if n == 0 {
			return ErrEmptyQueue
		}
		return nil
	})
	return n, err
}

func (s *Session) SetNotifyChannel(ctx context.Context, ch domain.ChannelID) error {
	return s.do(ctx, "set_channel", false, func() error {
		s.channel = ch
		return nil
	})
}

func (s *Session) SetAutoplay(ctx context.Context, on bool) error {
	return s.do(ctx, "autoplay", true, func() error {
		s.autoplay = on
		return nil
	})
}

// MembershipChanged records the number of occupants of the voice room,
// counting the bot itself.
func (s *Session) MembershipChanged(ctx context.Context, occupants int) error {
	return s.do(ctx, "membership", true, func() error {
		s.occupants = occupants
		return nil
	})
}

type Snapshot struct {
	Room              domain.RoomID          `json:"room"`
	State             State                  `json:"state"`
	Cursor            int                    `json:"cursor"`
	Queue             []domain.QueueItem     `json:"queue"`
	Current           *domain.ResolvedStream `json:"current,omitempty"`
	Elapsed           time.Duration          `json:"elapsed"`
	History           []domain.HistoryEntry  `json:"history"`
	Today             []domain.HistoryEntry  `json:"today"`
	Autoplay          bool                   `json:"autoplay"`
	NotifyChannel     domain.ChannelID       `json:"notify_channel,omitempty"`
	Occupants         int                    `json:"occupants"`
	DisconnectPending bool                   `json:"disconnect_pending"`
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, "snapshot", false, func() error {
		snap = Snapshot{
			Room:              s.room,
			State:             s.state,
			Cursor:            s.queue.Cursor(),
			Queue:             s.queue.Items(),
			History:           s.history.Recent(),
			Today:             s.history.Today(s.now()),
			Autoplay:          s.autoplay,
			NotifyChannel:     s.channel,
			Occupants:         s.occupants,
			DisconnectPending: s.timer.Pending(),
		}
		if s.current != nil {
			cur := *s.current
			snap.Current = &cur
			snap.Elapsed = s.elapsed()
		}
		return nil
	})
	return snap, err
}
