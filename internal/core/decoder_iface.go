package core

import (
	"context"
	"time"

	"github.com/dkeye/jukebox/internal/domain"
)

// Decoder starts audio decode processes for a room.
//
// For every Start that returns a nil error, onComplete is called exactly once,
// asynchronously, with nil on natural end of stream or the failure otherwise.
// Stopping a handle also triggers onComplete.
type Decoder interface {
	Start(ctx context.Context, room domain.RoomID, streamURL string, offset time.Duration, onComplete func(error)) (DecoderHandle, error)
}

type DecoderHandle interface {
	Pause() error
	Resume() error
	// Stop is synchronous: no audio is produced once it returns.
	Stop() error
}
