package playback

import "errors"

var (
	// ErrNothingPlaying is an informational outcome, not a failure.
	ErrNothingPlaying = errors.New("nothing playing")
	ErrAlreadyPaused  = errors.New("already paused")
	ErrAlreadyPlaying = errors.New("already playing")
	ErrInvalidSeek    = errors.New("seek target out of range")
	ErrResolve        = errors.New("resolve failed")
	ErrDecoderStart   = errors.New("decoder start failed")
	ErrSessionClosed  = errors.New("session closed")
	ErrEmptyQueue     = errors.New("queue is empty")

	errStaleCompletion = errors.New("stale decoder completion")
)
