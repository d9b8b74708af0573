package playback

// State is the lifecycle state of a room's session.
type State int32

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateSeeking
	StateAwaitingNext
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateAwaitingNext:
		return "awaiting_next"
	default:
		return "unknown"
	}
}

// Loaded reports whether a stream is loaded into the decoder in this state.
func (s State) Loaded() bool {
	return s == StatePlaying || s == StatePaused || s == StateSeeking
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
