package app

import "github.com/dkeye/jukebox/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a listener whose outbound queue is full
// when a room notification is fanned out.
type Policy interface {
	OnBackPressure(room core.RoomService, member core.SessionID) BackpressureAction
}

// SimplePolicy kicks slow listeners.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.SessionID) BackpressureAction {
	return KickMember
}
