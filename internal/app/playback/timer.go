package playback

import (
	"sync"
	"time"
)

const DefaultDisconnectTimeout = 300 * time.Second

// DisconnectTimer is the single cancellable delayed action of a room.
//
// Schedule and Cancel both bump a generation counter under the lock; a firing
// timer only runs its action if it still owns the current generation, so a
// cancel that wins the race turns the fire into a no-op and vice versa.
type DisconnectTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Schedule replaces any pending action with fn after d.
// fn receives the generation it was scheduled under.
func (t *DisconnectTimer) Schedule(d time.Duration, fn func(gen uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.gen != gen || t.timer == nil {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.mu.Unlock()
		fn(gen)
	})
}

// Cancel clears the pending action and reports whether one was pending.
func (t *DisconnectTimer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.timer == nil {
		return false
	}
	t.timer.Stop()
	t.timer = nil
	return true
}

func (t *DisconnectTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Current reports whether gen is still the latest Schedule with no Cancel or
// reschedule after it.
func (t *DisconnectTimer) Current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen == gen
}
