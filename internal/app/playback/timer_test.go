package playback

import (
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"
)

func TestDisconnectTimer_Fires(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var tm DisconnectTimer
		var fired atomic.Uint64

		tm.Schedule(time.Minute, func(gen uint64) { fired.Store(gen) })
		if !tm.Pending() {
			t.Fatal("Pending() = false after Schedule")
		}

		time.Sleep(time.Minute + time.Millisecond)
		synctest.Wait()

		gen := fired.Load()
		if gen == 0 {
			t.Fatal("timer did not fire")
		}
		if !tm.Current(gen) {
			t.Error("Current(gen) = false for the generation that fired")
		}
		if tm.Pending() {
			t.Error("Pending() = true after firing")
		}
	})
}

func TestDisconnectTimer_CancelPreventsFire(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var tm DisconnectTimer
		var fired atomic.Int32

		tm.Schedule(time.Minute, func(uint64) { fired.Add(1) })
		time.Sleep(30 * time.Second)
		if !tm.Cancel() {
			t.Error("Cancel() = false, want true with a pending timer")
		}
		if tm.Cancel() {
			t.Error("second Cancel() = true, want false")
		}

		time.Sleep(time.Hour)
		synctest.Wait()
		if n := fired.Load(); n != 0 {
			t.Errorf("fired %d times after Cancel", n)
		}
	})
}

func TestDisconnectTimer_RescheduleReplaces(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var tm DisconnectTimer
		var fired atomic.Int32
		var lastGen atomic.Uint64

		tm.Schedule(time.Minute, func(gen uint64) { fired.Add(1); lastGen.Store(gen) })
		time.Sleep(50 * time.Second)
		tm.Schedule(time.Minute, func(gen uint64) { fired.Add(1); lastGen.Store(gen) })

		// the first deadline passes without firing
		time.Sleep(20 * time.Second)
		synctest.Wait()
		if n := fired.Load(); n != 0 {
			t.Fatalf("fired %d times at the replaced deadline", n)
		}

		time.Sleep(41 * time.Second)
		synctest.Wait()
		if n := fired.Load(); n != 1 {
			t.Fatalf("fired %d times, want 1", n)
		}
		if !tm.Current(lastGen.Load()) {
			t.Error("fired generation is not current")
		}
	})
}

func TestDisconnectTimer_CancelAfterFireInvalidatesGeneration(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var tm DisconnectTimer
		var gen atomic.Uint64

		tm.Schedule(time.Second, func(g uint64) { gen.Store(g) })
		time.Sleep(2 * time.Second)
		synctest.Wait()

		// A cancel that lands after the fire but before the action is
		// consumed must still invalidate it.
		tm.Cancel()
		if tm.Current(gen.Load()) {
			t.Error("Current() = true after Cancel")
		}
	})
}
