package playback

import (
	"fmt"
	"testing"
	"time"

	"github.com/dkeye/jukebox/internal/domain"
)

func entry(title string, at time.Time) domain.HistoryEntry {
	return domain.HistoryEntry{Title: title, CanonicalURL: "https://video.example/" + title, PlayedAt: at}
}

func TestHistory_NewestFirstAndBounded(t *testing.T) {
	h := NewHistory(3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		h.Push(entry(fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Minute)))
	}

	got := h.Recent()
	if len(got) != 3 {
		t.Fatalf("len(Recent()) = %d, want 3", len(got))
	}
	for i, want := range []string{"t4", "t3", "t2"} {
		if got[i].Title != want {
			t.Errorf("Recent()[%d] = %q, want %q", i, got[i].Title, want)
		}
	}
	last, ok := h.Last()
	if !ok || last.Title != "t4" {
		t.Errorf("Last() = %q, %v, want t4", last.Title, ok)
	}
}

func TestHistory_DefaultSize(t *testing.T) {
	h := NewHistory(0)
	now := time.Now()
	for i := range 20 {
		h.Push(entry(fmt.Sprint(i), now))
	}
	if h.Len() != DefaultHistorySize {
		t.Errorf("Len() = %d, want %d", h.Len(), DefaultHistorySize)
	}
}

func TestHistory_TodayRollsOver(t *testing.T) {
	h := NewHistory(15)
	day1 := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Hour)

	h.Push(entry("a", day1))
	h.Push(entry("b", day1.Add(time.Minute)))
	if n := len(h.Today(day1)); n != 2 {
		t.Fatalf("Today(day1) has %d entries, want 2", n)
	}
	if got := h.Today(day2); got != nil {
		t.Errorf("Today(day2) before any play = %v, want nil", got)
	}

	h.Push(entry("c", day2))
	today := h.Today(day2)
	if len(today) != 1 || today[0].Title != "c" {
		t.Errorf("Today(day2) = %v, want [c]", today)
	}
	if h.Len() != 3 {
		t.Errorf("recent history must survive the day change, Len() = %d", h.Len())
	}
}

func TestHistory_RecentIsCopy(t *testing.T) {
	h := NewHistory(5)
	h.Push(entry("a", time.Now()))

	got := h.Recent()
	got[0].Title = "changed"
	if last, _ := h.Last(); last.Title != "a" {
		t.Error("Recent() must return a copy")
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	if _, ok := h.Last(); ok {
		t.Error("Last() on empty history should report false")
	}
	if len(h.Recent()) != 0 {
		t.Error("Recent() on empty history should be empty")
	}
}
