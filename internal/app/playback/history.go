package playback

import (
	"time"

	"github.com/dkeye/jukebox/internal/domain"
)

const DefaultHistorySize = 15

// History keeps the most recent plays newest first, bounded to size, plus a
// log of everything played since local midnight.
type History struct {
	size    int
	recent  []domain.HistoryEntry
	today   []domain.HistoryEntry
	dayYear int
	dayNum  int
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, recent: make([]domain.HistoryEntry, 0, size)}
}

func (h *History) Push(e domain.HistoryEntry) {
	h.recent = append(h.recent, domain.HistoryEntry{})
	copy(h.recent[1:], h.recent)
	h.recent[0] = e
	if len(h.recent) > h.size {
		h.recent = h.recent[:h.size]
	}

	h.rollDay(e.PlayedAt)
	h.today = append(h.today, e)
}

// rollDay drops the daily log when t falls on a later day than the log.
func (h *History) rollDay(t time.Time) {
	y, d := t.Year(), t.YearDay()
	if y != h.dayYear || d != h.dayNum {
		h.today = h.today[:0]
		h.dayYear, h.dayNum = y, d
	}
}

// Recent returns a copy, newest first.
func (h *History) Recent() []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(h.recent))
	copy(out, h.recent)
	return out
}

// Today returns the plays logged on now's calendar day, oldest first.
func (h *History) Today(now time.Time) []domain.HistoryEntry {
	if now.Year() != h.dayYear || now.YearDay() != h.dayNum {
		return nil
	}
	out := make([]domain.HistoryEntry, len(h.today))
	copy(out, h.today)
	return out
}

// Last returns the newest entry.
func (h *History) Last() (domain.HistoryEntry, bool) {
	if len(h.recent) == 0 {
		return domain.HistoryEntry{}, false
	}
	return h.recent[0], true
}

func (h *History) Len() int { return len(h.recent) }
