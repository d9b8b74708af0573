package playback

import (
	"math/rand/v2"
	"slices"

	"github.com/dkeye/jukebox/internal/domain"
)

// Queue is an ordered list of items plus a cursor pointing at the item being
// played (or most recently dequeued). The cursor is -1 before the first play
// and len(items) once the queue has been exhausted.
//
// Not safe for concurrent use; a Queue belongs to one session goroutine.
type Queue struct {
	items  []domain.QueueItem
	cursor int
}

func NewQueue() *Queue {
	return &Queue{cursor: -1}
}

func (q *Queue) Len() int    { return len(q.items) }
func (q *Queue) Cursor() int { return q.cursor }

// Exhausted reports whether the cursor ran past the last item.
func (q *Queue) Exhausted() bool {
	return q.cursor >= len(q.items)
}

// Current returns the item under the cursor.
func (q *Queue) Current() (domain.QueueItem, bool) {
	if q.cursor < 0 || q.cursor >= len(q.items) {
		return domain.QueueItem{}, false
	}
	return q.items[q.cursor], true
}

// Remaining is the number of items after the cursor.
func (q *Queue) Remaining() int {
	n := len(q.items) - q.cursor - 1
	if n < 0 {
		return 0
	}
	return n
}

// Advance moves the cursor forward by one and returns the item it lands on.
// Once past the end the cursor parks at len(items).
func (q *Queue) Advance() (domain.QueueItem, bool) {
	if q.cursor < len(q.items) {
		q.cursor++
	}
	return q.Current()
}

// Rewind moves the cursor back by n, clamped at -1.
func (q *Queue) Rewind(n int) {
	q.cursor -= n
	if q.cursor < -1 {
		q.cursor = -1
	}
}

// Append adds items to the end. A parked cursor is pulled back onto the last
// played item so the first appended item becomes the next one.
func (q *Queue) Append(items ...domain.QueueItem) {
	q.unpark()
	q.items = append(q.items, items...)
}

// InsertNext places item right after the cursor.
func (q *Queue) InsertNext(item domain.QueueItem) {
	q.unpark()
	q.items = slices.Insert(q.items, q.cursor+1, item)
}

func (q *Queue) unpark() {
	if q.cursor >= len(q.items) {
		q.cursor = len(q.items) - 1
	}
}

// ShuffleTail reorders only the unplayed items after the cursor and returns
// how many items were eligible.
func (q *Queue) ShuffleTail(rng *rand.Rand) int {
	start := q.cursor + 1
	if start < 0 {
		start = 0
	}
	if start >= len(q.items) {
		return 0
	}
	tail := q.items[start:]
	rng.Shuffle(len(tail), func(i, j int) {
		tail[i], tail[j] = tail[j], tail[i]
	})
	return len(tail)
}

// Upcoming returns a copy of the unplayed tail.
func (q *Queue) Upcoming() []domain.QueueItem {
	start := q.cursor + 1
	if start < 0 {
		start = 0
	}
	if start >= len(q.items) {
		return nil
	}
	return slices.Clone(q.items[start:])
}

func (q *Queue) Items() []domain.QueueItem {
	return slices.Clone(q.items)
}

func (q *Queue) Clear() {
	q.items = nil
	q.cursor = -1
}
