package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

var errUnavailable = errors.New("video unavailable")

type fakeResolver struct {
	mu         sync.Mutex
	fail       map[domain.TrackRef]error
	durations  map[domain.TrackRef]time.Duration
	candidates []domain.Candidate
	manyErr    error
	drift      bool
	calls      []domain.TrackRef
	queries    []string
	n          int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		fail:      make(map[domain.TrackRef]error),
		durations: make(map[domain.TrackRef]time.Duration),
	}
}

const videoBase = "https://video.example/"

// Resolve treats videoBase+name and name as the same track. With drift set,
// search text lands on a different video every time.
func (r *fakeResolver) Resolve(_ context.Context, ref domain.TrackRef) (domain.ResolvedStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ref)
	name := domain.TrackRef(strings.TrimPrefix(string(ref), videoBase))
	if err := r.fail[name]; err != nil {
		return domain.ResolvedStream{}, err
	}
	r.n++
	dur, ok := r.durations[name]
	if !ok {
		dur = 3 * time.Minute
	}
	canonical := videoBase + string(name)
	if r.drift && !ref.IsLink() {
		canonical = fmt.Sprintf("%s%s-%d", videoBase, name, r.n)
	}
	return domain.ResolvedStream{
		StreamURL:    fmt.Sprintf("stream://%s?n=%d", name, r.n),
		CanonicalURL: canonical,
		Title:        string(name),
		Duration:     dur,
		ResolvedAt:   time.Now(),
	}, nil
}

func (r *fakeResolver) ResolveMany(_ context.Context, query string, limit int) ([]domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	if r.manyErr != nil {
		return nil, r.manyErr
	}
	out := r.candidates
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]domain.Candidate(nil), out...), nil
}

func (r *fakeResolver) resolveCalls(ref domain.TrackRef) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == ref {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	dec        *fakeDecoder
	url        string
	offset     time.Duration
	onComplete func(error)
	once       sync.Once
	stopped    bool
	paused     bool
}

func (h *fakeHandle) Pause() error {
	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()
	h.paused = true
	return nil
}

func (h *fakeHandle) Resume() error {
	h.dec.mu.Lock()
	defer h.dec.mu.Unlock()
	h.paused = false
	return nil
}

func (h *fakeHandle) Stop() error {
	h.end(nil)
	return nil
}

// end marks the handle dead and delivers its completion from another goroutine.
func (h *fakeHandle) end(err error) {
	h.dec.mu.Lock()
	if !h.stopped {
		h.stopped = true
		h.dec.live--
	}
	h.dec.mu.Unlock()
	h.once.Do(func() {
		go h.onComplete(err)
	})
}

type fakeDecoder struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	live     int
	overlaps int
	startErr map[string]error
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{startErr: make(map[string]error)}
}

func (d *fakeDecoder) Start(_ context.Context, _ domain.RoomID, url string, offset time.Duration, onComplete func(error)) (core.DecoderHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.startErr[url]; err != nil {
		return nil, err
	}
	if d.live > 0 {
		d.overlaps++
	}
	d.live++
	h := &fakeHandle{dec: d, url: url, offset: offset, onComplete: onComplete}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDecoder) last() *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

func (d *fakeDecoder) starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *fakeDecoder) liveCount() (live, overlaps int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live, d.overlaps
}

// finish simulates the newest decoder reaching the end of its stream.
func (d *fakeDecoder) finish(t *testing.T) {
	t.Helper()
	h := d.last()
	if h == nil {
		t.Fatal("finish: no decoder started")
	}
	h.end(nil)
}

type fakeNotifier struct {
	mu      sync.Mutex
	posts   []core.NowPlaying
	deleted []core.MessageRef
	seq     atomic.Int64
	err     error
}

func (n *fakeNotifier) PostNowPlaying(_ context.Context, room domain.RoomID, channel domain.ChannelID, np core.NowPlaying) (core.MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return core.MessageRef{}, n.err
	}
	n.posts = append(n.posts, np)
	return core.MessageRef{Room: room, Channel: channel, ID: fmt.Sprint(n.seq.Add(1))}, nil
}

func (n *fakeNotifier) Delete(_ context.Context, ref core.MessageRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, ref)
	return nil
}

func (n *fakeNotifier) lastPost() (core.NowPlaying, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.posts) == 0 {
		return core.NowPlaying{}, false
	}
	return n.posts[len(n.posts)-1], true
}

type harness struct {
	s           *Session
	res         *fakeResolver
	dec         *fakeDecoder
	note        *fakeNotifier
	disconnects atomic.Int32
}

// newHarness must be called inside a synctest bubble.
func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		res:  newFakeResolver(),
		dec:  newFakeDecoder(),
		note: &fakeNotifier{},
	}
	h.s = NewSession("room-1", "chan-1", cfg, Deps{
		Resolver: h.res,
		Decoder:  h.dec,
		Notifier: h.note,
		OnDisconnect: func(domain.RoomID) {
			h.disconnects.Add(1)
		},
		Rand: rand.New(rand.NewPCG(1, 2)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go h.s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.s.Done()
	})
	return h
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return snap
}

func items(refs ...string) []domain.QueueItem {
	out := make([]domain.QueueItem, 0, len(refs))
	for _, r := range refs {
		out = append(out, domain.QueueItem{Title: r, Ref: domain.TrackRef(r)})
	}
	return out
}

func historyTitles(entries []domain.HistoryEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}
