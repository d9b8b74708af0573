// Package decoder runs ffmpeg to turn a remote audio stream into Opus
// samples for the room's listeners.
package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
)

const (
	opusSampleRate      = 48000
	defaultPageDuration = 20 * time.Millisecond
	stderrTail          = 2048
)

var ErrStopped = errors.New("decoder stopped")

// SampleSink receives the decoded audio of a room.
type SampleSink interface {
	WriteSample(room domain.RoomID, s media.Sample) error
}

type Config struct {
	Binary       string
	Bitrate      string
	PageDuration time.Duration
}

func (c Config) normalized() Config {
	if c.Binary == "" {
		c.Binary = "ffmpeg"
	}
	if c.Bitrate == "" {
		c.Bitrate = "128k"
	}
	if c.PageDuration <= 0 {
		c.PageDuration = defaultPageDuration
	}
	return c
}

// FFmpeg implements core.Decoder.
type FFmpeg struct {
	cfg  Config
	sink SampleSink
}

func New(cfg Config, sink SampleSink) *FFmpeg {
	return &FFmpeg{cfg: cfg.normalized(), sink: sink}
}

func (f *FFmpeg) args(streamURL string, offset time.Duration) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if strings.HasPrefix(streamURL, "http://") || strings.HasPrefix(streamURL, "https://") {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}
	if offset > 0 {
		args = append(args, "-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-i", streamURL,
		"-vn",
		"-c:a", "libopus",
		"-b:a", f.cfg.Bitrate,
		"-ar", strconv.Itoa(opusSampleRate),
		"-ac", "2",
		"-page_duration", strconv.FormatInt(f.cfg.PageDuration.Microseconds(), 10),
		"-f", "ogg",
		"pipe:1",
	)
}

func (f *FFmpeg) Start(ctx context.Context, room domain.RoomID, streamURL string, offset time.Duration, onComplete func(error)) (core.DecoderHandle, error) {
	pctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(pctx, f.cfg.Binary, f.args(streamURL, offset)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	tail := newTailBuffer(stderrTail)
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", f.cfg.Binary, err)
	}

	h := newHandle(pctx, cancel, room, f.sink, f.cfg.PageDuration)
	h.logger.Debug().Int("pid", cmd.Process.Pid).Dur("offset", offset).Msg("ffmpeg started")
	go h.run(stdout, func() error {
		if err := cmd.Wait(); err != nil {
			if msg := tail.String(); msg != "" {
				return fmt.Errorf("ffmpeg: %w: %s", err, msg)
			}
			return fmt.Errorf("ffmpeg: %w", err)
		}
		return nil
	}, onComplete)
	return h, nil
}

type handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	room   domain.RoomID
	sink   SampleSink
	pace   time.Duration
	logger zerolog.Logger

	stopped atomic.Bool
	done    chan struct{}

	mu     sync.Mutex
	paused bool
	gate   chan struct{} // closed while running
}

func newHandle(ctx context.Context, cancel context.CancelFunc, room domain.RoomID, sink SampleSink, pace time.Duration) *handle {
	gate := make(chan struct{})
	close(gate)
	return &handle{
		ctx:    ctx,
		cancel: cancel,
		room:   room,
		sink:   sink,
		pace:   pace,
		logger: log.With().Str("module", "decoder.ffmpeg").Str("room", string(room)).Logger(),
		done:   make(chan struct{}),
		gate:   gate,
	}
}

func (h *handle) Pause() error {
	if h.stopped.Load() {
		return ErrStopped
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.paused {
		h.paused = true
		h.gate = make(chan struct{})
	}
	return nil
}

func (h *handle) Resume() error {
	if h.stopped.Load() {
		return ErrStopped
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.paused {
		h.paused = false
		close(h.gate)
	}
	return nil
}

// Stop kills the process and returns once no more samples will be written.
func (h *handle) Stop() error {
	h.stopped.Store(true)
	h.cancel()
	<-h.done
	return nil
}

func (h *handle) waitRunning() bool {
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()
	select {
	case <-gate:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// run pumps Ogg pages from stdout to the sink at real-time pace, then reports
// the outcome through onComplete exactly once.
func (h *handle) run(stdout io.Reader, wait func() error, onComplete func(error)) {
	pumpErr := h.pump(stdout)
	close(h.done)

	h.cancel()
	waitErr := wait()

	var err error
	switch {
	case h.stopped.Load():
	case pumpErr != nil:
		err = pumpErr
	case waitErr != nil:
		err = waitErr
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("decoder finished with error")
	} else {
		h.logger.Debug().Bool("stopped", h.stopped.Load()).Msg("decoder finished")
	}
	onComplete(err)
}

func (h *handle) pump(stdout io.Reader) error {
	reader, _, err := oggreader.NewWith(stdout)
	if err != nil {
		if h.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("read ogg header: %w", err)
	}

	ticker := time.NewTicker(h.pace)
	defer ticker.Stop()

	var (
		lastGranule uint64
		seen        bool
	)
	for {
		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			if h.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read ogg page: %w", err)
		}
		if len(page) == 0 || bytes.HasPrefix(page, []byte("OpusTags")) {
			continue
		}

		dur := h.pace
		if seen && header.GranulePosition > lastGranule {
			dur = time.Duration(header.GranulePosition-lastGranule) * time.Second / opusSampleRate
		}
		lastGranule, seen = header.GranulePosition, true

		if !h.waitRunning() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-h.ctx.Done():
			return nil
		}
		if err := h.sink.WriteSample(h.room, media.Sample{Data: page, Duration: dur}); err != nil {
			h.logger.Warn().Err(err).Msg("write sample")
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
