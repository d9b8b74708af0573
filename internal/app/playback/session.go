package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/core"
	"github.com/dkeye/jukebox/internal/domain"
	"github.com/dkeye/jukebox/internal/metrics"
)

const (
	DefaultAutoplayCandidates = 5
	defaultResolveTimeout     = 30 * time.Second
	defaultCommandBuffer      = 32
	notifyTimeout             = 5 * time.Second
)

type Config struct {
	DisconnectTimeout  time.Duration
	HistorySize        int
	// Autoplay fills an exhausted queue unless disabled.
	DisableAutoplay    bool
	AutoplayCandidates int
	ResolveTimeout     time.Duration
	CommandBuffer      int
}

func (c Config) normalized() Config {
	if c.DisconnectTimeout <= 0 {
		c.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.AutoplayCandidates <= 0 {
		c.AutoplayCandidates = DefaultAutoplayCandidates
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = defaultResolveTimeout
	}
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = defaultCommandBuffer
	}
	return c
}

type Deps struct {
	Resolver core.Resolver
	Decoder  core.Decoder
	Notifier core.Notifier
	// OnDisconnect runs on its own goroutine after the inactivity timer has
	// torn the session down.
	OnDisconnect func(room domain.RoomID)
	Rand         *rand.Rand
	Now          func() time.Time
}

type command struct {
	name   string
	mutate bool
	fn     func() error
	reply  chan error
}

// Session is the playback state machine of one room. Every command, decoder
// completion and timer expiry runs on the goroutine started by Run, which is
// the only writer of the fields below the separator.
type Session struct {
	room   domain.RoomID
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	cmds      chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	stateView atomic.Int32
	timer     DisconnectTimer

	// loop-owned
	ctx          context.Context
	state        State
	queue        *Queue
	history      *History
	current      *domain.ResolvedStream
	handle       core.DecoderHandle
	handleGen    uint64
	nextGen      uint64
	// suppressGen is the generation whose completion a seek asked to ignore.
	suppressGen  uint64
	elapsedBase  time.Duration
	runningSince time.Time
	channel      domain.ChannelID
	nowPlaying   core.MessageRef
	autoplay     bool
	occupants    int
}

func NewSession(room domain.RoomID, channel domain.ChannelID, cfg Config, deps Deps) *Session {
	cfg = cfg.normalized()
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		room: room,
		cfg:  cfg,
		deps: deps,
		logger: log.With().
			Str("module", "playback.session").
			Str("room", string(room)).
			Logger(),
		cmds:      make(chan command, cfg.CommandBuffer),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       context.Background(),
		queue:     NewQueue(),
		history:   NewHistory(cfg.HistorySize),
		channel:   channel,
		autoplay:  !cfg.DisableAutoplay,
		occupants: 1,
	}
}

func (s *Session) Room() domain.RoomID { return s.room }

// State is safe to call from any goroutine.
func (s *Session) State() State { return State(s.stateView.Load()) }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run processes commands until ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.done)
	s.logger.Info().Msg("session loop started")
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			s.logger.Info().Msg("session loop stopped: ctx done")
			return
		case <-s.quit:
			s.teardown()
			s.logger.Info().Msg("session loop stopped")
			return
		case cmd := <-s.cmds:
			err := s.exec(cmd)
			if cmd.reply != nil {
				cmd.reply <- err
			}
		}
	}
}

// Close stops the loop and waits for it. The decoder is stopped on the way out.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) exec(cmd command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("command", cmd.name).Interface("panic", r).Msg("command panicked")
			err = fmt.Errorf("%s: panic: %v", cmd.name, r)
		}
		metrics.Commands.WithLabelValues(cmd.name, resultLabel(err)).Inc()
	}()
	before := s.activity()
	err = cmd.fn()
	if cmd.mutate && (err == nil || s.activity() != before) {
		s.evaluateDisconnect()
	}
	return err
}

// activity is what the disconnect rule looks at. A rejected command that
// leaves it unchanged does not restart the countdown.
type activity struct {
	state     State
	occupants int
	queued    int
	cursor    int
	loaded    bool
}

func (s *Session) activity() activity {
	return activity{
		state:     s.state,
		occupants: s.occupants,
		queued:    s.queue.Len(),
		cursor:    s.queue.Cursor(),
		loaded:    s.handle != nil,
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNothingPlaying):
		return "nothing_playing"
	case errors.Is(err, errStaleCompletion):
		return "stale"
	default:
		return "error"
	}
}

// do runs fn on the session goroutine and waits for its result.
func (s *Session) do(ctx context.Context, name string, mutate bool, fn func() error) error {
	cmd := command{name: name, mutate: mutate, fn: fn, reply: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues cmd from a foreign goroutine without waiting for it.
func (s *Session) post(cmd command) {
	go func() {
		select {
		case s.cmds <- cmd:
		case <-s.done:
		}
	}()
}

func (s *Session) setState(st State) {
	if s.state != st {
		s.logger.Debug().Str("from", s.state.String()).Str("to", st.String()).Msg("state change")
	}
	s.state = st
	s.stateView.Store(int32(st))
}

func (s *Session) now() time.Time { return s.deps.Now() }

func (s *Session) elapsed() time.Duration {
	if s.runningSince.IsZero() {
		return s.elapsedBase
	}
	return s.elapsedBase + s.now().Sub(s.runningSince)
}

// load starts a decoder for stream at offset. Any live decoder is stopped
// first, so at most one handle exists per room.
func (s *Session) load(stream domain.ResolvedStream, offset time.Duration) error {
	s.stopDecoder()

	s.nextGen++
	gen := s.nextGen
	h, err := s.deps.Decoder.Start(s.ctx, s.room, stream.StreamURL, offset, func(err error) {
		s.post(command{name: "complete", mutate: true, fn: func() error {
			return s.onComplete(gen, err)
		}})
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecoderStart, err)
	}
	s.handle, s.handleGen = h, gen
	s.current = &stream
	s.elapsedBase, s.runningSince = offset, s.now()
	s.setState(StatePlaying)
	metrics.TracksStarted.Inc()
	s.logger.Info().Str("title", stream.Title).Dur("offset", offset).Uint64("gen", gen).Msg("decoder started")
	return nil
}

// stopDecoder stops and forgets the live handle, returning what it was playing.
func (s *Session) stopDecoder() *domain.ResolvedStream {
	if s.handle == nil {
		return nil
	}
	if err := s.handle.Stop(); err != nil {
		s.logger.Warn().Err(err).Uint64("gen", s.handleGen).Msg("decoder stop")
	}
	cur := s.current
	s.handle = nil
	s.current = nil
	s.runningSince = time.Time{}
	return cur
}

// onComplete handles the terminal event of the decoder started as gen. The
// completion of a decoder replaced by a seek is consumed here and clears the
// suppression; any other completion not from the live handle is stale.
func (s *Session) onComplete(gen uint64, err error) error {
	if s.suppressGen != 0 && gen == s.suppressGen {
		s.suppressGen = 0
		s.logger.Debug().Uint64("gen", gen).Msg("completion suppressed")
		return errStaleCompletion
	}
	if s.handle == nil || gen != s.handleGen {
		s.logger.Debug().Uint64("gen", gen).Uint64("live", s.handleGen).Msg("stale completion discarded")
		return errStaleCompletion
	}
	finished := s.current
	s.handle = nil
	s.current = nil
	s.runningSince = time.Time{}
	s.setState(StateAwaitingNext)
	if err != nil {
		s.logger.Warn().Err(err).Str("title", finished.Title).Msg("decoder ended with error")
		metrics.Skips.WithLabelValues("decoder").Inc()
		s.advance(nil)
		return nil
	}
	s.advance(finished)
	return nil
}

func (s *Session) resolve(ref domain.TrackRef) (domain.ResolvedStream, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ResolveTimeout)
	defer cancel()
	start := time.Now()
	stream, err := s.deps.Resolver.Resolve(ctx, ref)
	metrics.ResolveDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("%w: %s: %w", ErrResolve, ref, err)
	}
	return stream, nil
}

func (s *Session) recordPlayed(stream domain.ResolvedStream) {
	s.history.Push(domain.HistoryEntry{
		Title:        stream.Title,
		CanonicalURL: stream.CanonicalURL,
		PlayedAt:     s.now(),
	})
}

func (s *Session) announce() {
	if s.deps.Notifier == nil || s.current == nil {
		return
	}
	s.retractNowPlaying()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), notifyTimeout)
	defer cancel()
	ref, err := s.deps.Notifier.PostNowPlaying(ctx, s.room, s.channel, core.NowPlaying{
		Title:     s.current.Title,
		URL:       s.current.CanonicalURL,
		Duration:  s.current.Duration,
		Elapsed:   s.elapsed(),
		Thumbnail: s.current.Thumbnail,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("post now playing")
		return
	}
	s.nowPlaying = ref
}

func (s *Session) retractNowPlaying() {
	if s.deps.Notifier == nil || s.nowPlaying.IsZero() {
		return
	}
	ref := s.nowPlaying
	s.nowPlaying = core.MessageRef{}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), notifyTimeout)
	defer cancel()
	if err := s.deps.Notifier.Delete(ctx, ref); err != nil {
		s.logger.Warn().Err(err).Str("message", ref.ID).Msg("delete now playing")
	}
}

func (s *Session) shouldDisconnect() bool {
	alone := s.occupants <= 1
	inactive := s.handle == nil && s.queue.Remaining() == 0
	return alone || inactive
}

// evaluateDisconnect always cancels the pending timer before deciding anew.
func (s *Session) evaluateDisconnect() {
	s.timer.Cancel()
	if !s.shouldDisconnect() {
		return
	}
	s.timer.Schedule(s.cfg.DisconnectTimeout, func(gen uint64) {
		s.post(command{name: "disconnect", fn: func() error {
			s.disconnect(gen)
			return nil
		}})
	})
}

func (s *Session) disconnect(gen uint64) {
	if !s.timer.Current(gen) || !s.shouldDisconnect() {
		s.logger.Debug().Uint64("gen", gen).Msg("disconnect superseded")
		return
	}
	s.logger.Info().Int("occupants", s.occupants).Msg("inactivity timeout, disconnecting")
	metrics.Disconnects.WithLabelValues("inactivity").Inc()
	s.teardown()
	if s.deps.OnDisconnect != nil {
		go s.deps.OnDisconnect(s.room)
	}
}

func (s *Session) teardown() {
	s.timer.Cancel()
	s.stopDecoder()
	s.retractNowPlaying()
	s.setState(StateIdle)
}
