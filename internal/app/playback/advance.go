package playback

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/dkeye/jukebox/internal/domain"
	"github.com/dkeye/jukebox/internal/metrics"
)

// advance records finished (if any) and moves to the next playable item,
// skipping items that fail to resolve or start. When the queue runs out it
// tries a single autoplay candidate before going idle.
func (s *Session) advance(finished *domain.ResolvedStream) {
	if finished != nil {
		s.recordPlayed(*finished)
	}

	autoplayed := false
	for attempts := s.queue.Remaining() + 2; attempts > 0; attempts-- {
		item, ok := s.queue.Advance()
		if !ok {
			if autoplayed || !s.autoplay {
				break
			}
			autoplayed = true
			cand, ok := s.pickAutoplay()
			if !ok {
				break
			}
			s.logger.Info().Str("title", cand.Title).Msg("autoplay candidate queued")
			s.queue.Append(cand.QueueItem())
			continue
		}

		stream, err := s.resolve(item.Ref)
		if err != nil {
			s.logger.Warn().Err(err).Int("cursor", s.queue.Cursor()).Msg("skipping item")
			metrics.Skips.WithLabelValues("resolve").Inc()
			continue
		}
		if err := s.load(stream, 0); err != nil {
			s.logger.Warn().Err(err).Int("cursor", s.queue.Cursor()).Msg("skipping item")
			metrics.Skips.WithLabelValues("decoder").Inc()
			continue
		}
		s.announce()
		return
	}

	s.retractNowPlaying()
	s.setState(StateIdle)
	s.logger.Info().Int("cursor", s.queue.Cursor()).Msg("nothing left to play")
}

func (s *Session) pickAutoplay() (domain.Candidate, bool) {
	last, ok := s.history.Last()
	if !ok {
		return domain.Candidate{}, false
	}
	query := AutoplayQuery(last.Title)
	if query == "" {
		return domain.Candidate{}, false
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.ResolveTimeout)
	defer cancel()
	start := time.Now()
	cands, err := s.deps.Resolver.ResolveMany(ctx, query, s.cfg.AutoplayCandidates)
	metrics.ResolveDuration.WithLabelValues("resolve_many").Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("autoplay lookup")
		return domain.Candidate{}, false
	}
	if len(cands) == 0 {
		s.logger.Info().Str("query", query).Msg("autoplay found nothing")
		return domain.Candidate{}, false
	}
	return PickCandidate(cands, s.deps.Rand), true
}

var bracketed = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)

// AutoplayQuery strips bracketed and parenthesised parts ("(Official Video)",
// "[HD]") from a title.
func AutoplayQuery(title string) string {
	return strings.Join(strings.Fields(bracketed.ReplaceAllString(title, " ")), " ")
}

// PickCandidate never returns the first candidate unless it is the only one:
// the first search hit is almost always the track that just played.
func PickCandidate(cands []domain.Candidate, rng *rand.Rand) domain.Candidate {
	if len(cands) == 1 {
		return cands[0]
	}
	rest := cands[1:]
	return rest[rng.IntN(len(rest))]
}

// replayRef is what a loaded item is re-resolved from. Search text is pinned
// to the link it resolved to, so a replay cannot land on another video.
func (s *Session) replayRef(item domain.QueueItem) domain.TrackRef {
	if item.Ref.IsLink() || s.current == nil || s.current.CanonicalURL == "" {
		return item.Ref
	}
	return domain.TrackRef(s.current.CanonicalURL)
}

// seek restarts the current item at offset from a freshly resolved stream.
func (s *Session) seek(offset time.Duration) error {
	if !s.state.Loaded() {
		return ErrNothingPlaying
	}
	dur := s.current.Duration
	if offset < 0 || dur <= 0 || offset >= dur {
		return fmt.Errorf("%w: %s not in [0, %s)", ErrInvalidSeek, offset, dur)
	}
	item, ok := s.queue.Current()
	if !ok {
		return ErrNothingPlaying
	}
	ref := s.replayRef(item)

	s.suppressGen = s.handleGen
	s.setState(StateSeeking)
	s.stopDecoder()

	stream, err := s.resolve(ref)
	if err == nil {
		err = s.load(stream, offset)
	}
	if err != nil {
		s.logger.Warn().Err(err).Dur("offset", offset).Msg("seek failed, moving on")
		s.setState(StateAwaitingNext)
		s.advance(nil)
		return err
	}
	s.logger.Info().Dur("offset", offset).Msg("seeked")
	s.announce()
	return nil
}
