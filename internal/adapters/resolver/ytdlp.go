// Package resolver turns track references into playable audio streams by
// shelling out to yt-dlp.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/domain"
)

const (
	resolveFormat   = "%(url)s\t%(webpage_url)s\t%(title)s\t%(duration)s\t%(thumbnail)s"
	candidateFormat = "%(url)s\t%(title)s\t%(duration)s\t%(thumbnail)s"
	notAvailable    = "NA"
)

var ErrNoResult = errors.New("no result")

type Config struct {
	Proxy string
	// DefaultSearch is the yt-dlp search prefix used for plain text, e.g. "ytsearch".
	DefaultSearch string
	Timeout       time.Duration
}

// YtDlp implements core.Resolver.
type YtDlp struct {
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger
}

func New(cfg Config) *YtDlp {
	if cfg.DefaultSearch == "" {
		cfg.DefaultSearch = "ytsearch"
	}
	return &YtDlp{
		cfg:    cfg,
		now:    time.Now,
		logger: log.With().Str("module", "resolver.ytdlp").Logger(),
	}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig()
	if y.cfg.Proxy != "" {
		cmd.Proxy(y.cfg.Proxy)
	}
	return cmd
}

func (y *YtDlp) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if y.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, y.cfg.Timeout)
}

// target turns a reference into a yt-dlp argument. Plain text becomes a
// search that yields n results.
func (y *YtDlp) target(ref domain.TrackRef, n int) string {
	if ref.IsLink() {
		return string(ref)
	}
	return fmt.Sprintf("%s%d:%s", y.cfg.DefaultSearch, n, ref)
}

func (y *YtDlp) Resolve(ctx context.Context, ref domain.TrackRef) (domain.ResolvedStream, error) {
	ctx, cancel := y.bound(ctx)
	defer cancel()

	res, err := y.command().
		Format("bestaudio/best").
		NoPlaylist().
		Print(resolveFormat).
		Run(ctx, y.target(ref, 1))
	if err != nil {
		if res != nil {
			y.logger.Debug().Str("ref", string(ref)).Str("stderr", res.Stderr).Msg("yt-dlp failed")
		}
		return domain.ResolvedStream{}, fmt.Errorf("yt-dlp %q: %w", ref, err)
	}

	stream, err := parseResolved(res.Stdout)
	if err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("yt-dlp %q: %w", ref, err)
	}
	stream.ResolvedAt = y.now()
	y.logger.Debug().Str("ref", string(ref)).Str("title", stream.Title).Msg("resolved")
	return stream, nil
}

func (y *YtDlp) ResolveMany(ctx context.Context, query string, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = 1
	}
	ctx, cancel := y.bound(ctx)
	defer cancel()

	res, err := y.command().
		FlatPlaylist().
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		Print(candidateFormat).
		Run(ctx, fmt.Sprintf("%s%d:%s", y.cfg.DefaultSearch, limit, query))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp search %q: %w", query, err)
	}
	return parseCandidates(res.Stdout, limit), nil
}

// parseResolved reads the first usable line printed with resolveFormat.
func parseResolved(out string) (domain.ResolvedStream, error) {
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		ps := strings.Split(line, "\t")
		if len(ps) < 5 || field(ps[0]) == "" {
			continue
		}
		s := domain.ResolvedStream{
			StreamURL:    ps[0],
			CanonicalURL: field(ps[1]),
			Title:        field(ps[2]),
			Duration:     parseDuration(ps[3]),
			Thumbnail:    field(ps[4]),
		}
		if s.CanonicalURL == "" {
			s.CanonicalURL = s.StreamURL
		}
		return s, nil
	}
	return domain.ResolvedStream{}, ErrNoResult
}

func parseCandidates(out string, limit int) []domain.Candidate {
	var cs []domain.Candidate
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		ps := strings.Split(line, "\t")
		if len(ps) < 4 || field(ps[0]) == "" || field(ps[1]) == "" {
			continue
		}
		cs = append(cs, domain.Candidate{
			URL:       ps[0],
			Title:     ps[1],
			Duration:  parseDuration(ps[2]),
			Thumbnail: field(ps[3]),
		})
		if len(cs) == limit {
			break
		}
	}
	return cs
}

func field(s string) string {
	s = strings.TrimSpace(s)
	if s == notAvailable {
		return ""
	}
	return s
}

// parseDuration reads yt-dlp's seconds value, which may be fractional or NA.
func parseDuration(s string) time.Duration {
	secs, err := strconv.ParseFloat(field(s), 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
