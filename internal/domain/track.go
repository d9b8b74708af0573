package domain

import (
	"strings"
	"time"
)

// TrackRef identifies a playable item before resolution: search text or a direct link.
type TrackRef string

func NewTrackRef(raw string) (TrackRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyRef
	}
	return TrackRef(raw), nil
}

// IsLink reports whether the reference is a direct link rather than search text.
func (r TrackRef) IsLink() bool {
	s := string(r)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// QueueItem is immutable once enqueued. Hints may be zero until the item is resolved.
type QueueItem struct {
	Title         string        `json:"title"`
	Ref           TrackRef      `json:"ref"`
	DurationHint  time.Duration `json:"duration_hint,omitempty"`
	ThumbnailHint string        `json:"thumbnail_hint,omitempty"`
}

// DisplayTitle falls back to the reference when no title is known yet.
func (q QueueItem) DisplayTitle() string {
	if q.Title != "" {
		return q.Title
	}
	return string(q.Ref)
}

// ResolvedStream is a freshly fetched playable URL. It expires and is never persisted.
type ResolvedStream struct {
	StreamURL    string        `json:"-"`
	CanonicalURL string        `json:"url"`
	Title        string        `json:"title"`
	Duration     time.Duration `json:"duration"`
	Thumbnail    string        `json:"thumbnail,omitempty"`
	ResolvedAt   time.Time     `json:"resolved_at"`
}

// Candidate is one search result returned by the resolver.
type Candidate struct {
	Title     string        `json:"title"`
	URL       string        `json:"url"`
	Duration  time.Duration `json:"duration"`
	Thumbnail string        `json:"thumbnail,omitempty"`
}

func (c Candidate) QueueItem() QueueItem {
	return QueueItem{
		Title:         c.Title,
		Ref:           TrackRef(c.URL),
		DurationHint:  c.Duration,
		ThumbnailHint: c.Thumbnail,
	}
}

type HistoryEntry struct {
	Title        string    `json:"title"`
	CanonicalURL string    `json:"url"`
	PlayedAt     time.Time `json:"played_at"`
}
