package core

import (
	"context"

	"github.com/dkeye/jukebox/internal/domain"
)

// Resolver turns track references into playable streams. Calls may be slow;
// callers pass a ctx that bounds them.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.TrackRef) (domain.ResolvedStream, error)
	ResolveMany(ctx context.Context, query string, limit int) ([]domain.Candidate, error)
}
