package playback

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/jukebox/internal/domain"
)

func TestAutoplayQuery(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Artist - Song (Official Video)", "Artist - Song"},
		{"Artist - Song [HD] (Lyrics)", "Artist - Song"},
		{"{Live} Band  -  Track", "Band - Track"},
		{"Plain title", "Plain title"},
		{"(only brackets)", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, AutoplayQuery(tt.title))
		})
	}
}

func TestPickCandidate_NeverFirstUnlessOnly(t *testing.T) {
	cands := []domain.Candidate{{Title: "first"}, {Title: "b"}, {Title: "c"}, {Title: "d"}, {Title: "e"}}
	rng := rand.New(rand.NewPCG(3, 4))

	for range 500 {
		got := PickCandidate(cands, rng)
		assert.NotEqual(t, "first", got.Title)
	}
}

func TestPickCandidate_Single(t *testing.T) {
	got := PickCandidate([]domain.Candidate{{Title: "only"}}, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, "only", got.Title)
}

func TestPickCandidate_CoversRest(t *testing.T) {
	cands := []domain.Candidate{{Title: "first"}, {Title: "b"}, {Title: "c"}}
	rng := rand.New(rand.NewPCG(9, 9))

	seen := map[string]bool{}
	for range 200 {
		seen[PickCandidate(cands, rng).Title] = true
	}
	assert.Equal(t, map[string]bool{"b": true, "c": true}, seen)
}
