// Package randomness implements the Pick service the effects layer uses
// to choose which Potential peer to dial next. The choice goes through a
// service so tests stay deterministic while a production node can be
// unpredictable, without the reducer or effects knowing the difference.
package randomness

import (
	"math/rand"
	"time"
)

// Service picks one address out of a non-empty candidate set. Pick must
// return "" only when candidates is empty.
type Service interface {
	Pick(candidates []string) string
}

// deterministic always returns the first candidate in iteration order. It
// is what tests use, and what reducer/effects determinism tests rely on
// to stay repeatable regardless of map iteration order upstream (callers
// are expected to sort candidates before calling Pick when order matters
// to a test).
type deterministic struct{}

// NewDeterministic returns a Randomness that always picks the first
// candidate, useful for tests and for a default that favors
// reproducibility over unpredictability.
func NewDeterministic() Service {
	return deterministic{}
}

func (deterministic) Pick(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// source is a production Randomness backed by math/rand, seeded once at
// construction.
type source struct {
	r *rand.Rand
}

// New returns a math/rand-backed Randomness seeded from the current time.
func New() Service {
	return &source{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *source) Pick(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[s.r.Intn(len(candidates))]
}
