package randomness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicPicksFirst(t *testing.T) {
	d := NewDeterministic()
	require.Equal(t, "a", d.Pick([]string{"a", "b", "c"}))
}

func TestDeterministicEmpty(t *testing.T) {
	d := NewDeterministic()
	require.Equal(t, "", d.Pick(nil))
}

func TestSourcePicksWithinRange(t *testing.T) {
	s := New()
	candidates := []string{"a", "b", "c"}
	for i := 0; i < 20; i++ {
		picked := s.Pick(candidates)
		require.Contains(t, candidates, picked)
	}
}
