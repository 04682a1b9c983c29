package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/state"
)

// chainRunner dispatches a follow-up for the first action it sees, to
// exercise reentrancy.
type chainRunner struct {
	seen    []action.Envelope
	chained bool
}

func (c *chainRunner) Run(s *state.State, env action.Envelope, dispatch func(action.Action)) {
	c.seen = append(c.seen, env)
	if !c.chained {
		c.chained = true
		dispatch(action.PeersDNSLookupFinish{})
	}
}

func TestDispatchAssignsMonotonicIDs(t *testing.T) {
	runner := &chainRunner{chained: true}
	st := New(zap.NewNop(), state.New(state.Config{}), runner, nil)

	id1 := st.Dispatch(action.TickEvent{})
	id2 := st.Dispatch(action.TickEvent{})
	id3 := st.Dispatch(action.TickEvent{})
	require.Less(t, id1, id2)
	require.Less(t, id2, id3)
	require.EqualValues(t, uint64(id3), st.State().LastActionID)
}

func TestNestedDispatchCompletesBeforeOuterReturns(t *testing.T) {
	runner := &chainRunner{}
	st := New(zap.NewNop(), state.New(state.Config{}), runner, nil)

	st.Dispatch(action.PeersDNSLookupInit{Address: "seed:1"})

	require.Len(t, runner.seen, 2)
	require.Equal(t, action.KindPeersDNSLookupInit, runner.seen[0].Action.Kind())
	require.Equal(t, action.KindPeersDNSLookupFinish, runner.seen[1].Action.Kind())
	require.Less(t, runner.seen[0].ID, runner.seen[1].ID)
}

// reducerObserved checks the "reducer runs before effects" rule: by the
// time the effect sees the action, the state transition has already been
// applied.
type reducerObserved struct {
	statusAtEffect state.Status
}

func (r *reducerObserved) Run(s *state.State, env action.Envelope, _ func(action.Action)) {
	if env.Action.Kind() == action.KindPeerConnectionInit {
		r.statusAtEffect = s.Peers["a"].Status
	}
}

func TestReducerRunsBeforeEffects(t *testing.T) {
	runner := &reducerObserved{}
	s := state.New(state.Config{})
	s.Peers["a"] = state.NewPotentialPeer("a")
	st := New(zap.NewNop(), s, runner, nil)

	st.Dispatch(action.PeerConnectionInit{Address: "a"})
	require.Equal(t, state.StatusConnecting, runner.statusAtEffect)
}

func TestJournalReceivesEveryEnvelope(t *testing.T) {
	var journaled []action.Envelope
	runner := &chainRunner{}
	st := New(zap.NewNop(), state.New(state.Config{}), runner, func(env action.Envelope) {
		journaled = append(journaled, env)
	})

	st.Dispatch(action.PeersDNSLookupInit{Address: "seed:1"})
	require.Len(t, journaled, 2, "nested dispatches are journaled too")
}
