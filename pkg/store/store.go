// Package store wires action-id assignment, the reducer and the effects
// dispatcher into the single Dispatch entry point the rest of the program
// calls. Dispatch is reentrant: an effect invoked while handling action N
// may call Dispatch again for action N+1 before the first call returns,
// and the call stack itself is the action queue, exactly as the engine's
// single-threaded event loop expects.
package store

import (
	"time"

	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/reducer"
	"github.com/driftnode/driftnode/pkg/state"
)

// EffectsRunner is implemented by pkg/effects.Dispatcher; kept as an
// interface here so store has no import-time dependency on effects (and
// so tests can substitute a recording stub).
type EffectsRunner interface {
	Run(s *state.State, env action.Envelope, dispatch func(action.Action))
}

// Store owns the live State and is the only thing that applies
// reducer.Reduce to it.
type Store struct {
	log     *zap.Logger
	state   *state.State
	effects EffectsRunner
	nextID  action.ID
	journal func(action.Envelope)
}

// New returns a Store over s. log and runner must not be nil; journal may
// be nil, in which case dispatched actions are not recorded anywhere
// (useful for pure reducer-only tests that don't want a journal file).
func New(log *zap.Logger, s *state.State, runner EffectsRunner, journal func(action.Envelope)) *Store {
	return &Store{log: log, state: s, effects: runner, journal: journal, nextID: 1}
}

// State returns the store's current state. Callers must not mutate it;
// it's exposed read-only for introspection and snapshotting.
func (st *Store) State() *state.State {
	return st.state
}

// Dispatch assigns the next action ID, applies act through the reducer,
// then runs any effects registered for act. Effects may call Dispatch
// again synchronously; that nested call completes in full (including its
// own nested effects) before control returns to this frame, so actions
// are processed in the exact order they're dispatched, depth-first.
func (st *Store) Dispatch(act action.Action) action.ID {
	id := st.nextID
	st.nextID++

	env := action.Envelope{ID: id, Time: time.Now(), Action: act}

	st.log.Debug("dispatch", zap.Uint64("id", uint64(id)), zap.String("kind", string(act.Kind())))

	st.state.LastActionID = uint64(id)
	reducer.Reduce(st.state, act)

	if st.journal != nil {
		st.journal(env)
	}

	if st.effects != nil {
		st.effects.Run(st.state, env, func(next action.Action) {
			st.Dispatch(next)
		})
	}

	return id
}
