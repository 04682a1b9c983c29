package introspection

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/journal"
	"github.com/driftnode/driftnode/pkg/reducer"
	"github.com/driftnode/driftnode/pkg/state"
)

func seedJournal(t *testing.T) (*journal.Journal, *state.State) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	initial := state.New(state.Config{DNSSeedAddress: "seed:1"})
	snap, err := json.Marshal(initial)
	require.NoError(t, err)
	require.NoError(t, j.PutSnapshot(0, snap))

	acts := []action.Action{
		action.PeersDNSLookupInit{Address: "seed:1"},
		action.PeersDNSLookupSuccess{Addresses: []string{"10.0.0.1:4000"}},
		action.PeersDNSLookupFinish{},
		action.PeerConnectionInit{Address: "10.0.0.1:4000"},
	}
	live := state.New(state.Config{DNSSeedAddress: "seed:1"})
	for i, a := range acts {
		content, err := action.Encode(a)
		require.NoError(t, err)
		env := action.Envelope{ID: action.ID(i + 1), Time: time.Unix(0, int64(i)), Action: a}
		require.NoError(t, j.AppendAction(env, content))
		live.LastActionID = uint64(i + 1)
		reducer.Reduce(live, a)
	}
	return j, live
}

func TestStateEndpoint(t *testing.T) {
	j, live := seedJournal(t)
	srv := New(zap.NewNop(), "127.0.0.1:0", j)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code, "nothing published yet")

	srv.PublishState(live)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/state", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	var got state.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.EqualValues(t, 4, got.LastActionID)
	require.Contains(t, got.Peers, "10.0.0.1:4000")
}

func TestActionsReplayMatchesLive(t *testing.T) {
	j, live := seedJournal(t)
	srv := New(zap.NewNop(), "127.0.0.1:0", j)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/actions?cursor=1&limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var pairs []actionPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pairs))
	require.Len(t, pairs, 4)
	require.EqualValues(t, 1, pairs[0].ID)
	require.Equal(t, action.KindPeersDNSLookupInit, pairs[0].Kind)

	// The final replayed state must equal the live state byte for byte.
	liveJSON, err := json.Marshal(live)
	require.NoError(t, err)
	require.JSONEq(t, string(liveJSON), string(pairs[3].State))
}

func TestActionsReplayFromMidCursor(t *testing.T) {
	j, live := seedJournal(t)
	srv := New(zap.NewNop(), "127.0.0.1:0", j)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/actions?cursor=4&limit=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var pairs []actionPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pairs))
	require.Len(t, pairs, 1)
	require.EqualValues(t, 4, pairs[0].ID)

	liveJSON, err := json.Marshal(live)
	require.NoError(t, err)
	require.JSONEq(t, string(liveJSON), string(pairs[0].State))
}

func TestActionsRejectsBadCursor(t *testing.T) {
	j, _ := seedJournal(t)
	srv := New(zap.NewNop(), "127.0.0.1:0", j)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/actions?cursor=banana", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	j, live := seedJournal(t)
	srv := New(zap.NewNop(), "127.0.0.1:0", j)
	srv.PublishState(live)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "driftnode_last_action_id")
	require.Contains(t, rr.Body.String(), "driftnode_peers")
}
