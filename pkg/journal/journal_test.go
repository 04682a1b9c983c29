package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftnode/driftnode/pkg/action"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func appendAction(t *testing.T, j *Journal, id uint64, act action.Action) {
	t.Helper()
	content, err := action.Encode(act)
	require.NoError(t, err)
	env := action.Envelope{ID: action.ID(id), Time: time.Unix(0, int64(id)), Action: act}
	require.NoError(t, j.AppendAction(env, content))
}

func TestAppendAndReadRange(t *testing.T) {
	j := openTemp(t)
	appendAction(t, j, 1, action.PeersDNSLookupInit{Address: "seed:1"})
	appendAction(t, j, 2, action.PeersDNSLookupSuccess{Addresses: []string{"a:1"}})
	appendAction(t, j, 3, action.PeersDNSLookupFinish{})

	recs, err := j.ReadRange(2, 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.EqualValues(t, 2, recs[0].ID)
	require.Equal(t, action.KindPeersDNSLookupSuccess, recs[0].Kind)
	require.EqualValues(t, 3, recs[1].ID)

	act, err := action.Decode(recs[0].Kind, recs[0].Content)
	require.NoError(t, err)
	require.Equal(t, action.PeersDNSLookupSuccess{Addresses: []string{"a:1"}}, act)
}

func TestReadRangeEmptyOutside(t *testing.T) {
	j := openTemp(t)
	appendAction(t, j, 5, action.TickEvent{})
	recs, err := j.ReadRange(6, 100)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestNearestSnapshot(t *testing.T) {
	j := openTemp(t)
	require.NoError(t, j.PutSnapshot(0, []byte(`{"zero":true}`)))
	require.NoError(t, j.PutSnapshot(100, []byte(`{"hundred":true}`)))

	anchor, data, ok, err := j.NearestSnapshot(150)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 100, anchor)
	require.JSONEq(t, `{"hundred":true}`, string(data))

	anchor, data, ok, err = j.NearestSnapshot(99)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0, anchor)
	require.JSONEq(t, `{"zero":true}`, string(data))

	anchor, _, ok, err = j.NearestSnapshot(100)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 100, anchor, "a snapshot exactly at the cursor counts")
}

func TestNearestSnapshotNone(t *testing.T) {
	j := openTemp(t)
	_, _, ok, err := j.NearestSnapshot(10)
	require.NoError(t, err)
	require.False(t, ok)
}
