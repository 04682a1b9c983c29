package storageworker

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/journal"
	"github.com/driftnode/driftnode/pkg/request"
	"github.com/driftnode/driftnode/pkg/state"
	"github.com/driftnode/driftnode/pkg/storageengine"
	"github.com/driftnode/driftnode/pkg/workerchan"
)

func newTestWorker(t *testing.T, signal workerchan.Signaler) *Worker {
	t.Helper()
	dir := t.TempDir()
	db, err := storageengine.Open(filepath.Join(dir, "headers"))
	require.NoError(t, err)
	j, err := journal.Open(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	w := New(zap.NewNop(), db, j, signal)
	go w.Run()
	t.Cleanup(func() {
		w.Close()
		j.Close()
		db.Close()
	})
	return w
}

func waitResponse(t *testing.T, w *Worker, wake *workerchan.Wakeup) Response {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if resp, ok := w.TryRecvResponse(); ok {
			return resp
		}
		select {
		case <-wake.C():
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for storage response")
		}
	}
}

func TestHeaderPutReportsWroteOnceOnly(t *testing.T) {
	wake := workerchan.NewWakeup()
	w := newTestWorker(t, wake)

	id := request.ID{Locator: 0, Counter: 0}
	h := state.BlockHeader{Hash: state.Key{1, 2, 3}, Height: 9, RawPayload: []byte("header-bytes")}

	w.SendHeaderPut(id, h)
	resp := waitResponse(t, w, wake)
	require.Equal(t, id, resp.ID)
	require.True(t, resp.Tracked)
	require.Empty(t, resp.Err)
	require.True(t, resp.Result, "first put writes")

	got, err := w.GetHeader(h.Hash)
	require.NoError(t, err)
	require.EqualValues(t, 9, got.Height)

	// The same hash again is success with Result=false.
	id2 := request.ID{Locator: 1, Counter: 0}
	w.SendHeaderPut(id2, h)
	resp = waitResponse(t, w, wake)
	require.Empty(t, resp.Err)
	require.False(t, resp.Result)
}

func TestHeaderWithoutHashErrors(t *testing.T) {
	wake := workerchan.NewWakeup()
	w := newTestWorker(t, wake)

	w.SendHeaderPut(request.ID{}, state.BlockHeader{Height: 1})
	resp := waitResponse(t, w, wake)
	require.NotEmpty(t, resp.Err)
}

func TestResponsesArriveInSendOrder(t *testing.T) {
	wake := workerchan.NewWakeup()
	w := newTestWorker(t, wake)

	for i := byte(1); i <= 3; i++ {
		w.SendHeaderPut(request.ID{Locator: uint64(i)}, state.BlockHeader{Hash: state.Key{i}, Height: uint64(i)})
	}
	for i := uint64(1); i <= 3; i++ {
		resp := waitResponse(t, w, wake)
		require.Equal(t, i, resp.ID.Locator, "responses follow send order")
	}
}
