// Package storageworker runs the persistent-storage thread: it owns the
// goleveldb header store and the bbolt journal, receives requests over a
// bounded channel, and reports results back over a second bounded channel
// whose sends poke the reactor so the engine observes completions as
// WakeupEvent actions. The engine's goroutine never touches the database
// handles; everything crossing the boundary is a plain serializable
// value.
package storageworker

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/journal"
	"github.com/driftnode/driftnode/pkg/request"
	"github.com/driftnode/driftnode/pkg/state"
	"github.com/driftnode/driftnode/pkg/storageengine"
	"github.com/driftnode/driftnode/pkg/workerchan"
)

// RequestKind names what the worker is asked to do.
type RequestKind int

const (
	// RequestBlockHeaderPut persists one block header by hash.
	RequestBlockHeaderPut RequestKind = iota
	// RequestStateSnapshot persists a full-state snapshot anchored at an
	// action ID.
	RequestStateSnapshot
)

// Request is one unit of work sent to the worker. Tracked requests carry
// a registry ID and always produce a Response; untracked ones (state
// snapshots) complete silently unless they fail.
type Request struct {
	ID      request.ID
	Tracked bool
	Kind    RequestKind

	Header *state.BlockHeader

	SnapshotAnchorID uint64
	SnapshotState    []byte
}

// Response reports one completed request. Result is true for a header
// put that actually wrote (false when the hash was already present).
type Response struct {
	ID      request.ID
	Tracked bool
	Kind    RequestKind
	Result  bool
	Err     string
}

type actionAppend struct {
	env     action.Envelope
	content []byte
}

// Worker is the storage thread plus both ends of its channels. Construct
// with New, start with Run (usually `go w.Run()`), stop with Close.
type Worker struct {
	log     *zap.Logger
	headers *storageengine.Table
	journal *journal.Journal

	reqIn  *workerchan.Requester[Request]
	reqOut *workerchan.Responder[Request]

	respIn  *workerchan.Requester[Response]
	respOut *workerchan.Responder[Response]

	actIn  *workerchan.Requester[actionAppend]
	actOut *workerchan.Responder[actionAppend]

	quit chan struct{}
	done chan struct{}
}

// headersPrefix namespaces header records inside the goleveldb file.
var headersPrefix = []byte("hdr:")

// requestQueueCap is twice the reducer's in-flight admission bound (2),
// leaving room for untracked snapshots, so a Send for an admitted request
// never blocks in practice.
const requestQueueCap = 4

// actionQueueCap absorbs dispatch bursts between worker wakeups; when it
// overflows the append is dropped with a log line rather than stalling
// the engine (the journal is an observability aid, the snapshot is the
// recovery mechanism).
const actionQueueCap = 1024

// New returns a Worker persisting headers into db and snapshots/actions
// into j. signal is poked after every response enqueue; hand it the
// reactor so completions surface as wakeups.
func New(log *zap.Logger, db storageengine.Database, j *journal.Journal, signal workerchan.Signaler) *Worker {
	w := &Worker{
		log:     log,
		headers: storageengine.NewTable(db, headersPrefix),
		journal: j,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	w.reqIn, w.reqOut = workerchan.New[Request](requestQueueCap, nil)
	w.respIn, w.respOut = workerchan.New[Response](requestQueueCap*2, signal)
	w.actIn, w.actOut = workerchan.New[actionAppend](actionQueueCap, nil)
	return w
}

// SendHeaderPut enqueues a tracked header-put request. It blocks when the
// queue is full; admission control upstream keeps that from happening
// outside of shutdown races.
func (w *Worker) SendHeaderPut(id request.ID, h state.BlockHeader) {
	w.reqIn.Send(Request{ID: id, Tracked: true, Kind: RequestBlockHeaderPut, Header: &h})
}

// SendSnapshot enqueues an untracked state-snapshot request, dropping it
// with a log line when the queue is full: snapshots are periodic policy,
// the next interval will try again.
func (w *Worker) SendSnapshot(anchorID uint64, stateJSON []byte) {
	err := w.reqIn.TrySend(Request{
		Kind:             RequestStateSnapshot,
		SnapshotAnchorID: anchorID,
		SnapshotState:    stateJSON,
	})
	if err != nil {
		w.log.Warn("snapshot request dropped", zap.Uint64("anchor", anchorID), zap.Error(err))
	}
}

// TryRecvResponse drains one completed response without blocking.
func (w *Worker) TryRecvResponse() (Response, bool) {
	return w.respOut.TryRecv()
}

// StoreAction appends env to the action journal, asynchronously. Content
// encoding happens here, on the dispatching goroutine, before the envelope
// and its encoded content are queued for the worker.
func (w *Worker) StoreAction(env action.Envelope) {
	content, err := action.Encode(env.Action)
	if err != nil {
		w.log.Error("encode action for journal", zap.Uint64("id", uint64(env.ID)), zap.Error(err))
		return
	}
	if err := w.actIn.TrySend(actionAppend{env: env, content: content}); err != nil {
		w.log.Warn("action journal append dropped", zap.Uint64("id", uint64(env.ID)))
	}
}

// Run processes requests and journal appends until Close. Call it on its
// own goroutine.
func (w *Worker) Run() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			w.drain()
			return
		case req := <-w.reqOut.C():
			w.handle(req)
		case app := <-w.actOut.C():
			w.appendAction(app)
		}
	}
}

// drain finishes whatever is already queued before shutdown so accepted
// work is not lost.
func (w *Worker) drain() {
	for {
		select {
		case req := <-w.reqOut.C():
			w.handle(req)
		case app := <-w.actOut.C():
			w.appendAction(app)
		default:
			return
		}
	}
}

func (w *Worker) handle(req Request) {
	resp := Response{ID: req.ID, Tracked: req.Tracked, Kind: req.Kind}
	switch req.Kind {
	case RequestBlockHeaderPut:
		wrote, err := w.putHeader(req.Header)
		resp.Result = wrote
		if err != nil {
			resp.Err = err.Error()
		}
	case RequestStateSnapshot:
		if err := w.journal.PutSnapshot(req.SnapshotAnchorID, req.SnapshotState); err != nil {
			resp.Err = err.Error()
		}
	default:
		resp.Err = fmt.Sprintf("storageworker: unknown request kind %d", req.Kind)
	}

	if !req.Tracked {
		if resp.Err != "" {
			w.log.Error("untracked storage request failed",
				zap.Int("kind", int(req.Kind)), zap.String("error", resp.Err))
		}
		return
	}
	w.respIn.Send(resp)
}

// putHeader persists h keyed by hash, reporting whether a write happened
// (false means the header was already present, which is success, not an
// error).
func (w *Worker) putHeader(h *state.BlockHeader) (bool, error) {
	if h == nil || len(h.Hash) == 0 {
		return false, fmt.Errorf("storageworker: header without hash")
	}
	exists, err := w.headers.Has(h.Hash)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return false, err
	}
	if err := w.headers.Put(h.Hash, data); err != nil {
		return false, err
	}
	return true, nil
}

// GetHeader loads a persisted header by hash.
func (w *Worker) GetHeader(hash []byte) (*state.BlockHeader, error) {
	data, err := w.headers.Get(hash)
	if err != nil {
		return nil, err
	}
	var h state.BlockHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (w *Worker) appendAction(app actionAppend) {
	if err := w.journal.AppendAction(app.env, app.content); err != nil {
		w.log.Error("append action", zap.Uint64("id", uint64(app.env.ID)), zap.Error(err))
	}
}

// Close stops Run and waits for queued work to flush.
func (w *Worker) Close() {
	close(w.quit)
	<-w.done
}
