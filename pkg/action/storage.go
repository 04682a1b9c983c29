package action

import "github.com/driftnode/driftnode/pkg/request"

// BlockHeader is the header payload carried on StorageBlockHeadersPut.
// It mirrors state.BlockHeader field for field; the two are kept separate
// so the state tree never depends on this package.
type BlockHeader struct {
	Hash       []byte `json:"hash"`
	PrevHash   []byte `json:"prev_hash"`
	Height     uint64 `json:"height"`
	RawPayload []byte `json:"raw_payload,omitempty"`
}

// StorageBlockHeadersPut enqueues one or more headers onto the FIFO the
// admission-controlled pipeline drains.
type StorageBlockHeadersPut struct {
	Headers []BlockHeader `json:"headers"`
}

func (StorageBlockHeadersPut) Kind() Kind { return KindStorageBlockHeadersPut }

// StorageBlockHeaderPutNextInit fires whenever the pipeline might have
// room to admit another header: on StorageBlockHeadersPut, after each
// StorageBlockHeaderPutNextPending, and after every request completes
// (backfill, dispatched right after StorageRequestFinish).
type StorageBlockHeaderPutNextInit struct{}

func (StorageBlockHeaderPutNextInit) Kind() Kind { return KindStorageBlockHeaderPutNextInit }

// StorageBlockHeaderPutNextPending is dispatched once the reducer has
// allocated a request slot for the FIFO head, carrying the ID that slot
// was allocated under.
type StorageBlockHeaderPutNextPending struct {
	RequestID request.ID `json:"request_id"`
}

func (StorageBlockHeaderPutNextPending) Kind() Kind {
	return KindStorageBlockHeaderPutNextPending
}

// StorageRequestInit sends a request's payload over the worker channel.
type StorageRequestInit struct {
	RequestID request.ID `json:"request_id"`
}

func (StorageRequestInit) Kind() Kind { return KindStorageRequestInit }

// StorageRequestPending marks a request slot as sent and awaiting a
// response.
type StorageRequestPending struct {
	RequestID request.ID `json:"request_id"`
}

func (StorageRequestPending) Kind() Kind { return KindStorageRequestPending }

// StorageRequestSuccess reports a completed request, matched back to its
// pending entry by RequestID. Result is true when the worker actually
// wrote the header (false means it was already present).
type StorageRequestSuccess struct {
	RequestID request.ID `json:"request_id"`
	Result    bool       `json:"result"`
}

func (StorageRequestSuccess) Kind() Kind { return KindStorageRequestSuccess }

// StorageRequestError reports a failed request.
type StorageRequestError struct {
	RequestID request.ID `json:"request_id"`
	Error     string     `json:"error"`
}

func (StorageRequestError) Kind() Kind { return KindStorageRequestError }

// StorageRequestFinish removes a completed (successful or failed) request
// from the pending-request registry. The StorageRequestSuccess/Error
// effect dispatches it, followed by StorageBlockHeaderPutNextInit for
// backfill.
type StorageRequestFinish struct {
	RequestID request.ID `json:"request_id"`
}

func (StorageRequestFinish) Kind() Kind { return KindStorageRequestFinish }

// StorageStateSnapshotCreate is dispatched by the engine every
// SnapshotInterval dispatched actions; the effect serializes the state
// and hands it to the storage worker.
type StorageStateSnapshotCreate struct {
	AnchorActionID ID `json:"anchor_action_id"`
}

func (StorageStateSnapshotCreate) Kind() Kind { return KindStorageStateSnapshotCreate }
