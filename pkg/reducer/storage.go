package reducer

import (
	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/state"
)

// MaxInFlightStorageRequests bounds how many storage requests may be
// admitted (registry slot allocated) at once. The worker's request channel
// has more capacity than this bound, so an admitted request can always be
// sent without blocking.
const MaxInFlightStorageRequests = 2

// reduceStorageBlockHeadersPut appends one Idle entry per header to the
// FIFO; admission into the pipeline happens later, on
// StorageBlockHeaderPutNextInit.
func reduceStorageBlockHeadersPut(s *state.State, a action.StorageBlockHeadersPut) {
	for _, h := range a.Headers {
		s.Storage.BlockHeadersPut = append(s.Storage.BlockHeadersPut, state.BlockHeaderPutEntry{
			Header: state.BlockHeader{
				Hash:       h.Hash,
				PrevHash:   h.PrevHash,
				Height:     h.Height,
				RawPayload: h.RawPayload,
			},
			Status: state.HeaderPutIdle,
		})
	}
}

// reduceStorageBlockHeaderPutNextInit admits the FIFO head into the
// pipeline if it is Idle and fewer than MaxInFlightStorageRequests
// requests are currently outstanding: a fresh request slot is allocated
// carrying the header payload, and the head moves to Init under that
// slot's ID. The effect that dispatched this action reads the head back
// out of state to learn the allocated ID.
func reduceStorageBlockHeaderPutNextInit(s *state.State) {
	if s.Storage.InFlight >= MaxInFlightStorageRequests {
		return
	}
	if len(s.Storage.BlockHeadersPut) == 0 {
		return
	}
	head := &s.Storage.BlockHeadersPut[0]
	if head.Status != state.HeaderPutIdle {
		return
	}

	h := head.Header
	id := s.Storage.Requests.Add(&state.StorageRequest{
		Kind:   state.RequestBlockHeaderPut,
		Status: state.RequestIdle,
		Header: &h,
	})
	s.Storage.InFlight++
	head.Status = state.HeaderPutInit
	head.RequestID = id
}

// reduceStorageBlockHeaderPutNextPending pops the FIFO head if its
// allocated request ID matches a, guarding against a stale or duplicate
// dispatch racing a second NextInit.
func reduceStorageBlockHeaderPutNextPending(s *state.State, a action.StorageBlockHeaderPutNextPending) {
	if len(s.Storage.BlockHeadersPut) == 0 {
		return
	}
	head := s.Storage.BlockHeadersPut[0]
	if head.Status != state.HeaderPutInit || head.RequestID != a.RequestID {
		return
	}
	s.Storage.BlockHeadersPut = s.Storage.BlockHeadersPut[1:]
}

// reduceStorageRequestPending marks a request slot as sent over the
// worker channel and awaiting a response.
func reduceStorageRequestPending(s *state.State, a action.StorageRequestPending) {
	v, exists := s.Storage.Requests.Get(a.RequestID)
	if !exists {
		return
	}
	req := v.(*state.StorageRequest)
	if req.Status != state.RequestIdle {
		return
	}
	req.Status = state.RequestPending
}

func reduceStorageRequestSuccess(s *state.State, a action.StorageRequestSuccess) {
	v, exists := s.Storage.Requests.Get(a.RequestID)
	if !exists {
		return
	}
	req := v.(*state.StorageRequest)
	if req.Status != state.RequestPending {
		return
	}
	req.Status = state.RequestSuccess
}

func reduceStorageRequestError(s *state.State, a action.StorageRequestError) {
	v, exists := s.Storage.Requests.Get(a.RequestID)
	if !exists {
		return
	}
	req := v.(*state.StorageRequest)
	if req.Status != state.RequestPending {
		return
	}
	req.Status = state.RequestError
	req.Err = a.Error
}

// reduceStorageRequestFinish is the only place a request slot is freed;
// a slot freed here bumps its generation counter, so any late response
// carrying the old ID no longer resolves.
func reduceStorageRequestFinish(s *state.State, a action.StorageRequestFinish) {
	if !s.Storage.Requests.Remove(a.RequestID) {
		return
	}
	s.Storage.InFlight--
}

func reduceStorageStateSnapshotCreate(s *state.State, a action.StorageStateSnapshotCreate) {
	s.LastSnapshotAtID = uint64(a.AnchorActionID)
}
