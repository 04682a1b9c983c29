// Package reducer implements the single pure function that applies an
// action to a State, producing the next State. It never performs I/O,
// never blocks and never reads the clock; everything it needs is either
// already in State or carried on the action. This is what makes replay
// (the journal-replay path and the introspection server's /actions
// endpoint) produce byte-identical results to the live run.
package reducer

import (
	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/state"
)

// Reduce applies act to s in place and returns s for chaining. Every
// transition checks its precondition and silently no-ops when it doesn't
// hold, so a stale or replayed action can never regress the state.
// Mutating in place (rather than copying) is safe because each State is
// reduced by one goroutine only: the live one by the single-threaded
// store, replay copies by the introspection handler that built them.
func Reduce(s *state.State, act action.Action) *state.State {
	switch a := act.(type) {
	case action.PeersDNSLookupInit:
		reduceDNSLookupInit(s, a)
	case action.PeersDNSLookupSuccess:
		reduceDNSLookupSuccess(s, a)
	case action.PeersDNSLookupError:
		reduceDNSLookupError(s, a)
	case action.PeersDNSLookupFinish:
		reduceDNSLookupFinish(s, a)

	case action.PeerConnectionInit:
		reducePeerConnectionInit(s, a)
	case action.PeerConnectionPending:
		reducePeerConnectionPending(s, a)
	case action.PeerConnectionSuccess:
		reducePeerConnectionSuccess(s, a)
	case action.PeerConnectionError:
		reducePeerConnectionError(s, a)
	case action.PeerDisconnect:
		reducePeerDisconnect(s, a)
	case action.PeerDisconnected:
		reducePeerDisconnected(s, a)

	case action.PeerHandshakeInit:
		reducePeerHandshakeInit(s, a)
	case action.PeerConnectionMessageWriteInit:
		reduceHandshakePhaseInit(s, a.Address, state.HandshakePhaseConnectionMessageWrite)
	case action.PeerConnectionMessageWritePending:
		reduceHandshakePending(s, a.Address, state.HandshakePhaseConnectionMessageWrite, a.BytesWritten)
	case action.PeerConnectionMessageWriteSuccess:
		reduceHandshakeStepSuccess(s, a.Address, state.HandshakePhaseConnectionMessageWrite)
	case action.PeerConnectionMessageWriteError:
		reduceHandshakeStepError(s, a.Address, a.Error)
	case action.PeerConnectionMessageReadInit:
		reduceHandshakePhaseInit(s, a.Address, state.HandshakePhaseConnectionMessageRead)
	case action.PeerConnectionMessageReadPending:
		reduceHandshakePending(s, a.Address, state.HandshakePhaseConnectionMessageRead, a.BytesRead)
	case action.PeerConnectionMessageReadSuccess:
		reducePeerConnectionMessageReadSuccess(s, a)
	case action.PeerConnectionMessageReadError:
		reduceHandshakeStepError(s, a.Address, a.Error)

	case action.PeerMetadataMessageWriteInit:
		reduceHandshakePhaseInit(s, a.Address, state.HandshakePhaseMetadataMessageWrite)
	case action.PeerMetadataMessageWritePending:
		reduceHandshakePending(s, a.Address, state.HandshakePhaseMetadataMessageWrite, a.BytesWritten)
	case action.PeerMetadataMessageWriteSuccess:
		reduceHandshakeStepSuccess(s, a.Address, state.HandshakePhaseMetadataMessageWrite)
	case action.PeerMetadataMessageWriteError:
		reduceHandshakeStepError(s, a.Address, a.Error)
	case action.PeerMetadataMessageReadInit:
		reduceHandshakePhaseInit(s, a.Address, state.HandshakePhaseMetadataMessageRead)
	case action.PeerMetadataMessageReadPending:
		reduceHandshakePending(s, a.Address, state.HandshakePhaseMetadataMessageRead, a.BytesRead)
	case action.PeerMetadataMessageReadSuccess:
		reducePeerMetadataMessageReadSuccess(s, a)
	case action.PeerMetadataMessageReadError:
		reduceHandshakeStepError(s, a.Address, a.Error)

	case action.PeerAckMessageWriteInit:
		reduceHandshakePhaseInit(s, a.Address, state.HandshakePhaseAckMessageWrite)
	case action.PeerAckMessageWritePending:
		reduceHandshakePending(s, a.Address, state.HandshakePhaseAckMessageWrite, a.BytesWritten)
	case action.PeerAckMessageWriteSuccess:
		reduceHandshakeStepSuccess(s, a.Address, state.HandshakePhaseAckMessageWrite)
	case action.PeerAckMessageWriteError:
		reduceHandshakeStepError(s, a.Address, a.Error)
	case action.PeerAckMessageReadInit:
		reduceHandshakePhaseInit(s, a.Address, state.HandshakePhaseAckMessageRead)
	case action.PeerAckMessageReadPending:
		reduceHandshakePending(s, a.Address, state.HandshakePhaseAckMessageRead, a.BytesRead)
	case action.PeerAckMessageReadSuccess:
		reduceHandshakeStepSuccess(s, a.Address, state.HandshakePhaseAckMessageRead)
	case action.PeerAckMessageReadError:
		reduceHandshakeStepError(s, a.Address, a.Error)

	case action.PeerHandshakeSuccess:
		reducePeerHandshakeSuccess(s, a)
	case action.PeerHandshakeError:
		reducePeerHandshakeError(s, a)

	case action.StorageBlockHeadersPut:
		reduceStorageBlockHeadersPut(s, a)
	case action.StorageBlockHeaderPutNextInit:
		reduceStorageBlockHeaderPutNextInit(s)
	case action.StorageBlockHeaderPutNextPending:
		reduceStorageBlockHeaderPutNextPending(s, a)
	case action.StorageRequestPending:
		reduceStorageRequestPending(s, a)
	case action.StorageRequestSuccess:
		reduceStorageRequestSuccess(s, a)
	case action.StorageRequestError:
		reduceStorageRequestError(s, a)
	case action.StorageRequestFinish:
		reduceStorageRequestFinish(s, a)
	case action.StorageStateSnapshotCreate:
		reduceStorageStateSnapshotCreate(s, a)

	case action.PeersRemove:
		reducePeersRemove(s, a)

		// P2pPeerEvent, PeerTryRead/PeerTryWrite, StorageRequestInit,
		// WakeupEvent and TickEvent carry no state transition of their own;
		// they exist for the effects layer.
	}
	return s
}
