package reducer

import (
	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/state"
)

func reducePeerHandshakeInit(s *state.State, a action.PeerHandshakeInit) {
	p, ok := s.Peers[a.Address]
	if !ok || p.Status != state.StatusConnecting || p.ConnectingSubStatus != state.ConnectingSuccess {
		return
	}
	p.Status = state.StatusHandshaking
	p.HandshakePhase = state.HandshakePhaseInit
	p.HandshakeStep = state.HandshakeStepIdle
	p.HandshakeBytesDone = 0
}

func handshakingPeer(s *state.State, address string) *state.Peer {
	p, ok := s.Peers[address]
	if !ok || p.Status != state.StatusHandshaking {
		return nil
	}
	return p
}

// phaseBefore names the phase that must have completed for target to
// start. The ordering is strict: every message is fully written before
// its counterpart is read, and every exchange completes before the next
// message begins.
func phaseBefore(target state.HandshakePhase) state.HandshakePhase {
	switch target {
	case state.HandshakePhaseConnectionMessageWrite:
		return state.HandshakePhaseInit
	case state.HandshakePhaseConnectionMessageRead:
		return state.HandshakePhaseConnectionMessageWrite
	case state.HandshakePhaseMetadataMessageWrite:
		return state.HandshakePhaseConnectionMessageRead
	case state.HandshakePhaseMetadataMessageRead:
		return state.HandshakePhaseMetadataMessageWrite
	case state.HandshakePhaseAckMessageWrite:
		return state.HandshakePhaseMetadataMessageRead
	case state.HandshakePhaseAckMessageRead:
		return state.HandshakePhaseAckMessageWrite
	default:
		return state.HandshakePhaseInit
	}
}

// reduceHandshakePhaseInit advances the peer into target, provided the
// preceding phase just completed (Init needs no completed step). This is
// the only transition that moves HandshakePhase forward, so a write and
// its read can never be in progress at the same time.
func reduceHandshakePhaseInit(s *state.State, address string, target state.HandshakePhase) {
	p := handshakingPeer(s, address)
	if p == nil || p.HandshakePhase != phaseBefore(target) {
		return
	}
	if p.HandshakePhase != state.HandshakePhaseInit && p.HandshakeStep != state.HandshakeStepSuccess {
		return
	}
	p.HandshakePhase = target
	p.HandshakeStep = state.HandshakeStepIdle
	p.HandshakeBytesDone = 0
}

func reduceHandshakePending(s *state.State, address string, phase state.HandshakePhase, n int) {
	p := handshakingPeer(s, address)
	if p == nil || p.HandshakePhase != phase {
		return
	}
	if p.HandshakeStep != state.HandshakeStepIdle && p.HandshakeStep != state.HandshakeStepPending {
		return
	}
	p.HandshakeStep = state.HandshakeStepPending
	p.HandshakeBytesDone += n
}

func reduceHandshakeStepSuccess(s *state.State, address string, phase state.HandshakePhase) {
	p := handshakingPeer(s, address)
	if p == nil || p.HandshakePhase != phase || p.HandshakeStep == state.HandshakeStepError {
		return
	}
	p.HandshakeStep = state.HandshakeStepSuccess
}

func reduceHandshakeStepError(s *state.State, address, errMsg string) {
	p := handshakingPeer(s, address)
	if p == nil {
		return
	}
	p.HandshakeStep = state.HandshakeStepError
	p.HandshakeError = errMsg
}

// reducePeerConnectionMessageReadSuccess records what the connection
// message exchange yielded: the peer's identity, its listening port and
// the derived session key every later chunk is encrypted under.
func reducePeerConnectionMessageReadSuccess(s *state.State, a action.PeerConnectionMessageReadSuccess) {
	p := handshakingPeer(s, a.Address)
	if p == nil || p.HandshakePhase != state.HandshakePhaseConnectionMessageRead {
		return
	}
	if p.HandshakeStep == state.HandshakeStepError {
		return
	}
	p.PeerPublicKey = a.PeerPublicKey
	p.PeerPort = a.PeerPort
	p.SessionKey = a.SessionKey
	p.HandshakeStep = state.HandshakeStepSuccess
}

func reducePeerMetadataMessageReadSuccess(s *state.State, a action.PeerMetadataMessageReadSuccess) {
	p := handshakingPeer(s, a.Address)
	if p == nil || p.HandshakePhase != state.HandshakePhaseMetadataMessageRead {
		return
	}
	if p.HandshakeStep == state.HandshakeStepError {
		return
	}
	p.PeerVersion = a.Version
	p.DisableMempool = a.DisableMempool
	p.PrivateNode = a.PrivateNode
	p.HandshakeStep = state.HandshakeStepSuccess
}

// reducePeerHandshakeSuccess is terminal for the handshake: it only
// applies once the final phase (the ack read) has succeeded.
func reducePeerHandshakeSuccess(s *state.State, a action.PeerHandshakeSuccess) {
	p := handshakingPeer(s, a.Address)
	if p == nil || p.HandshakePhase != state.HandshakePhaseAckMessageRead || p.HandshakeStep != state.HandshakeStepSuccess {
		return
	}
	p.Status = state.StatusHandshaked
}

func reducePeerHandshakeError(s *state.State, a action.PeerHandshakeError) {
	p := handshakingPeer(s, a.Address)
	if p == nil {
		return
	}
	p.HandshakeError = a.Error
}
