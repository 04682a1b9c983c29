package reducer

import (
	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/state"
)

func reducePeerConnectionInit(s *state.State, a action.PeerConnectionInit) {
	p, ok := s.Peers[a.Address]
	if !ok {
		p = state.NewPotentialPeer(a.Address)
		s.Peers[a.Address] = p
	}
	if p.Status != state.StatusPotential {
		return
	}
	p.Status = state.StatusConnecting
	p.ConnectingSubStatus = state.ConnectingIdle
}

func reducePeerConnectionPending(s *state.State, a action.PeerConnectionPending) {
	p, ok := s.Peers[a.Address]
	if !ok || p.Status != state.StatusConnecting || p.ConnectingSubStatus != state.ConnectingIdle {
		return
	}
	p.ConnectingSubStatus = state.ConnectingPending
}

func reducePeerConnectionSuccess(s *state.State, a action.PeerConnectionSuccess) {
	p, ok := s.Peers[a.Address]
	if !ok || p.Status != state.StatusConnecting || p.ConnectingSubStatus != state.ConnectingPending {
		return
	}
	p.ConnectingSubStatus = state.ConnectingSuccess
	p.Token = a.Token
	p.HasToken = true
}

func reducePeerConnectionError(s *state.State, a action.PeerConnectionError) {
	p, ok := s.Peers[a.Address]
	if !ok || p.Status != state.StatusConnecting || p.ConnectingSubStatus != state.ConnectingPending {
		return
	}
	p.ConnectingSubStatus = state.ConnectingError
	p.ConnectingError = a.Error
}

func reducePeerDisconnect(s *state.State, a action.PeerDisconnect) {
	p, ok := s.Peers[a.Address]
	if !ok || p.Status == state.StatusDisconnecting || p.Status == state.StatusDisconnected {
		return
	}
	p.Status = state.StatusDisconnecting
	p.DisconnectReason = a.Reason
}

// reducePeerDisconnected releases the peer's token: this is the only
// transition that clears HasToken, so a token is registered at most once
// and released exactly once per connection.
func reducePeerDisconnected(s *state.State, a action.PeerDisconnected) {
	p, ok := s.Peers[a.Address]
	if !ok || p.Status != state.StatusDisconnecting {
		return
	}
	p.Status = state.StatusDisconnected
	p.Token = 0
	p.HasToken = false
}

// reducePeersRemove is the only transition that deletes a Peers entry,
// and it only fires on an already-Disconnected peer.
func reducePeersRemove(s *state.State, a action.PeersRemove) {
	p, ok := s.Peers[a.Address]
	if !ok || p.Status != state.StatusDisconnected {
		return
	}
	delete(s.Peers, a.Address)
}
