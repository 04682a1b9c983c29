package reducer

import (
	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/state"
)

// reduceDNSLookupInit starts a lookup descriptor, unless one is already in
// progress: this guard is the whole enforcement of "at most one
// in-progress DNS lookup". A failed lookup counts as no longer in
// progress, so discovery can be retried without a Finish in between.
func reduceDNSLookupInit(s *state.State, a action.PeersDNSLookupInit) {
	if s.DNSLookup != nil && !s.DNSLookup.Finished && s.DNSLookup.Error == "" {
		return
	}
	s.DNSLookup = &state.DNSLookupState{Address: a.Address}
}

func reduceDNSLookupSuccess(s *state.State, a action.PeersDNSLookupSuccess) {
	if s.DNSLookup == nil {
		return
	}
	s.DNSLookup.Addresses = a.Addresses
}

func reduceDNSLookupError(s *state.State, a action.PeersDNSLookupError) {
	if s.DNSLookup == nil {
		return
	}
	s.DNSLookup.Error = a.Error
}

func reduceDNSLookupFinish(s *state.State, _ action.PeersDNSLookupFinish) {
	if s.DNSLookup == nil {
		return
	}
	s.DNSLookup.Finished = true
	for _, addr := range s.DNSLookup.Addresses {
		if _, ok := s.Peers[addr]; !ok {
			s.Peers[addr] = state.NewPotentialPeer(addr)
		}
	}
}
