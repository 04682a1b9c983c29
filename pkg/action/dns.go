package action

// PeersDNSLookupInit starts resolution of the configured DNS seed. The
// reducer treats it as a no-op when a lookup is already in progress, which
// is what keeps at most one lookup descriptor in State at a time.
type PeersDNSLookupInit struct {
	Address string `json:"address"`
}

func (PeersDNSLookupInit) Kind() Kind { return KindPeersDNSLookupInit }

// PeersDNSLookupSuccess carries the resolved addresses back into the
// reducer.
type PeersDNSLookupSuccess struct {
	Addresses []string `json:"addresses"`
}

func (PeersDNSLookupSuccess) Kind() Kind { return KindPeersDNSLookupSuccess }

// PeersDNSLookupError reports a failed resolution.
type PeersDNSLookupError struct {
	Error string `json:"error"`
}

func (PeersDNSLookupError) Kind() Kind { return KindPeersDNSLookupError }

// PeersDNSLookupFinish closes out a successful lookup, turning the resolved
// addresses into Potential peers, and is where the effects layer picks a
// Potential peer to dial via the randomness service. A failed lookup keeps
// its error on the descriptor and is not finished.
type PeersDNSLookupFinish struct{}

func (PeersDNSLookupFinish) Kind() Kind { return KindPeersDNSLookupFinish }
