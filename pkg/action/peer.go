package action

// PeerConnectionInit asks the connection effect to start dialing address.
// The reducer moves the peer from Potential to Connecting{Idle}.
type PeerConnectionInit struct {
	Address string `json:"address"`
}

func (PeerConnectionInit) Kind() Kind { return KindPeerConnectionInit }

// PeerConnectionPending reports that the dial has been issued and has not
// yet completed (Connecting{Idle} -> Connecting{Pending}).
type PeerConnectionPending struct {
	Address string `json:"address"`
}

func (PeerConnectionPending) Kind() Kind { return KindPeerConnectionPending }

// PeerConnectionSuccess reports that the TCP connection completed and its
// socket is registered with the reactor under Token (Connecting{Pending}
// -> Connecting{Success}).
type PeerConnectionSuccess struct {
	Address string `json:"address"`
	Token   uint64 `json:"token"`
}

func (PeerConnectionSuccess) Kind() Kind { return KindPeerConnectionSuccess }

// PeerConnectionError reports a dial failure (Connecting{Pending} ->
// Connecting{Error}).
type PeerConnectionError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerConnectionError) Kind() Kind { return KindPeerConnectionError }

// PeerDisconnect requests the peer be torn down (any live state ->
// Disconnecting).
type PeerDisconnect struct {
	Address string `json:"address"`
	Reason  string `json:"reason,omitempty"`
}

func (PeerDisconnect) Kind() Kind { return KindPeerDisconnect }

// PeerDisconnected confirms teardown completed and the token has been
// released (Disconnecting -> Disconnected).
type PeerDisconnected struct {
	Address string `json:"address"`
}

func (PeerDisconnected) Kind() Kind { return KindPeerDisconnected }

// PeersRemove drops a Disconnected peer from State.Peers entirely. It is
// the only action that deletes a peers-map entry.
type PeersRemove struct {
	Address string `json:"address"`
}

func (PeersRemove) Kind() Kind { return KindPeersRemove }
