package action

// P2pPeerEvent is the raw readiness notification for one registered peer
// socket, translated from the reactor by the engine. The effects layer
// turns it into PeerTryRead/PeerTryWrite (or a connect completion, or a
// disconnect when the socket closed) depending on the peer's state.
type P2pPeerEvent struct {
	Token      uint64 `json:"token"`
	Address    string `json:"address"`
	IsReadable bool   `json:"is_readable,omitempty"`
	IsWritable bool   `json:"is_writable,omitempty"`
	IsClosed   bool   `json:"is_closed,omitempty"`
}

func (P2pPeerEvent) Kind() Kind { return KindP2pPeerEvent }

// P2pServerEvent names readiness on the listening socket. The engine does
// not dispatch it: a separate accept goroutine drains the listener.
type P2pServerEvent struct{}

func (P2pServerEvent) Kind() Kind { return KindP2pServerEvent }

// PeerTryRead asks the read-side effect to pull whatever bytes the
// peer's socket currently has, feeding the chunked read state machine.
type PeerTryRead struct {
	Address string `json:"address"`
}

func (PeerTryRead) Kind() Kind { return KindPeerTryRead }

// PeerTryWrite is the write-side counterpart of PeerTryRead: flush as
// much of the pending chunk as the socket accepts right now.
type PeerTryWrite struct {
	Address string `json:"address"`
}

func (PeerTryWrite) Kind() Kind { return KindPeerTryWrite }

// WakeupEvent is dispatched when the reactor's WAKE token fires, meaning a
// background worker (storage) has results ready on its response channel.
type WakeupEvent struct{}

func (WakeupEvent) Kind() Kind { return KindWakeupEvent }

// TickEvent is dispatched on every reactor poll timeout; its effect re-runs
// DNS discovery when the node is below MinPeers. Dial timeouts are enforced
// by the dialer itself, not by ticks.
type TickEvent struct{}

func (TickEvent) Kind() Kind { return KindTickEvent }
