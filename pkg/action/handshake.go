package action

// PeerHandshakeInit moves a Connecting{Success} peer into Handshaking and
// kicks off the connection-message exchange.
type PeerHandshakeInit struct {
	Address string `json:"address"`
}

func (PeerHandshakeInit) Kind() Kind { return KindPeerHandshakeInit }

// The ConnectionMessage, MetadataMessage and AckMessage triples below all
// follow the same shape per direction: Init stages the message on the
// transport, Pending reports partial progress in bytes, Success reports
// the complete message written/read, Error aborts the handshake. Only the
// Success payloads differ per phase.

type PeerConnectionMessageWriteInit struct {
	Address string `json:"address"`
}

func (PeerConnectionMessageWriteInit) Kind() Kind { return KindPeerConnectionMessageWriteInit }

type PeerConnectionMessageWritePending struct {
	Address      string `json:"address"`
	BytesWritten int    `json:"bytes_written"`
}

func (PeerConnectionMessageWritePending) Kind() Kind {
	return KindPeerConnectionMessageWritePending
}

type PeerConnectionMessageWriteSuccess struct {
	Address string `json:"address"`
}

func (PeerConnectionMessageWriteSuccess) Kind() Kind {
	return KindPeerConnectionMessageWriteSuccess
}

type PeerConnectionMessageWriteError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerConnectionMessageWriteError) Kind() Kind { return KindPeerConnectionMessageWriteError }

type PeerConnectionMessageReadInit struct {
	Address string `json:"address"`
}

func (PeerConnectionMessageReadInit) Kind() Kind { return KindPeerConnectionMessageReadInit }

type PeerConnectionMessageReadPending struct {
	Address   string `json:"address"`
	BytesRead int    `json:"bytes_read"`
}

func (PeerConnectionMessageReadPending) Kind() Kind {
	return KindPeerConnectionMessageReadPending
}

// PeerConnectionMessageReadSuccess carries what the transport learned
// from the peer's connection message: its public key and listening port,
// plus the session key derived from that key and ours. The reducer copies
// these onto the peer so later phases (and the Handshaked record) have
// them.
type PeerConnectionMessageReadSuccess struct {
	Address       string `json:"address"`
	PeerPublicKey []byte `json:"peer_public_key"`
	PeerPort      uint16 `json:"peer_port"`
	SessionKey    []byte `json:"session_key"`
}

func (PeerConnectionMessageReadSuccess) Kind() Kind {
	return KindPeerConnectionMessageReadSuccess
}

type PeerConnectionMessageReadError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerConnectionMessageReadError) Kind() Kind { return KindPeerConnectionMessageReadError }

type PeerMetadataMessageWriteInit struct {
	Address string `json:"address"`
}

func (PeerMetadataMessageWriteInit) Kind() Kind { return KindPeerMetadataMessageWriteInit }

type PeerMetadataMessageWritePending struct {
	Address      string `json:"address"`
	BytesWritten int    `json:"bytes_written"`
}

func (PeerMetadataMessageWritePending) Kind() Kind { return KindPeerMetadataMessageWritePending }

type PeerMetadataMessageWriteSuccess struct {
	Address string `json:"address"`
}

func (PeerMetadataMessageWriteSuccess) Kind() Kind { return KindPeerMetadataMessageWriteSuccess }

type PeerMetadataMessageWriteError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerMetadataMessageWriteError) Kind() Kind { return KindPeerMetadataMessageWriteError }

type PeerMetadataMessageReadInit struct {
	Address string `json:"address"`
}

func (PeerMetadataMessageReadInit) Kind() Kind { return KindPeerMetadataMessageReadInit }

type PeerMetadataMessageReadPending struct {
	Address   string `json:"address"`
	BytesRead int    `json:"bytes_read"`
}

func (PeerMetadataMessageReadPending) Kind() Kind { return KindPeerMetadataMessageReadPending }

// PeerMetadataMessageReadSuccess carries the peer's negotiated version
// string and the flags it advertised.
type PeerMetadataMessageReadSuccess struct {
	Address        string `json:"address"`
	Version        string `json:"version"`
	DisableMempool bool   `json:"disable_mempool,omitempty"`
	PrivateNode    bool   `json:"private_node,omitempty"`
}

func (PeerMetadataMessageReadSuccess) Kind() Kind { return KindPeerMetadataMessageReadSuccess }

type PeerMetadataMessageReadError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerMetadataMessageReadError) Kind() Kind { return KindPeerMetadataMessageReadError }

type PeerAckMessageWriteInit struct {
	Address string `json:"address"`
}

func (PeerAckMessageWriteInit) Kind() Kind { return KindPeerAckMessageWriteInit }

type PeerAckMessageWritePending struct {
	Address      string `json:"address"`
	BytesWritten int    `json:"bytes_written"`
}

func (PeerAckMessageWritePending) Kind() Kind { return KindPeerAckMessageWritePending }

type PeerAckMessageWriteSuccess struct {
	Address string `json:"address"`
}

func (PeerAckMessageWriteSuccess) Kind() Kind { return KindPeerAckMessageWriteSuccess }

type PeerAckMessageWriteError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerAckMessageWriteError) Kind() Kind { return KindPeerAckMessageWriteError }

type PeerAckMessageReadInit struct {
	Address string `json:"address"`
}

func (PeerAckMessageReadInit) Kind() Kind { return KindPeerAckMessageReadInit }

type PeerAckMessageReadPending struct {
	Address   string `json:"address"`
	BytesRead int    `json:"bytes_read"`
}

func (PeerAckMessageReadPending) Kind() Kind { return KindPeerAckMessageReadPending }

type PeerAckMessageReadSuccess struct {
	Address string `json:"address"`
}

func (PeerAckMessageReadSuccess) Kind() Kind { return KindPeerAckMessageReadSuccess }

type PeerAckMessageReadError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerAckMessageReadError) Kind() Kind { return KindPeerAckMessageReadError }

// PeerHandshakeSuccess moves the peer to Handshaked.
type PeerHandshakeSuccess struct {
	Address string `json:"address"`
}

func (PeerHandshakeSuccess) Kind() Kind { return KindPeerHandshakeSuccess }

// PeerHandshakeError aborts the handshake; the effect that observes this
// follows up with a PeerDisconnect.
type PeerHandshakeError struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

func (PeerHandshakeError) Kind() Kind { return KindPeerHandshakeError }
