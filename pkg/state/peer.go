package state

// Status is the top-level tag of a Peer's lifecycle. Go has no sum types,
// so the convention used throughout this package is: a Status enum plus
// one sub-status enum per Status that has internal phases, with the
// fields only that sub-status needs. Code must switch on Status (and, for
// Connecting/Handshaking, the matching sub-status) before reading any
// status-specific field; reading a field that doesn't belong to the
// current status is a reducer bug, not a possible runtime state.
type Status int

const (
	// StatusPotential is a known address not currently being dialed.
	StatusPotential Status = iota
	// StatusConnecting covers dial-in-progress through dial result.
	StatusConnecting
	// StatusHandshaking covers the three-message handshake exchange.
	StatusHandshaking
	// StatusHandshaked is steady state: handshake complete.
	StatusHandshaked
	// StatusDisconnecting is teardown in progress.
	StatusDisconnecting
	// StatusDisconnected is terminal; PeersRemove deletes the entry.
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusPotential:
		return "Potential"
	case StatusConnecting:
		return "Connecting"
	case StatusHandshaking:
		return "Handshaking"
	case StatusHandshaked:
		return "Handshaked"
	case StatusDisconnecting:
		return "Disconnecting"
	case StatusDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// ConnectingSubStatus is the sub-status of a Peer in StatusConnecting.
type ConnectingSubStatus int

const (
	ConnectingIdle ConnectingSubStatus = iota
	ConnectingPending
	ConnectingSuccess
	ConnectingError
)

// HandshakePhase is the strictly ordered progression of a handshaking
// peer. Exactly one phase is active at a time: each message is fully
// written before its counterpart is read, and each exchange completes
// before the next message starts. A phase only advances when the current
// one has reached HandshakeStepSuccess.
type HandshakePhase int

const (
	HandshakePhaseInit HandshakePhase = iota
	HandshakePhaseConnectionMessageWrite
	HandshakePhaseConnectionMessageRead
	HandshakePhaseMetadataMessageWrite
	HandshakePhaseMetadataMessageRead
	HandshakePhaseAckMessageWrite
	HandshakePhaseAckMessageRead
)

func (p HandshakePhase) String() string {
	switch p {
	case HandshakePhaseInit:
		return "Init"
	case HandshakePhaseConnectionMessageWrite:
		return "ConnectionMessageWrite"
	case HandshakePhaseConnectionMessageRead:
		return "ConnectionMessageRead"
	case HandshakePhaseMetadataMessageWrite:
		return "MetadataMessageWrite"
	case HandshakePhaseMetadataMessageRead:
		return "MetadataMessageRead"
	case HandshakePhaseAckMessageWrite:
		return "AckMessageWrite"
	case HandshakePhaseAckMessageRead:
		return "AckMessageRead"
	default:
		return "Unknown"
	}
}

// IsWrite reports whether p is one of the three outbound phases.
func (p HandshakePhase) IsWrite() bool {
	switch p {
	case HandshakePhaseConnectionMessageWrite, HandshakePhaseMetadataMessageWrite, HandshakePhaseAckMessageWrite:
		return true
	}
	return false
}

// IsRead reports whether p is one of the three inbound phases.
func (p HandshakePhase) IsRead() bool {
	switch p {
	case HandshakePhaseConnectionMessageRead, HandshakePhaseMetadataMessageRead, HandshakePhaseAckMessageRead:
		return true
	}
	return false
}

// HandshakeStepStatus is the sub-status of the currently active phase.
// HandshakeBytesDone on the Peer accumulates a Pending step's progress
// from the partial read/write actions.
type HandshakeStepStatus int

const (
	HandshakeStepIdle HandshakeStepStatus = iota
	HandshakeStepPending
	HandshakeStepSuccess
	HandshakeStepError
)

// Peer is one entry in State.Peers, keyed by address. Only the fields
// belonging to the current Status (and, where applicable, sub-status) are
// meaningful; the rest are zero-valued leftovers from earlier phases kept
// around for introspection/debugging, never read by the reducer.
type Peer struct {
	Address string `json:"address"`

	Status Status `json:"status"`

	// Token is the reactor's identifier for this peer's registered
	// socket, valid from PeerConnectionSuccess until PeerDisconnected.
	Token    uint64 `json:"token,omitempty"`
	HasToken bool   `json:"has_token"`

	// StatusConnecting fields.
	ConnectingSubStatus ConnectingSubStatus `json:"connecting_sub_status,omitempty"`
	ConnectingError     string              `json:"connecting_error,omitempty"`

	// StatusHandshaking fields.
	HandshakePhase     HandshakePhase      `json:"handshake_phase,omitempty"`
	HandshakeStep      HandshakeStepStatus `json:"handshake_step,omitempty"`
	HandshakeBytesDone int                 `json:"handshake_bytes_done,omitempty"`
	HandshakeError     string              `json:"handshake_error,omitempty"`
	SessionKey         Key                 `json:"session_key,omitempty"`
	PeerPublicKey      Key                 `json:"peer_public_key,omitempty"`

	// StatusHandshaked fields, accumulated during the handshake.
	PeerPort       uint16 `json:"peer_port,omitempty"`
	PeerVersion    string `json:"peer_version,omitempty"`
	DisableMempool bool   `json:"disable_mempool,omitempty"`
	PrivateNode    bool   `json:"private_node,omitempty"`

	// StatusDisconnecting fields.
	DisconnectReason string `json:"disconnect_reason,omitempty"`
}

// NewPotentialPeer returns a fresh Peer in StatusPotential for address.
func NewPotentialPeer(address string) *Peer {
	return &Peer{Address: address, Status: StatusPotential}
}
