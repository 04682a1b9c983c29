// Package action defines the closed set of events that drive the node's
// state machine. Every state transition in this program happens because an
// Action was dispatched; nothing mutates state any other way.
package action

import "time"

// ID uniquely identifies a dispatched action within a run. IDs are assigned
// in strictly increasing order by the store at dispatch time and never
// reused, which is what makes the action log replayable.
type ID uint64

// Kind names an action's concrete type for logging, journaling and the
// introspection endpoints, where carrying the full Go type around isn't
// convenient.
type Kind string

const (
	KindPeersDNSLookupInit    Kind = "PeersDnsLookupInit"
	KindPeersDNSLookupSuccess Kind = "PeersDnsLookupSuccess"
	KindPeersDNSLookupError   Kind = "PeersDnsLookupError"
	KindPeersDNSLookupFinish  Kind = "PeersDnsLookupFinish"

	KindPeerConnectionInit    Kind = "PeerConnectionInit"
	KindPeerConnectionPending Kind = "PeerConnectionPending"
	KindPeerConnectionSuccess Kind = "PeerConnectionSuccess"
	KindPeerConnectionError   Kind = "PeerConnectionError"

	KindPeerHandshakeInit                 Kind = "PeerHandshakeInit"
	KindPeerConnectionMessageWriteInit    Kind = "PeerConnectionMessageWriteInit"
	KindPeerConnectionMessageWritePending Kind = "PeerConnectionMessageWritePending"
	KindPeerConnectionMessageWriteSuccess Kind = "PeerConnectionMessageWriteSuccess"
	KindPeerConnectionMessageWriteError   Kind = "PeerConnectionMessageWriteError"
	KindPeerConnectionMessageReadInit     Kind = "PeerConnectionMessageReadInit"
	KindPeerConnectionMessageReadPending  Kind = "PeerConnectionMessageReadPending"
	KindPeerConnectionMessageReadSuccess  Kind = "PeerConnectionMessageReadSuccess"
	KindPeerConnectionMessageReadError    Kind = "PeerConnectionMessageReadError"
	KindPeerMetadataMessageWriteInit      Kind = "PeerMetadataMessageWriteInit"
	KindPeerMetadataMessageWritePending   Kind = "PeerMetadataMessageWritePending"
	KindPeerMetadataMessageWriteSuccess   Kind = "PeerMetadataMessageWriteSuccess"
	KindPeerMetadataMessageWriteError     Kind = "PeerMetadataMessageWriteError"
	KindPeerMetadataMessageReadInit       Kind = "PeerMetadataMessageReadInit"
	KindPeerMetadataMessageReadPending    Kind = "PeerMetadataMessageReadPending"
	KindPeerMetadataMessageReadSuccess    Kind = "PeerMetadataMessageReadSuccess"
	KindPeerMetadataMessageReadError      Kind = "PeerMetadataMessageReadError"
	KindPeerAckMessageWriteInit           Kind = "PeerAckMessageWriteInit"
	KindPeerAckMessageWritePending        Kind = "PeerAckMessageWritePending"
	KindPeerAckMessageWriteSuccess        Kind = "PeerAckMessageWriteSuccess"
	KindPeerAckMessageWriteError          Kind = "PeerAckMessageWriteError"
	KindPeerAckMessageReadInit            Kind = "PeerAckMessageReadInit"
	KindPeerAckMessageReadPending         Kind = "PeerAckMessageReadPending"
	KindPeerAckMessageReadSuccess         Kind = "PeerAckMessageReadSuccess"
	KindPeerAckMessageReadError           Kind = "PeerAckMessageReadError"
	KindPeerHandshakeSuccess              Kind = "PeerHandshakeSuccess"
	KindPeerHandshakeError                Kind = "PeerHandshakeError"

	KindPeerDisconnect   Kind = "PeerDisconnect"
	KindPeerDisconnected Kind = "PeerDisconnected"
	KindPeersRemove      Kind = "PeersRemove"

	KindPeerTryRead  Kind = "PeerTryRead"
	KindPeerTryWrite Kind = "PeerTryWrite"

	KindP2pPeerEvent   Kind = "P2pPeerEvent"
	KindP2pServerEvent Kind = "P2pServerEvent"
	KindWakeupEvent    Kind = "WakeupEvent"
	KindTickEvent      Kind = "TickEvent"

	KindStorageBlockHeadersPut           Kind = "StorageBlockHeadersPut"
	KindStorageBlockHeaderPutNextInit    Kind = "StorageBlockHeaderPutNextInit"
	KindStorageBlockHeaderPutNextPending Kind = "StorageBlockHeaderPutNextPending"
	KindStorageRequestInit               Kind = "StorageRequestInit"
	KindStorageRequestPending            Kind = "StorageRequestPending"
	KindStorageRequestSuccess            Kind = "StorageRequestSuccess"
	KindStorageRequestError              Kind = "StorageRequestError"
	KindStorageRequestFinish             Kind = "StorageRequestFinish"
	KindStorageStateSnapshotCreate       Kind = "StorageStateSnapshotCreate"
)

// Action is the interface every concrete action type implements. Kind
// identifies the concrete type without a type switch at every call site
// that just wants to log or journal it.
type Action interface {
	Kind() Kind
}

// Envelope pairs a dispatched Action with the bookkeeping the store
// attaches to it: a monotonically increasing ID and the wall-clock time it
// was dispatched, both of which are recorded in the action journal. Replay
// does not use the recorded time: the reducer never reads it.
type Envelope struct {
	ID     ID
	Time   time.Time
	Action Action
}
