// Package state holds the root State tree, the Peer tagged union and the
// runtime Config the reducer and effects operate over. Nothing in this
// package mutates itself; every transition lives in pkg/reducer.
//
// Everything here is plain serializable data: State marshals to
// self-describing JSON and unmarshals back to an equivalent value, which
// is what the snapshot/replay machinery and the introspection server's
// /state endpoint are built on.
package state

import (
	"encoding/json"
	"time"

	"github.com/mr-tron/base58"

	"github.com/driftnode/driftnode/pkg/request"
)

// Key is a public key, session key or similar opaque byte string. It
// renders as base58 in logs and JSON instead of base64, matching how
// addresses and keys are displayed everywhere else in this node.
type Key []byte

// String implements fmt.Stringer.
func (k Key) String() string {
	return base58.Encode(k)
}

// MarshalJSON encodes k as a base58 string.
func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(base58.Encode(k))
}

// UnmarshalJSON decodes a base58 string into k.
func (k *Key) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*k = nil
		return nil
	}
	b, err := base58.Decode(s)
	if err != nil {
		return err
	}
	*k = b
	return nil
}

// Identity is this node's own keys and handshake stamp, immutable after
// startup.
type Identity struct {
	PublicKey   Key    `json:"public_key"`
	SecretKey   Key    `json:"-"`
	ProofOfWork Key    `json:"proof_of_work"`
	Version     string `json:"version"`
}

// Config is the subset of runtime configuration the reducer and effects
// consult directly (as opposed to config.Config, which also carries
// logging/storage-path settings only cmd/node needs at startup).
type Config struct {
	ListenPort       uint16        `json:"listen_port"`
	DNSSeedAddress   string        `json:"dns_seed_address"`
	MaxPeers         int           `json:"max_peers"`
	MinPeers         int           `json:"min_peers"`
	AttemptConnPeers int           `json:"attempt_conn_peers"`
	DialTimeout      time.Duration `json:"dial_timeout"`
	PingInterval     time.Duration `json:"ping_interval"`
	PingTimeout      time.Duration `json:"ping_timeout"`
	SnapshotInterval uint64        `json:"snapshot_interval"`
	PrivateNode      bool          `json:"private_node"`
	DisableMempool   bool          `json:"disable_mempool"`
	Identity         Identity      `json:"identity"`
}

// State is the single root of truth this program's reducer mutates. It is
// plain data: no mutexes, no channels, no file handles. Everything that
// touches the outside world lives in effects, which read State to decide
// what to do and only ever communicate results back in through dispatched
// actions.
type State struct {
	Config Config `json:"config"`

	DNSLookup *DNSLookupState `json:"dns_lookup,omitempty"`

	Peers map[string]*Peer `json:"peers"`

	Storage Storage `json:"storage"`

	LastActionID     uint64 `json:"last_action_id"`
	LastSnapshotAtID uint64 `json:"last_snapshot_at_id"`
}

// New returns a freshly initialized State for cfg.
func New(cfg Config) *State {
	return &State{
		Config: cfg,
		Peers:  make(map[string]*Peer),
		Storage: Storage{
			Requests: request.New(),
		},
	}
}

// DNSLookupState describes the single in-flight (or just-finished) DNS
// lookup descriptor. The reducer enforces "at most one in-progress lookup"
// by refusing a new lookup while a descriptor is present, not Finished and
// without an Error.
type DNSLookupState struct {
	Address   string   `json:"address"`
	Addresses []string `json:"addresses,omitempty"`
	Error     string   `json:"error,omitempty"`
	Finished  bool     `json:"finished"`
}

// BlockHeader is the minimal header payload this node persists: enough
// bytes to identify and re-serve a header without this package knowing
// the wire format chain validation would use.
type BlockHeader struct {
	Hash       Key    `json:"hash"`
	PrevHash   Key    `json:"prev_hash"`
	Height     uint64 `json:"height"`
	RawPayload []byte `json:"raw_payload,omitempty"`
}

// HeaderPutStatus is the sub-status of one entry in Storage.BlockHeadersPut:
// Idle until admitted into the pipeline, Init once a request slot has been
// allocated for it.
type HeaderPutStatus int

const (
	HeaderPutIdle HeaderPutStatus = iota
	HeaderPutInit
)

// BlockHeaderPutEntry is one FIFO element.
type BlockHeaderPutEntry struct {
	Header    BlockHeader     `json:"header"`
	Status    HeaderPutStatus `json:"status"`
	RequestID request.ID      `json:"request_id"`
}

// RequestKind distinguishes the kinds of request the storage worker
// accepts, so the reducer can route a StorageRequestSuccess/Error without
// consulting the worker.
type RequestKind int

const (
	RequestBlockHeaderPut RequestKind = iota
	RequestStateSnapshot
)

// RequestStatus is the sub-status of one entry in Storage.Requests. A
// freshly allocated slot is Idle until the effect has handed its payload
// to the worker channel, Pending from then until the worker's response
// comes back, and Error/Success for the single dispatch between the
// response action and the StorageRequestFinish that frees the slot.
type RequestStatus int

const (
	RequestIdle RequestStatus = iota
	RequestPending
	RequestError
	RequestSuccess
)

// StorageRequest is the payload stored in Storage.Requests under a
// request.ID.
type StorageRequest struct {
	Kind   RequestKind   `json:"kind"`
	Status RequestStatus `json:"status"`
	Header *BlockHeader  `json:"header,omitempty"`
	Err    string        `json:"error,omitempty"`
}

// Storage is the block-header put queue plus the pending-request
// registry. InFlight counts allocated (not yet finished) request slots
// and is what the reducer's admission control compares against the
// in-flight bound.
type Storage struct {
	BlockHeadersPut []BlockHeaderPutEntry
	Requests        *request.Registry
	InFlight        int
}

type storageJSON struct {
	BlockHeadersPut []BlockHeaderPutEntry `json:"block_headers_put,omitempty"`
	Requests        request.Snapshot      `json:"requests"`
	InFlight        int                   `json:"in_flight"`
}

// MarshalJSON serializes st including the registry's internal slab
// layout, so a restored state allocates the same request IDs the live
// state would have.
func (st Storage) MarshalJSON() ([]byte, error) {
	snap, err := st.Requests.Snapshot(func(v interface{}) ([]byte, error) {
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(storageJSON{
		BlockHeadersPut: st.BlockHeadersPut,
		Requests:        snap,
		InFlight:        st.InFlight,
	})
}

// UnmarshalJSON restores st, including the registry slab.
func (st *Storage) UnmarshalJSON(data []byte) error {
	var raw storageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	reg, err := request.FromSnapshot(raw.Requests, func(data json.RawMessage) (interface{}, error) {
		var req StorageRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		return &req, nil
	})
	if err != nil {
		return err
	}
	st.BlockHeadersPut = raw.BlockHeadersPut
	st.Requests = reg
	st.InFlight = raw.InFlight
	return nil
}
