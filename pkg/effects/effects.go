// Package effects is where this node touches the outside world: DNS
// resolution, dialing sockets, driving handshake I/O, tearing peers down
// and enqueuing storage work. Every effect function receives the State as
// it was *after* the reducer already applied the triggering action,
// decides what (if anything) needs to happen, performs it, and dispatches
// follow-up actions through the callback the store hands it. Effects
// never mutate State directly.
package effects

import (
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/handshake"
	"github.com/driftnode/driftnode/pkg/request"
	"github.com/driftnode/driftnode/pkg/state"
	"github.com/driftnode/driftnode/pkg/storageworker"
)

// DNSResolver looks up the addresses behind a DNS seed host:port.
type DNSResolver interface {
	Lookup(address string) ([]string, error)
}

// Dialer starts an outgoing connection to address. It does not block for
// the connection to complete; completion is reported later by the engine
// as a PeerConnectionSuccess/Error action.
type Dialer interface {
	Dial(address string) error
}

// Randomness chooses which Potential peer to dial next out of candidates.
type Randomness interface {
	Pick(candidates []string) string
}

// HandshakeIO is the transport the handshake effects drive, one progress
// step per Poll call.
type HandshakeIO interface {
	BeginWrite(address string, phase state.HandshakePhase) error
	BeginRead(address string, phase state.HandshakePhase) error
	PollWrite(address string) (n int, done bool, err error)
	PollRead(address string) (n int, res *handshake.ReadResult, err error)
	WritePending(address string) bool
}

// StorageService is the requester half of the storage worker's channels.
type StorageService interface {
	SendHeaderPut(id request.ID, h state.BlockHeader)
	SendSnapshot(anchorID uint64, stateJSON []byte)
	TryRecvResponse() (storageworker.Response, bool)
}

// PeerCloser tears down one peer's socket: deregister from the reactor,
// detach the handshake session, close the connection.
type PeerCloser interface {
	ClosePeer(address string)
}

// Dispatcher holds the service implementations effects call through and
// implements store.EffectsRunner.
type Dispatcher struct {
	Log       *zap.Logger
	DNS       DNSResolver
	Dial      Dialer
	Rand      Randomness
	Handshake HandshakeIO
	Storage   StorageService
	Closer    PeerCloser
}

// Run inspects env.Action and performs whatever side effect the reducer's
// transition implies, dispatching follow-up actions via dispatch.
func (d *Dispatcher) Run(s *state.State, env action.Envelope, dispatch func(action.Action)) {
	switch a := env.Action.(type) {
	case action.PeersDNSLookupInit:
		d.runDNSLookup(s, a, dispatch)
	case action.PeersDNSLookupSuccess:
		dispatch(action.PeersDNSLookupFinish{})
	case action.PeersDNSLookupFinish:
		d.pickAndDialNext(s, dispatch)

	case action.PeerConnectionInit:
		d.runDial(a, dispatch)
	case action.PeerConnectionSuccess:
		dispatch(action.PeerHandshakeInit{Address: a.Address})
	case action.PeerConnectionError:
		dispatch(action.PeerDisconnect{Address: a.Address, Reason: a.Error})

	case action.PeerHandshakeInit:
		dispatch(action.PeerConnectionMessageWriteInit{Address: a.Address})

	case action.PeerConnectionMessageWriteInit:
		d.beginWrite(s, a.Address, state.HandshakePhaseConnectionMessageWrite, dispatch)
	case action.PeerMetadataMessageWriteInit:
		d.beginWrite(s, a.Address, state.HandshakePhaseMetadataMessageWrite, dispatch)
	case action.PeerAckMessageWriteInit:
		d.beginWrite(s, a.Address, state.HandshakePhaseAckMessageWrite, dispatch)

	case action.PeerConnectionMessageReadInit:
		d.beginRead(s, a.Address, state.HandshakePhaseConnectionMessageRead, dispatch)
	case action.PeerMetadataMessageReadInit:
		d.beginRead(s, a.Address, state.HandshakePhaseMetadataMessageRead, dispatch)
	case action.PeerAckMessageReadInit:
		d.beginRead(s, a.Address, state.HandshakePhaseAckMessageRead, dispatch)

	case action.PeerTryWrite:
		d.tryWrite(s, a.Address, dispatch)
	case action.PeerTryRead:
		d.tryRead(s, a.Address, dispatch)

	// A completed write advances the exchange to reading the peer's
	// counterpart message; a completed read starts the next message's
	// write, and the final (ack) read completes the handshake. The
	// progression is strictly sequential.
	case action.PeerConnectionMessageWriteSuccess:
		dispatch(action.PeerConnectionMessageReadInit{Address: a.Address})
	case action.PeerConnectionMessageReadSuccess:
		dispatch(action.PeerMetadataMessageWriteInit{Address: a.Address})
	case action.PeerMetadataMessageWriteSuccess:
		dispatch(action.PeerMetadataMessageReadInit{Address: a.Address})
	case action.PeerMetadataMessageReadSuccess:
		dispatch(action.PeerAckMessageWriteInit{Address: a.Address})
	case action.PeerAckMessageWriteSuccess:
		dispatch(action.PeerAckMessageReadInit{Address: a.Address})
	case action.PeerAckMessageReadSuccess:
		dispatch(action.PeerHandshakeSuccess{Address: a.Address})

	case action.PeerConnectionMessageWriteError:
		dispatch(action.PeerHandshakeError{Address: a.Address, Error: a.Error})
	case action.PeerConnectionMessageReadError:
		dispatch(action.PeerHandshakeError{Address: a.Address, Error: a.Error})
	case action.PeerMetadataMessageWriteError:
		dispatch(action.PeerHandshakeError{Address: a.Address, Error: a.Error})
	case action.PeerMetadataMessageReadError:
		dispatch(action.PeerHandshakeError{Address: a.Address, Error: a.Error})
	case action.PeerAckMessageWriteError:
		dispatch(action.PeerHandshakeError{Address: a.Address, Error: a.Error})
	case action.PeerAckMessageReadError:
		dispatch(action.PeerHandshakeError{Address: a.Address, Error: a.Error})

	case action.PeerHandshakeError:
		dispatch(action.PeerDisconnect{Address: a.Address, Reason: a.Error})

	case action.PeerDisconnect:
		d.closePeer(s, a.Address, dispatch)
	case action.PeerDisconnected:
		dispatch(action.PeersRemove{Address: a.Address})

	case action.P2pPeerEvent:
		d.routePeerEvent(s, a, dispatch)

	case action.WakeupEvent:
		d.drainStorageResponses(dispatch)

	case action.TickEvent:
		d.maybeRediscover(s, dispatch)

	case action.StorageBlockHeadersPut:
		dispatch(action.StorageBlockHeaderPutNextInit{})
	case action.StorageBlockHeaderPutNextInit:
		d.afterStorageAdmission(s, dispatch)
	case action.StorageBlockHeaderPutNextPending:
		dispatch(action.StorageRequestInit{RequestID: a.RequestID})
		dispatch(action.StorageBlockHeaderPutNextInit{})
	case action.StorageRequestInit:
		d.sendStorageRequest(s, a, dispatch)
	case action.StorageRequestSuccess:
		dispatch(action.StorageRequestFinish{RequestID: a.RequestID})
		dispatch(action.StorageBlockHeaderPutNextInit{})
	case action.StorageRequestError:
		d.Log.Warn("storage request failed",
			zap.String("request", a.RequestID.String()), zap.String("error", a.Error))
		dispatch(action.StorageRequestFinish{RequestID: a.RequestID})
		dispatch(action.StorageBlockHeaderPutNextInit{})
	case action.StorageStateSnapshotCreate:
		d.sendSnapshot(s, a)
	}
}

func (d *Dispatcher) runDNSLookup(s *state.State, a action.PeersDNSLookupInit, dispatch func(action.Action)) {
	if d.DNS == nil {
		return
	}
	if s.DNSLookup == nil || s.DNSLookup.Address != a.Address || s.DNSLookup.Finished {
		// The reducer refused the init (a lookup is already in flight).
		return
	}
	addrs, err := d.DNS.Lookup(a.Address)
	if err != nil {
		dispatch(action.PeersDNSLookupError{Error: err.Error()})
		return
	}
	dispatch(action.PeersDNSLookupSuccess{Addresses: addrs})
}

// pickAndDialNext dials up to AttemptConnPeers of the Potential peers the
// finished lookup produced. Candidates are sorted before each Pick so a
// deterministic Randomness yields a deterministic dial order regardless
// of map iteration.
func (d *Dispatcher) pickAndDialNext(s *state.State, dispatch func(action.Action)) {
	if d.Rand == nil {
		return
	}
	var candidates []string
	live := 0
	for addr, p := range s.Peers {
		switch p.Status {
		case state.StatusPotential:
			candidates = append(candidates, addr)
		case state.StatusConnecting, state.StatusHandshaking, state.StatusHandshaked:
			live++
		}
	}
	sort.Strings(candidates)

	attempts := s.Config.AttemptConnPeers
	if attempts <= 0 {
		attempts = 1
	}
	if max := s.Config.MaxPeers; max > 0 {
		if room := max - live; room < attempts {
			attempts = room
		}
	}
	for i := 0; i < attempts && len(candidates) > 0; i++ {
		picked := d.Rand.Pick(candidates)
		if picked == "" {
			return
		}
		dispatch(action.PeerConnectionInit{Address: picked})
		n := candidates[:0]
		for _, c := range candidates {
			if c != picked {
				n = append(n, c)
			}
		}
		candidates = n
	}
}

func (d *Dispatcher) runDial(a action.PeerConnectionInit, dispatch func(action.Action)) {
	if d.Dial == nil {
		return
	}
	dispatch(action.PeerConnectionPending{Address: a.Address})
	if err := d.Dial.Dial(a.Address); err != nil {
		dispatch(action.PeerConnectionError{Address: a.Address, Error: err.Error()})
	}
	// Success arrives later, via the engine, once the dial completes and
	// the socket is registered with the reactor.
}

// phaseAccepted reports whether the reducer moved the peer into phase
// with a fresh step; a refused (stale or duplicate) init must not touch
// the transport.
func phaseAccepted(s *state.State, address string, phase state.HandshakePhase) bool {
	p, ok := s.Peers[address]
	return ok && p.Status == state.StatusHandshaking &&
		p.HandshakePhase == phase && p.HandshakeStep == state.HandshakeStepIdle
}

func (d *Dispatcher) beginWrite(s *state.State, address string, phase state.HandshakePhase, dispatch func(action.Action)) {
	if d.Handshake == nil || !phaseAccepted(s, address, phase) {
		return
	}
	if err := d.Handshake.BeginWrite(address, phase); err != nil {
		dispatch(writeErrorAction(phase, address, err.Error()))
		return
	}
	// The socket is almost always writable right after connect; try an
	// immediate flush instead of waiting a full reactor round trip.
	dispatch(action.PeerTryWrite{Address: address})
}

func (d *Dispatcher) beginRead(s *state.State, address string, phase state.HandshakePhase, dispatch func(action.Action)) {
	if d.Handshake == nil || !phaseAccepted(s, address, phase) {
		return
	}
	if err := d.Handshake.BeginRead(address, phase); err != nil {
		dispatch(readErrorAction(phase, address, err.Error()))
		return
	}
	// The peer's bytes may already be buffered; try to pull them now
	// rather than waiting a reactor round trip.
	dispatch(action.PeerTryRead{Address: address})
}

// tryWrite flushes the pending handshake message one progress step at a
// time, dispatching a partial-progress action per step so the action log
// reflects the socket's actual acceptance pattern. It only acts while
// the peer's current phase is a write phase still in flight.
func (d *Dispatcher) tryWrite(s *state.State, address string, dispatch func(action.Action)) {
	p, ok := s.Peers[address]
	if !ok || p.Status != state.StatusHandshaking || d.Handshake == nil {
		return
	}
	phase := p.HandshakePhase
	if !phase.IsWrite() || p.HandshakeStep == state.HandshakeStepSuccess || p.HandshakeStep == state.HandshakeStepError {
		return
	}
	if !d.Handshake.WritePending(address) {
		return
	}
	for {
		n, done, err := d.Handshake.PollWrite(address)
		if n > 0 {
			dispatch(writePendingAction(phase, address, n))
		}
		if err != nil {
			dispatch(writeErrorAction(phase, address, err.Error()))
			return
		}
		if done {
			dispatch(writeSuccessAction(phase, address))
			return
		}
		if n == 0 {
			return
		}
	}
}

func (d *Dispatcher) tryRead(s *state.State, address string, dispatch func(action.Action)) {
	p, ok := s.Peers[address]
	if !ok || p.Status != state.StatusHandshaking || d.Handshake == nil {
		return
	}
	phase := p.HandshakePhase
	if !phase.IsRead() || p.HandshakeStep == state.HandshakeStepSuccess || p.HandshakeStep == state.HandshakeStepError {
		return
	}
	for {
		n, res, err := d.Handshake.PollRead(address)
		if err != nil {
			dispatch(readErrorAction(phase, address, err.Error()))
			return
		}
		if res != nil {
			if n > 0 {
				dispatch(readPendingAction(phase, address, n))
			}
			dispatch(readSuccessAction(res, address))
			return
		}
		if n > 0 {
			dispatch(readPendingAction(phase, address, n))
			continue
		}
		return
	}
}

func (d *Dispatcher) closePeer(s *state.State, address string, dispatch func(action.Action)) {
	p, ok := s.Peers[address]
	if !ok || p.Status != state.StatusDisconnecting {
		return
	}
	if d.Closer != nil {
		d.Closer.ClosePeer(address)
	}
	dispatch(action.PeerDisconnected{Address: address})
}

// routePeerEvent translates a raw readiness notification into whatever
// the peer's current state makes of it.
func (d *Dispatcher) routePeerEvent(s *state.State, a action.P2pPeerEvent, dispatch func(action.Action)) {
	p, ok := s.Peers[a.Address]
	if !ok {
		// Event for an already-removed peer; its token died with it.
		return
	}
	if a.IsClosed {
		dispatch(action.PeerDisconnect{Address: a.Address, Reason: "connection closed by peer"})
		return
	}
	if p.Status == state.StatusConnecting && p.ConnectingSubStatus == state.ConnectingPending && a.IsWritable {
		dispatch(action.PeerConnectionSuccess{Address: a.Address, Token: a.Token})
		return
	}
	if a.IsReadable {
		dispatch(action.PeerTryRead{Address: a.Address})
	}
	if a.IsWritable {
		dispatch(action.PeerTryWrite{Address: a.Address})
	}
}

func (d *Dispatcher) drainStorageResponses(dispatch func(action.Action)) {
	if d.Storage == nil {
		return
	}
	for {
		resp, ok := d.Storage.TryRecvResponse()
		if !ok {
			return
		}
		if !resp.Tracked {
			continue
		}
		if resp.Err != "" {
			dispatch(action.StorageRequestError{RequestID: resp.ID, Error: resp.Err})
			continue
		}
		dispatch(action.StorageRequestSuccess{RequestID: resp.ID, Result: resp.Result})
	}
}

// maybeRediscover re-runs DNS discovery when the node has fallen below
// its peer floor and no lookup is already in flight.
func (d *Dispatcher) maybeRediscover(s *state.State, dispatch func(action.Action)) {
	if s.Config.DNSSeedAddress == "" {
		return
	}
	if s.DNSLookup != nil && !s.DNSLookup.Finished && s.DNSLookup.Error == "" {
		return
	}
	live := 0
	for _, p := range s.Peers {
		switch p.Status {
		case state.StatusConnecting, state.StatusHandshaking, state.StatusHandshaked:
			live++
		}
	}
	if live >= s.Config.MinPeers {
		return
	}
	dispatch(action.PeersDNSLookupInit{Address: s.Config.DNSSeedAddress})
}

// afterStorageAdmission inspects the FIFO head the reducer just admitted
// (if it did) and carries its request ID forward into the pipeline.
func (d *Dispatcher) afterStorageAdmission(s *state.State, dispatch func(action.Action)) {
	if len(s.Storage.BlockHeadersPut) == 0 {
		return
	}
	head := s.Storage.BlockHeadersPut[0]
	if head.Status != state.HeaderPutInit {
		return
	}
	dispatch(action.StorageBlockHeaderPutNextPending{RequestID: head.RequestID})
}

func (d *Dispatcher) sendStorageRequest(s *state.State, a action.StorageRequestInit, dispatch func(action.Action)) {
	if d.Storage == nil {
		return
	}
	v, ok := s.Storage.Requests.Get(a.RequestID)
	if !ok {
		return
	}
	req := v.(*state.StorageRequest)
	if req.Status != state.RequestIdle || req.Kind != state.RequestBlockHeaderPut || req.Header == nil {
		return
	}
	d.Storage.SendHeaderPut(a.RequestID, *req.Header)
	dispatch(action.StorageRequestPending{RequestID: a.RequestID})
}

func (d *Dispatcher) sendSnapshot(s *state.State, a action.StorageStateSnapshotCreate) {
	if d.Storage == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		d.Log.Error("marshal state snapshot", zap.Error(err))
		return
	}
	d.Storage.SendSnapshot(uint64(a.AnchorActionID), data)
}

func writePendingAction(phase state.HandshakePhase, address string, n int) action.Action {
	switch phase {
	case state.HandshakePhaseMetadataMessageWrite:
		return action.PeerMetadataMessageWritePending{Address: address, BytesWritten: n}
	case state.HandshakePhaseAckMessageWrite:
		return action.PeerAckMessageWritePending{Address: address, BytesWritten: n}
	default:
		return action.PeerConnectionMessageWritePending{Address: address, BytesWritten: n}
	}
}

func writeSuccessAction(phase state.HandshakePhase, address string) action.Action {
	switch phase {
	case state.HandshakePhaseMetadataMessageWrite:
		return action.PeerMetadataMessageWriteSuccess{Address: address}
	case state.HandshakePhaseAckMessageWrite:
		return action.PeerAckMessageWriteSuccess{Address: address}
	default:
		return action.PeerConnectionMessageWriteSuccess{Address: address}
	}
}

func writeErrorAction(phase state.HandshakePhase, address, errMsg string) action.Action {
	switch phase {
	case state.HandshakePhaseMetadataMessageWrite:
		return action.PeerMetadataMessageWriteError{Address: address, Error: errMsg}
	case state.HandshakePhaseAckMessageWrite:
		return action.PeerAckMessageWriteError{Address: address, Error: errMsg}
	default:
		return action.PeerConnectionMessageWriteError{Address: address, Error: errMsg}
	}
}

func readPendingAction(phase state.HandshakePhase, address string, n int) action.Action {
	switch phase {
	case state.HandshakePhaseMetadataMessageRead:
		return action.PeerMetadataMessageReadPending{Address: address, BytesRead: n}
	case state.HandshakePhaseAckMessageRead:
		return action.PeerAckMessageReadPending{Address: address, BytesRead: n}
	default:
		return action.PeerConnectionMessageReadPending{Address: address, BytesRead: n}
	}
}

func readSuccessAction(res *handshake.ReadResult, address string) action.Action {
	switch res.Phase {
	case state.HandshakePhaseMetadataMessageRead:
		return action.PeerMetadataMessageReadSuccess{
			Address:        address,
			Version:        res.Version,
			DisableMempool: res.DisableMempool,
			PrivateNode:    res.PrivateNode,
		}
	case state.HandshakePhaseAckMessageRead:
		return action.PeerAckMessageReadSuccess{Address: address}
	default:
		return action.PeerConnectionMessageReadSuccess{
			Address:       address,
			PeerPublicKey: res.PeerPublicKey,
			PeerPort:      res.PeerPort,
			SessionKey:    res.SessionKey,
		}
	}
}

func readErrorAction(phase state.HandshakePhase, address, errMsg string) action.Action {
	switch phase {
	case state.HandshakePhaseMetadataMessageRead:
		return action.PeerMetadataMessageReadError{Address: address, Error: errMsg}
	case state.HandshakePhaseAckMessageRead:
		return action.PeerAckMessageReadError{Address: address, Error: errMsg}
	default:
		return action.PeerConnectionMessageReadError{Address: address, Error: errMsg}
	}
}
