package effects

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/handshake"
	"github.com/driftnode/driftnode/pkg/request"
	"github.com/driftnode/driftnode/pkg/state"
	"github.com/driftnode/driftnode/pkg/storageworker"
	"github.com/driftnode/driftnode/pkg/store"
)

type fakeDNS struct {
	addrs []string
	err   error
}

func (f fakeDNS) Lookup(string) ([]string, error) { return f.addrs, f.err }

type fakeDialer struct {
	err    error
	dialed []string
}

func (f *fakeDialer) Dial(address string) error {
	f.dialed = append(f.dialed, address)
	return f.err
}

type firstRandomness struct{}

func (firstRandomness) Pick(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

type writeStep struct {
	n    int
	done bool
	err  error
}

type readStep struct {
	n   int
	res *handshake.ReadResult
	err error
}

// fakeIO scripts the handshake transport: each PollWrite/PollRead pops
// the next step off its queue.
type fakeIO struct {
	beganWrites []state.HandshakePhase
	beganReads  []state.HandshakePhase
	writeScript []writeStep
	readScript  []readStep
}

func (f *fakeIO) BeginWrite(_ string, phase state.HandshakePhase) error {
	f.beganWrites = append(f.beganWrites, phase)
	return nil
}

func (f *fakeIO) BeginRead(_ string, phase state.HandshakePhase) error {
	f.beganReads = append(f.beganReads, phase)
	return nil
}

func (f *fakeIO) PollWrite(string) (int, bool, error) {
	if len(f.writeScript) == 0 {
		return 0, false, nil
	}
	s := f.writeScript[0]
	f.writeScript = f.writeScript[1:]
	return s.n, s.done, s.err
}

func (f *fakeIO) PollRead(string) (int, *handshake.ReadResult, error) {
	if len(f.readScript) == 0 {
		return 0, nil, nil
	}
	s := f.readScript[0]
	f.readScript = f.readScript[1:]
	return s.n, s.res, s.err
}

func (f *fakeIO) WritePending(string) bool { return len(f.writeScript) > 0 }

type sentPut struct {
	id     request.ID
	header state.BlockHeader
}

type fakeStorage struct {
	sent      []sentPut
	snapshots []uint64
	responses []storageworker.Response
}

func (f *fakeStorage) SendHeaderPut(id request.ID, h state.BlockHeader) {
	f.sent = append(f.sent, sentPut{id: id, header: h})
}

func (f *fakeStorage) SendSnapshot(anchorID uint64, _ []byte) {
	f.snapshots = append(f.snapshots, anchorID)
}

func (f *fakeStorage) TryRecvResponse() (storageworker.Response, bool) {
	if len(f.responses) == 0 {
		return storageworker.Response{}, false
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, true
}

type fakeCloser struct {
	closed []string
}

func (f *fakeCloser) ClosePeer(address string) { f.closed = append(f.closed, address) }

// recorder wraps the Dispatcher so every dispatched action (nested ones
// included) lands in a flat log the assertions can inspect.
type recorder struct {
	d   *Dispatcher
	log []action.Action
}

func (r *recorder) Run(s *state.State, env action.Envelope, dispatch func(action.Action)) {
	r.log = append(r.log, env.Action)
	r.d.Run(s, env, dispatch)
}

func (r *recorder) kinds() []action.Kind {
	out := make([]action.Kind, len(r.log))
	for i, a := range r.log {
		out[i] = a.Kind()
	}
	return out
}

func (r *recorder) count(k action.Kind) int {
	var n int
	for _, a := range r.log {
		if a.Kind() == k {
			n++
		}
	}
	return n
}

func newHarness(cfg state.Config, d *Dispatcher) (*state.State, *store.Store, *recorder) {
	s := state.New(cfg)
	rec := &recorder{d: d}
	st := store.New(zap.NewNop(), s, rec, nil)
	return s, st, rec
}

func TestDNSLookupDrivesConnections(t *testing.T) {
	dialer := &fakeDialer{}
	d := &Dispatcher{
		Log:  zap.NewNop(),
		DNS:  fakeDNS{addrs: []string{"10.0.0.1:9732", "10.0.0.2:9732"}},
		Dial: dialer,
		Rand: firstRandomness{},
	}
	s, st, rec := newHarness(state.Config{AttemptConnPeers: 1}, d)

	st.Dispatch(action.PeersDNSLookupInit{Address: "seed.example:9732"})

	require.Len(t, s.Peers, 2)
	require.Equal(t, []string{"10.0.0.1:9732"}, dialer.dialed)
	p := s.Peers["10.0.0.1:9732"]
	require.Equal(t, state.StatusConnecting, p.Status)
	require.Equal(t, state.ConnectingPending, p.ConnectingSubStatus)
	require.Equal(t, state.StatusPotential, s.Peers["10.0.0.2:9732"].Status)
	require.Equal(t, 1, rec.count(action.KindPeerConnectionInit))
}

func TestDNSLookupErrorStopsThere(t *testing.T) {
	d := &Dispatcher{
		Log:  zap.NewNop(),
		DNS:  fakeDNS{err: errors.New("not found")},
		Dial: &fakeDialer{},
		Rand: firstRandomness{},
	}
	s, st, rec := newHarness(state.Config{}, d)

	st.Dispatch(action.PeersDNSLookupInit{Address: "seed.example:9732"})

	require.Equal(t, "not found", s.DNSLookup.Error)
	require.Empty(t, s.Peers)
	require.Zero(t, rec.count(action.KindPeerConnectionInit))
}

func TestDialErrorTearsPeerDown(t *testing.T) {
	closer := &fakeCloser{}
	d := &Dispatcher{
		Log:    zap.NewNop(),
		Dial:   &fakeDialer{err: errors.New("refused")},
		Closer: closer,
	}
	s, st, rec := newHarness(state.Config{}, d)
	s.Peers["a"] = state.NewPotentialPeer("a")

	st.Dispatch(action.PeerConnectionInit{Address: "a"})

	require.Equal(t, 1, rec.count(action.KindPeerDisconnect))
	require.Equal(t, []string{"a"}, closer.closed)
	require.NotContains(t, s.Peers, "a", "errored peer is disconnected and removed")
}

func connectedPeer(t *testing.T, s *state.State, st *store.Store, addr string) {
	t.Helper()
	s.Peers[addr] = state.NewPotentialPeer(addr)
	s.Peers[addr].Status = state.StatusConnecting
	s.Peers[addr].ConnectingSubStatus = state.ConnectingPending
	st.Dispatch(action.P2pPeerEvent{Token: 2, Address: addr, IsWritable: true})
}

func TestConnectWritableStartsHandshake(t *testing.T) {
	io := &fakeIO{}
	d := &Dispatcher{Log: zap.NewNop(), Handshake: io}
	s, st, _ := newHarness(state.Config{}, d)

	connectedPeer(t, s, st, "10.0.0.1:9732")

	p := s.Peers["10.0.0.1:9732"]
	require.Equal(t, state.StatusHandshaking, p.Status)
	require.EqualValues(t, 2, p.Token)
	require.Equal(t, state.HandshakePhaseConnectionMessageWrite, p.HandshakePhase)
	require.Equal(t, []state.HandshakePhase{state.HandshakePhaseConnectionMessageWrite}, io.beganWrites)
	require.Empty(t, io.beganReads, "the read side starts only after the write completes")
}

func TestChunkedWriteProgress(t *testing.T) {
	io := &fakeIO{
		writeScript: []writeStep{{n: 10}, {n: 10}, {n: 14, done: true}},
	}
	d := &Dispatcher{Log: zap.NewNop(), Handshake: io}
	s, st, rec := newHarness(state.Config{}, d)

	connectedPeer(t, s, st, "a")

	require.Equal(t, 3, rec.count(action.KindPeerConnectionMessageWritePending))
	require.Equal(t, 1, rec.count(action.KindPeerConnectionMessageWriteSuccess))

	// The completed write advanced the exchange to reading the peer's
	// connection message.
	p := s.Peers["a"]
	require.Equal(t, state.HandshakePhaseConnectionMessageRead, p.HandshakePhase)
	require.Equal(t, state.HandshakeStepIdle, p.HandshakeStep)
	require.Equal(t, []state.HandshakePhase{state.HandshakePhaseConnectionMessageRead}, io.beganReads)

	var total int
	for _, a := range rec.log {
		if wp, ok := a.(action.PeerConnectionMessageWritePending); ok {
			total += wp.BytesWritten
		}
	}
	require.Equal(t, 34, total)
}

func TestHandshakePhaseAdvanceToHandshaked(t *testing.T) {
	io := &fakeIO{}
	d := &Dispatcher{Log: zap.NewNop(), Handshake: io}
	s, st, _ := newHarness(state.Config{}, d)

	connectedPeer(t, s, st, "a")
	p := s.Peers["a"]

	st.Dispatch(action.PeerConnectionMessageWriteSuccess{Address: "a"})
	require.Equal(t, state.HandshakePhaseConnectionMessageRead, p.HandshakePhase)
	require.Equal(t, []state.HandshakePhase{state.HandshakePhaseConnectionMessageRead}, io.beganReads)

	st.Dispatch(action.PeerConnectionMessageReadSuccess{
		Address: "a", PeerPublicKey: []byte("pk"), PeerPort: 9732, SessionKey: []byte("sk"),
	})
	require.Equal(t, state.HandshakePhaseMetadataMessageWrite, p.HandshakePhase)
	require.Contains(t, io.beganWrites, state.HandshakePhaseMetadataMessageWrite)

	st.Dispatch(action.PeerMetadataMessageWriteSuccess{Address: "a"})
	require.Equal(t, state.HandshakePhaseMetadataMessageRead, p.HandshakePhase)
	require.Contains(t, io.beganReads, state.HandshakePhaseMetadataMessageRead)

	st.Dispatch(action.PeerMetadataMessageReadSuccess{Address: "a", Version: "v1"})
	require.Equal(t, state.HandshakePhaseAckMessageWrite, p.HandshakePhase)

	st.Dispatch(action.PeerAckMessageWriteSuccess{Address: "a"})
	require.Equal(t, state.HandshakePhaseAckMessageRead, p.HandshakePhase)

	st.Dispatch(action.PeerAckMessageReadSuccess{Address: "a"})
	require.Equal(t, state.StatusHandshaked, p.Status)

	require.Equal(t, []state.HandshakePhase{
		state.HandshakePhaseConnectionMessageWrite,
		state.HandshakePhaseMetadataMessageWrite,
		state.HandshakePhaseAckMessageWrite,
	}, io.beganWrites)
	require.Equal(t, []state.HandshakePhase{
		state.HandshakePhaseConnectionMessageRead,
		state.HandshakePhaseMetadataMessageRead,
		state.HandshakePhaseAckMessageRead,
	}, io.beganReads)
}

func TestHandshakeIOErrorDisconnects(t *testing.T) {
	io := &fakeIO{
		writeScript: []writeStep{{n: 4}, {err: errors.New("broken pipe")}},
	}
	closer := &fakeCloser{}
	d := &Dispatcher{Log: zap.NewNop(), Handshake: io, Closer: closer}
	s, st, rec := newHarness(state.Config{}, d)

	connectedPeer(t, s, st, "a")

	require.Equal(t, 1, rec.count(action.KindPeerConnectionMessageWriteError))
	require.Equal(t, 1, rec.count(action.KindPeerDisconnect))
	require.Equal(t, []string{"a"}, closer.closed)
	require.NotContains(t, s.Peers, "a")
}

func TestClosedEventTearsDownHandshakedPeer(t *testing.T) {
	closer := &fakeCloser{}
	d := &Dispatcher{Log: zap.NewNop(), Handshake: &fakeIO{}, Closer: closer}
	s, st, rec := newHarness(state.Config{}, d)

	connectedPeer(t, s, st, "10.0.0.1:9732")
	st.Dispatch(action.PeerConnectionMessageWriteSuccess{Address: "10.0.0.1:9732"})
	st.Dispatch(action.PeerConnectionMessageReadSuccess{Address: "10.0.0.1:9732", SessionKey: []byte("sk")})
	st.Dispatch(action.PeerMetadataMessageWriteSuccess{Address: "10.0.0.1:9732"})
	st.Dispatch(action.PeerMetadataMessageReadSuccess{Address: "10.0.0.1:9732", Version: "v1"})
	st.Dispatch(action.PeerAckMessageWriteSuccess{Address: "10.0.0.1:9732"})
	st.Dispatch(action.PeerAckMessageReadSuccess{Address: "10.0.0.1:9732"})
	require.Equal(t, state.StatusHandshaked, s.Peers["10.0.0.1:9732"].Status)

	st.Dispatch(action.P2pPeerEvent{Token: 2, Address: "10.0.0.1:9732", IsClosed: true})

	require.Equal(t, 1, rec.count(action.KindPeerDisconnect))
	require.Equal(t, 1, rec.count(action.KindPeerDisconnected))
	require.Equal(t, 1, rec.count(action.KindPeersRemove))
	require.Equal(t, []string{"10.0.0.1:9732"}, closer.closed)
	require.NotContains(t, s.Peers, "10.0.0.1:9732")
}

func putHeaders(n int) action.StorageBlockHeadersPut {
	out := action.StorageBlockHeadersPut{}
	for i := 0; i < n; i++ {
		out.Headers = append(out.Headers, action.BlockHeader{Hash: []byte{byte(i + 1)}, Height: uint64(i + 1)})
	}
	return out
}

func TestStoragePipelineSaturatesToTwo(t *testing.T) {
	storage := &fakeStorage{}
	d := &Dispatcher{Log: zap.NewNop(), Storage: storage}
	s, st, _ := newHarness(state.Config{}, d)

	st.Dispatch(putHeaders(3))

	// The NextInit cascade admits and sends exactly two; the third stays
	// queued Idle.
	require.Len(t, storage.sent, 2)
	require.Equal(t, 2, s.Storage.InFlight)
	require.Len(t, s.Storage.BlockHeadersPut, 1)
	require.Equal(t, state.HeaderPutIdle, s.Storage.BlockHeadersPut[0].Status)

	pending := 0
	s.Storage.Requests.Each(func(_ request.ID, v interface{}) {
		if v.(*state.StorageRequest).Status == state.RequestPending {
			pending++
		}
	})
	require.Equal(t, 2, pending)
}

func TestStorageWakeupCompletesAndBackfills(t *testing.T) {
	storage := &fakeStorage{}
	d := &Dispatcher{Log: zap.NewNop(), Storage: storage}
	s, st, rec := newHarness(state.Config{}, d)

	st.Dispatch(putHeaders(3))
	require.Len(t, storage.sent, 2)

	storage.responses = []storageworker.Response{
		{ID: storage.sent[0].id, Tracked: true, Kind: storageworker.RequestBlockHeaderPut, Result: true},
	}
	st.Dispatch(action.WakeupEvent{})

	require.Equal(t, 1, rec.count(action.KindStorageRequestSuccess))
	require.Equal(t, 1, rec.count(action.KindStorageRequestFinish))
	require.Len(t, storage.sent, 3, "completion backfills the third header")
	require.Equal(t, 2, s.Storage.InFlight)
	require.Empty(t, s.Storage.BlockHeadersPut)
	require.False(t, s.Storage.Requests.Contains(storage.sent[0].id))
}

func TestStorageErrorAlsoFinishes(t *testing.T) {
	storage := &fakeStorage{}
	d := &Dispatcher{Log: zap.NewNop(), Storage: storage}
	s, st, rec := newHarness(state.Config{}, d)

	st.Dispatch(putHeaders(1))
	require.Len(t, storage.sent, 1)

	storage.responses = []storageworker.Response{
		{ID: storage.sent[0].id, Tracked: true, Kind: storageworker.RequestBlockHeaderPut, Err: "disk full"},
	}
	st.Dispatch(action.WakeupEvent{})

	require.Equal(t, 1, rec.count(action.KindStorageRequestError))
	require.Equal(t, 1, rec.count(action.KindStorageRequestFinish))
	require.Zero(t, s.Storage.InFlight)
	require.Zero(t, s.Storage.Requests.Len(), "failed request is consumed, not retried")
}

func TestSnapshotCreateSendsStateToWorker(t *testing.T) {
	storage := &fakeStorage{}
	d := &Dispatcher{Log: zap.NewNop(), Storage: storage}
	_, st, _ := newHarness(state.Config{}, d)

	st.Dispatch(action.StorageStateSnapshotCreate{AnchorActionID: 10000})

	require.Equal(t, []uint64{10000}, storage.snapshots)
}

func TestTickRedialsBelowMinPeers(t *testing.T) {
	d := &Dispatcher{
		Log:  zap.NewNop(),
		DNS:  fakeDNS{addrs: nil},
		Dial: &fakeDialer{},
		Rand: firstRandomness{},
	}
	_, st, rec := newHarness(state.Config{DNSSeedAddress: "seed:9732", MinPeers: 3}, d)

	st.Dispatch(action.TickEvent{})
	require.Equal(t, 1, rec.count(action.KindPeersDNSLookupInit))

	// While that lookup is unfinished a second tick must not start
	// another one... but an empty-result lookup finishes immediately, so
	// the next tick may retry; what matters is one lookup per tick.
	st.Dispatch(action.TickEvent{})
	require.Equal(t, 2, rec.count(action.KindPeersDNSLookupInit))
}
