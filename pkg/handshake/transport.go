// Package handshake drives the wire side of the three-message handshake:
// it builds and frames outgoing messages, feeds incoming bytes through
// the chunk read state machine, and applies the crypto boundary (the
// first connection message travels in plaintext, everything after it is
// sealed under the derived session key). It holds per-peer sessions
// keyed by address; which message is in flight is decided by the effects
// layer, which reads the peer's phase out of State and calls BeginWrite/
// BeginRead accordingly.
package handshake

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/chunk"
	"github.com/driftnode/driftnode/pkg/cryptoservice"
	"github.com/driftnode/driftnode/pkg/handshakemsg"
	"github.com/driftnode/driftnode/pkg/state"
)

// ErrUnknownPeer is returned when a Begin/Poll call names an address with
// no attached session.
var ErrUnknownPeer = errors.New("handshake: unknown peer")

// ErrNoSessionKey is returned when an encrypted phase is staged before
// the connection message exchange produced a session key.
var ErrNoSessionKey = errors.New("handshake: no session key established")

// pollDeadline bounds how long a single Poll may sit in a read or write
// syscall when the readiness event that triggered it has already been
// consumed by an earlier drain iteration.
const pollDeadline = time.Millisecond

// WriteInterest is the slice of the reactor the transport needs: toggling
// write-readiness polling for one registered connection. Write interest
// is only armed while a message has unflushed bytes.
type WriteInterest interface {
	SetWritable(address string, writable bool) error
}

// Identity is this node's own handshake material.
type Identity struct {
	Port           uint16
	PublicKey      []byte
	SecretKey      []byte
	ProofOfWork    []byte
	Version        string
	DisableMempool bool
	PrivateNode    bool
}

// Conn is what a session reads and writes through. *net.TCPConn satisfies
// it; tests use net.Pipe-alikes that implement the deadline methods as
// no-ops.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// ReadResult is what a completed inbound message yields, with only the
// fields for its phase populated.
type ReadResult struct {
	Phase          state.HandshakePhase
	PeerPublicKey  []byte
	PeerPort       uint16
	SessionKey     []byte
	Version        string
	DisableMempool bool
	PrivateNode    bool
}

type session struct {
	conn   Conn
	reader io.Reader

	localNonce []byte
	peerNonce  []byte
	sessionKey []byte

	writePhase  state.HandshakePhase
	writeChunks [][]byte
	writeCur    *chunk.WriteState

	readPhase state.HandshakePhase
	readCur   *chunk.ReadState
}

// Transport owns all live handshake sessions. It is driven exclusively
// from the engine's goroutine, so it carries no locking.
type Transport struct {
	log      *zap.Logger
	crypto   cryptoservice.Service
	identity Identity
	interest WriteInterest
	sessions map[string]*session
}

// New returns a Transport for identity, sealing with crypto and arming
// write interest through interest.
func New(log *zap.Logger, crypto cryptoservice.Service, identity Identity, interest WriteInterest) *Transport {
	return &Transport{
		log:      log,
		crypto:   crypto,
		identity: identity,
		interest: interest,
		sessions: make(map[string]*session),
	}
}

// Attach creates a session for address over conn. reader, when non-nil,
// overrides where inbound bytes are pulled from (the portable reactor
// buffers reads, so bytes must come back out of its buffer rather than
// the raw connection).
func (t *Transport) Attach(address string, conn Conn, reader io.Reader) {
	if reader == nil {
		reader = conn
	}
	t.sessions[address] = &session{conn: conn, reader: reader}
}

// Detach drops address's session. Safe to call for addresses that were
// never attached.
func (t *Transport) Detach(address string) {
	delete(t.sessions, address)
}

// Attached reports whether address has a live session.
func (t *Transport) Attached(address string) bool {
	_, ok := t.sessions[address]
	return ok
}

// SessionKey returns the session key derived for address, once the
// connection message exchange completed.
func (t *Transport) SessionKey(address string) ([]byte, bool) {
	s, ok := t.sessions[address]
	if !ok || s.sessionKey == nil {
		return nil, false
	}
	return s.sessionKey, true
}

// BeginWrite stages the outgoing message for phase (one of the three
// write phases): build, encode, split into chunks, seal each piece for
// encrypted phases, and arm write interest so the next writability event
// flushes it.
func (t *Transport) BeginWrite(address string, phase state.HandshakePhase) error {
	s, ok := t.sessions[address]
	if !ok {
		return ErrUnknownPeer
	}

	plain, err := t.buildMessage(s, phase)
	if err != nil {
		return err
	}

	sealed := phase != state.HandshakePhaseConnectionMessageWrite
	max := chunk.MaxChunkSize
	if sealed {
		max -= t.crypto.Overhead()
	}
	pieces := chunk.Split(plain, max)

	s.writePhase = phase
	s.writeChunks = s.writeChunks[:0]
	for _, p := range pieces {
		content := p
		if sealed {
			if s.sessionKey == nil {
				return ErrNoSessionKey
			}
			content = t.crypto.Box(s.sessionKey, s.localNonce, p)
		}
		s.writeChunks = append(s.writeChunks, content)
	}
	s.writeCur = nil

	return t.interest.SetWritable(address, true)
}

func (t *Transport) buildMessage(s *session, phase state.HandshakePhase) ([]byte, error) {
	switch phase {
	case state.HandshakePhaseConnectionMessageWrite:
		s.localNonce = t.crypto.Nonce()
		return handshakemsg.ConnectionMessage{
			Port:        t.identity.Port,
			PublicKey:   t.identity.PublicKey,
			ProofOfWork: t.identity.ProofOfWork,
			Nonce:       s.localNonce,
			Version:     t.identity.Version,
		}.Encode()
	case state.HandshakePhaseMetadataMessageWrite:
		return handshakemsg.MetadataMessage{
			Version:        t.identity.Version,
			DisableMempool: t.identity.DisableMempool,
			PrivateNode:    t.identity.PrivateNode,
		}.Encode()
	case state.HandshakePhaseAckMessageWrite:
		return handshakemsg.AckMessage{}.Encode()
	default:
		return nil, fmt.Errorf("handshake: no outgoing message for phase %v", phase)
	}
}

// PollWrite makes one step of progress flushing the staged message: it
// stages the next chunk if needed and attempts a single write pass. It
// returns the bytes written this call and whether the whole message (all
// its chunks) is now on the wire; err is non-nil only for real failures,
// never for would-block. Callers loop on it until it reports zero
// progress or completion, dispatching one progress action per call, so
// the action log mirrors the socket's actual acceptance pattern.
func (t *Transport) PollWrite(address string) (int, bool, error) {
	s, ok := t.sessions[address]
	if !ok {
		return 0, false, ErrUnknownPeer
	}
	if s.writeCur == nil && len(s.writeChunks) == 0 {
		return 0, true, nil
	}

	s.conn.SetWriteDeadline(time.Now().Add(pollDeadline))
	defer s.conn.SetWriteDeadline(time.Time{})

	if s.writeCur == nil {
		cur, err := chunk.NewWriteState(s.writeChunks[0])
		if err != nil {
			return 0, false, err
		}
		s.writeCur = cur
		s.writeChunks = s.writeChunks[1:]
	}

	n, err := s.writeCur.Poll(s.conn)
	if err != nil {
		if isWouldBlock(err) {
			return n, false, nil
		}
		return n, false, err
	}
	if s.writeCur.Done() {
		s.writeCur = nil
	}
	if s.writeCur != nil || len(s.writeChunks) > 0 {
		return n, false, nil
	}

	if err := t.interest.SetWritable(address, false); err != nil {
		t.log.Debug("clear write interest", zap.String("peer", address), zap.Error(err))
	}
	return n, true, nil
}

// WritePending reports whether address still has unflushed message bytes.
func (t *Transport) WritePending(address string) bool {
	s, ok := t.sessions[address]
	if !ok {
		return false
	}
	return s.writeCur != nil || len(s.writeChunks) > 0
}

// BeginRead stages the inbound side for phase's message (one of the
// three read phases).
func (t *Transport) BeginRead(address string, phase state.HandshakePhase) error {
	s, ok := t.sessions[address]
	if !ok {
		return ErrUnknownPeer
	}
	if !phase.IsRead() {
		return fmt.Errorf("handshake: no incoming message for phase %v", phase)
	}
	if phase != state.HandshakePhaseConnectionMessageRead && s.sessionKey == nil {
		return ErrNoSessionKey
	}
	s.readPhase = phase
	s.readCur = chunk.NewReadState()
	return nil
}

// PollRead pulls whatever bytes the socket has right now through the
// chunk state machine. It returns the bytes read this call and, once the
// message completes, the decoded result; err is non-nil only for real
// failures (including decode and decrypt failures), never for
// would-block.
func (t *Transport) PollRead(address string) (int, *ReadResult, error) {
	s, ok := t.sessions[address]
	if !ok {
		return 0, nil, ErrUnknownPeer
	}
	if s.readCur == nil {
		return 0, nil, nil
	}

	s.conn.SetReadDeadline(time.Now().Add(pollDeadline))
	defer s.conn.SetReadDeadline(time.Time{})

	n, err := s.readCur.Poll(s.reader)
	if err != nil {
		if isWouldBlock(err) {
			return n, nil, nil
		}
		return n, nil, err
	}
	if !s.readCur.Done() {
		return n, nil, nil
	}

	payload := s.readCur.Payload()
	s.readCur = nil

	if s.readPhase != state.HandshakePhaseConnectionMessageRead {
		plain, err := t.crypto.Unbox(s.sessionKey, s.peerNonce, payload)
		if err != nil {
			return n, nil, err
		}
		payload = plain
	}

	res, err := t.decodeMessage(s, payload)
	if err != nil {
		return n, nil, err
	}
	return n, res, nil
}

func (t *Transport) decodeMessage(s *session, payload []byte) (*ReadResult, error) {
	switch s.readPhase {
	case state.HandshakePhaseConnectionMessageRead:
		m, err := handshakemsg.DecodeConnectionMessage(payload)
		if err != nil {
			return nil, err
		}
		key, err := t.crypto.SessionKey(t.identity.SecretKey, m.PublicKey)
		if err != nil {
			return nil, err
		}
		s.sessionKey = key
		s.peerNonce = m.Nonce
		return &ReadResult{
			Phase:         state.HandshakePhaseConnectionMessageRead,
			PeerPublicKey: m.PublicKey,
			PeerPort:      m.Port,
			SessionKey:    key,
		}, nil
	case state.HandshakePhaseMetadataMessageRead:
		m, err := handshakemsg.DecodeMetadataMessage(payload)
		if err != nil {
			return nil, err
		}
		return &ReadResult{
			Phase:          state.HandshakePhaseMetadataMessageRead,
			Version:        m.Version,
			DisableMempool: m.DisableMempool,
			PrivateNode:    m.PrivateNode,
		}, nil
	case state.HandshakePhaseAckMessageRead:
		if _, err := handshakemsg.DecodeAckMessage(payload); err != nil {
			return nil, err
		}
		return &ReadResult{Phase: state.HandshakePhaseAckMessageRead}, nil
	default:
		return nil, fmt.Errorf("handshake: no decoder for phase %v", s.readPhase)
	}
}

func isWouldBlock(err error) bool {
	return errors.Is(err, chunk.ErrWouldBlock) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK) ||
		isTimeout(err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
