// Package cryptoservice defines the narrow boundary this node crosses
// into cryptographic code without committing to how that code works:
// only the interface the handshake and framing effects call through,
// plus one explicit, clearly-fake implementation that is good enough to
// exercise the rest of the system end to end in tests. Real key
// exchange, authenticated encryption and nonce generation belong to an
// external provider plugged in behind Service.
package cryptoservice

import "errors"

// ErrAuthFailed is returned by Unbox when the envelope does not verify.
var ErrAuthFailed = errors.New("cryptoservice: authentication failed")

// Service is the boundary the handshake and chunk-framing effects call
// through. A real implementation would do X25519 key exchange and
// NaCl/libsodium-style box/unbox; this interface only commits to the
// shape, not the algorithm.
type Service interface {
	// Nonce returns a fresh nonce for use in the next outgoing message.
	Nonce() []byte
	// SessionKey derives the shared session key from the local private key
	// and the peer's public key exchanged in the connection message.
	SessionKey(localPrivate, peerPublic []byte) ([]byte, error)
	// Box authenticates and seals plaintext under key, producing an
	// envelope no larger than len(plaintext)+Overhead().
	Box(key, nonce, plaintext []byte) []byte
	// Unbox opens an envelope produced by Box. Returns ErrAuthFailed if it
	// does not verify.
	Unbox(key, nonce, envelope []byte) ([]byte, error)
	// Overhead is the number of bytes Box adds to its plaintext input.
	Overhead() int
}

// fake is a Service that does no real cryptography: Box appends a fixed
// trailer instead of an authentication tag, and Unbox just checks it's
// present. It exists so framing and handshake code can be exercised with
// real byte-for-byte round trips without this package depending on an
// actual crypto library, which is explicitly out of scope here.
type fake struct {
	counter uint64
}

// NewFake returns a Service that performs no real cryptography. Never use
// it to claim confidentiality or authenticity; it exists purely to give
// the handshake and chunk-framing machinery concrete bytes to push
// through in tests and local runs.
func NewFake() Service {
	return &fake{}
}

const fakeOverhead = 8

var fakeTrailer = [fakeOverhead]byte{0xDE, 0xAD, 0xBE, 0xEF, 0xDE, 0xAD, 0xBE, 0xEF}

func (f *fake) Nonce() []byte {
	f.counter++
	n := make([]byte, 24)
	for i := range n {
		n[i] = byte(f.counter >> (uint(i%8) * 8))
	}
	return n
}

func (f *fake) SessionKey(localPrivate, peerPublic []byte) ([]byte, error) {
	key := make([]byte, 32)
	for i := 0; i < 32; i++ {
		var a, b byte
		if i < len(localPrivate) {
			a = localPrivate[i]
		}
		if i < len(peerPublic) {
			b = peerPublic[i]
		}
		key[i] = a ^ b
	}
	return key, nil
}

func (f *fake) Overhead() int { return fakeOverhead }

func (f *fake) Box(key, nonce, plaintext []byte) []byte {
	out := make([]byte, 0, len(plaintext)+fakeOverhead)
	out = append(out, plaintext...)
	out = append(out, fakeTrailer[:]...)
	return out
}

func (f *fake) Unbox(key, nonce, envelope []byte) ([]byte, error) {
	if len(envelope) < fakeOverhead {
		return nil, ErrAuthFailed
	}
	split := len(envelope) - fakeOverhead
	trailer := envelope[split:]
	for i, b := range trailer {
		if b != fakeTrailer[i] {
			return nil, ErrAuthFailed
		}
	}
	return envelope[:split], nil
}
