// Package handshakemsg defines the three messages exchanged during a
// peer's handshake and their binary encoding, using the accumulated-error
// Writer/Reader pattern from pkg/binio so each codec reads as a
// flat field list.
package handshakemsg

import (
	"bytes"
	"errors"

	"github.com/driftnode/driftnode/pkg/binio"
)

// ErrTrailingBytes is returned by the decoders when a payload carries
// more bytes than the message defines; a short payload surfaces as the
// reader's own io error instead.
var ErrTrailingBytes = errors.New("handshakemsg: trailing bytes after message")

// ConnectionMessage is the first message exchanged, in plaintext: the
// sender's listening port, public key, proof-of-work stamp and a fresh
// nonce. Both sides derive the session key from the exchanged public
// keys; everything after this message is encrypted under it.
type ConnectionMessage struct {
	Port        uint16
	PublicKey   []byte
	ProofOfWork []byte
	Nonce       []byte
	Version     string
}

// Encode serializes m for transmission as a chunk payload.
func (m ConnectionMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	w.WriteBE(m.Port)
	w.VarBytes(m.PublicKey)
	w.VarBytes(m.ProofOfWork)
	w.VarBytes(m.Nonce)
	w.VarBytes([]byte(m.Version))
	if w.Err != nil {
		return nil, w.Err
	}
	return buf.Bytes(), nil
}

// DecodeConnectionMessage parses a ConnectionMessage from a chunk payload.
func DecodeConnectionMessage(data []byte) (ConnectionMessage, error) {
	br := bytes.NewReader(data)
	r := binio.NewReader(br)
	var m ConnectionMessage
	r.ReadBE(&m.Port)
	m.PublicKey = r.VarBytes()
	m.ProofOfWork = r.VarBytes()
	m.Nonce = r.VarBytes()
	m.Version = string(r.VarBytes())
	if r.Err != nil {
		return ConnectionMessage{}, r.Err
	}
	if br.Len() != 0 {
		return ConnectionMessage{}, ErrTrailingBytes
	}
	return m, nil
}

// MetadataMessage is the second message: the sender's negotiated version
// string and connection policy flags.
type MetadataMessage struct {
	Version        string
	DisableMempool bool
	PrivateNode    bool
}

// Encode serializes m for transmission as a chunk payload.
func (m MetadataMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	w.VarBytes([]byte(m.Version))
	w.Write(m.DisableMempool)
	w.Write(m.PrivateNode)
	if w.Err != nil {
		return nil, w.Err
	}
	return buf.Bytes(), nil
}

// DecodeMetadataMessage parses a MetadataMessage from a chunk payload.
func DecodeMetadataMessage(data []byte) (MetadataMessage, error) {
	br := bytes.NewReader(data)
	r := binio.NewReader(br)
	var m MetadataMessage
	m.Version = string(r.VarBytes())
	r.Read(&m.DisableMempool)
	r.Read(&m.PrivateNode)
	if r.Err != nil {
		return MetadataMessage{}, r.Err
	}
	if br.Len() != 0 {
		return MetadataMessage{}, ErrTrailingBytes
	}
	return m, nil
}

// AckMessage is the final, empty handshake message; its presence alone
// confirms the handshake completed.
type AckMessage struct{}

// Encode serializes m, always an empty payload.
func (m AckMessage) Encode() ([]byte, error) {
	return nil, nil
}

// DecodeAckMessage validates that data is the empty ack payload.
func DecodeAckMessage(data []byte) (AckMessage, error) {
	if len(data) != 0 {
		return AckMessage{}, ErrTrailingBytes
	}
	return AckMessage{}, nil
}
