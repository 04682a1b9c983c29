package handshakemsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionMessageRoundTrip(t *testing.T) {
	m := ConnectionMessage{
		Port:        9734,
		PublicKey:   []byte("pubkey-bytes"),
		ProofOfWork: []byte("pow-stamp"),
		Nonce:       []byte("nonce-bytes"),
		Version:     "driftnode/0.1",
	}
	data, err := m.Encode()
	require.NoError(t, err)

	got, err := DecodeConnectionMessage(data)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestConnectionMessageRejectsTrailingBytes(t *testing.T) {
	m := ConnectionMessage{Port: 1, PublicKey: []byte("k")}
	data, err := m.Encode()
	require.NoError(t, err)

	_, err = DecodeConnectionMessage(append(data, 0xFF))
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestMetadataMessageRoundTrip(t *testing.T) {
	m := MetadataMessage{Version: "driftnode/0.1", DisableMempool: true}
	data, err := m.Encode()
	require.NoError(t, err)

	got, err := DecodeMetadataMessage(data)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestAckMessageRoundTrip(t *testing.T) {
	m := AckMessage{}
	data, err := m.Encode()
	require.NoError(t, err)
	require.Empty(t, data)

	_, err = DecodeAckMessage(data)
	require.NoError(t, err)

	_, err = DecodeAckMessage([]byte{1})
	require.ErrorIs(t, err, ErrTrailingBytes)
}
