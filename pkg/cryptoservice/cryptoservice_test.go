package cryptoservice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeBoxUnboxRoundTrip(t *testing.T) {
	svc := NewFake()
	key, err := svc.SessionKey([]byte("local-private"), []byte("peer-public"))
	require.NoError(t, err)

	nonce := svc.Nonce()
	plaintext := []byte("hello peer")
	envelope := svc.Box(key, nonce, plaintext)
	require.Equal(t, len(plaintext)+svc.Overhead(), len(envelope))

	got, err := svc.Unbox(key, nonce, envelope)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestFakeUnboxRejectsTampering(t *testing.T) {
	svc := NewFake()
	key, _ := svc.SessionKey([]byte("a"), []byte("b"))
	envelope := svc.Box(key, svc.Nonce(), []byte("payload"))
	envelope[len(envelope)-1] ^= 0xFF

	_, err := svc.Unbox(key, svc.Nonce(), envelope)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestNoncesVary(t *testing.T) {
	svc := NewFake()
	a := svc.Nonce()
	b := svc.Nonce()
	require.NotEqual(t, a, b)
}
