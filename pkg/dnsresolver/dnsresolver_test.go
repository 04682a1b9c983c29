package dnsresolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLookupRejectsMissingPort(t *testing.T) {
	r := New(time.Second)
	_, err := r.Lookup("no-port-here")
	require.Error(t, err)
}

func TestLookupLocalhost(t *testing.T) {
	r := New(2 * time.Second)
	addrs, err := r.Lookup("localhost:4000")
	require.NoError(t, err)
	require.NotEmpty(t, addrs)
}
