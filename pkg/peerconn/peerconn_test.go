package peerconn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDialSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	var woke bool
	svc := New(time.Second, func() { woke = true })
	require.NoError(t, svc.Dial(ln.Addr().String()))

	select {
	case r := <-svc.Results():
		require.NoError(t, r.Err)
		require.NotNil(t, r.Conn)
		r.Conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial result")
	}
	require.True(t, woke)
}

func TestDialFailure(t *testing.T) {
	svc := New(200*time.Millisecond, nil)
	require.NoError(t, svc.Dial("127.0.0.1:1"))

	select {
	case r := <-svc.Results():
		require.Error(t, r.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial result")
	}
}

func TestDialRejectsEmptyAddress(t *testing.T) {
	svc := New(time.Second, nil)
	require.Error(t, svc.Dial(""))
}
