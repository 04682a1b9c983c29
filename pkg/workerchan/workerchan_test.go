package workerchan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendRecv(t *testing.T) {
	wake := NewWakeup()
	req, resp := New[int](2, wake)

	req.Send(1)
	req.Send(2)

	select {
	case <-wake.C():
	case <-time.After(time.Second):
		t.Fatal("expected wakeup signal")
	}

	require.Equal(t, 1, resp.Recv())
	require.Equal(t, 2, resp.Recv())
}

func TestTrySendFullReturnsErr(t *testing.T) {
	req, _ := New[int](1, nil)
	require.NoError(t, req.TrySend(1))
	require.ErrorIs(t, req.TrySend(2), ErrFull)
}

func TestWakeupCoalesces(t *testing.T) {
	w := NewWakeup()
	w.Signal()
	w.Signal()
	w.Signal()

	<-w.C()
	select {
	case <-w.C():
		t.Fatal("expected no second pending signal")
	default:
	}
}

func TestTryRecvEmpty(t *testing.T) {
	_, resp := New[int](1, nil)
	_, ok := resp.TryRecv()
	require.False(t, ok)
}
