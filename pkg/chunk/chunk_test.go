package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type partialWriter struct {
	buf     bytes.Buffer
	perCall int
}

func (p *partialWriter) Write(b []byte) (int, error) {
	n := len(b)
	if p.perCall > 0 && n > p.perCall {
		n = p.perCall
	}
	return p.buf.Write(b[:n])
}

type partialReader struct {
	buf     *bytes.Reader
	perCall int
}

func (p *partialReader) Read(b []byte) (int, error) {
	if p.perCall > 0 && len(b) > p.perCall {
		b = b[:p.perCall]
	}
	return p.buf.Read(b)
}

func TestWriteReadRoundTrip(t *testing.T) {
	payload := []byte("handshake connection message payload")
	w, err := NewWriteState(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload)+2, w.Len())

	pw := &partialWriter{perCall: 3}
	var wrote int
	for !w.Done() {
		n, err := w.Poll(pw)
		wrote += n
		if err == ErrWouldBlock {
			continue
		}
		require.NoError(t, err)
	}
	require.Equal(t, w.Len(), wrote)

	r := NewReadState()
	pr := &partialReader{buf: bytes.NewReader(pw.buf.Bytes()), perCall: 2}
	var read int
	for !r.Done() {
		n, err := r.Poll(pr)
		read += n
		if err == ErrWouldBlock {
			continue
		}
		require.NoError(t, err)
	}

	require.Equal(t, wrote, read)
	require.Equal(t, payload, r.Payload())
}

func TestPayloadTooLargeRejected(t *testing.T) {
	_, err := NewWriteState(make([]byte, MaxChunkSize+1))
	require.ErrorIs(t, err, ErrChunkTooLarge)
}

func TestEmptyPayload(t *testing.T) {
	w, err := NewWriteState(nil)
	require.NoError(t, err)
	pw := &partialWriter{}
	_, err = w.Poll(pw)
	require.NoError(t, err)
	require.True(t, w.Done())

	r := NewReadState()
	pr := &partialReader{buf: bytes.NewReader(pw.buf.Bytes())}
	_, err = r.Poll(pr)
	require.NoError(t, err)
	require.True(t, r.Done())
	require.Empty(t, r.Payload())
}

func TestSplit(t *testing.T) {
	require.Len(t, Split(nil, 10), 1)
	require.Len(t, Split(make([]byte, 10), 10), 1)
	pieces := Split(make([]byte, 25), 10)
	require.Len(t, pieces, 3)
	require.Len(t, pieces[0], 10)
	require.Len(t, pieces[2], 5)
}
