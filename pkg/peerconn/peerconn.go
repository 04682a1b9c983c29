// Package peerconn implements the outgoing-dial service: PeerConnectionInit
// effects call Dial, which starts connecting in a goroutine (net.Dial is
// blocking) and reports completion through a result channel the engine
// drains and turns into PeerConnectionSuccess/PeerConnectionError actions.
// There is no retry/backoff or bookkeeping here; the reducer's
// Peer.Status is the single source of truth for which addresses are
// mid-dial, and retry policy is whole-peer (a fresh PeerConnectionInit).
package peerconn

import (
	"fmt"
	"net"
	"time"
)

// Result is what a completed (successful or failed) dial reports.
type Result struct {
	Address string
	Conn    net.Conn
	Err     error
}

// Service dials addresses in the background and reports results on a
// channel the caller drains.
type Service struct {
	timeout time.Duration
	results chan Result
	onWake  func()
}

// New returns a Service with the given per-dial timeout. onWake, if
// non-nil, is called every time a result is enqueued so the caller's
// reactor can be signaled (mirrors workerchan's wakeup convention).
func New(timeout time.Duration, onWake func()) *Service {
	return &Service{
		timeout: timeout,
		results: make(chan Result, 64),
		onWake:  onWake,
	}
}

// Dial starts connecting to address in a new goroutine. It never blocks
// and never returns a connection error directly; PeerConnectionPending is
// always the next observable action, with
// PeerConnectionSuccess/PeerConnectionError following once Results is
// drained.
func (s *Service) Dial(address string) error {
	if address == "" {
		return fmt.Errorf("peerconn: empty address")
	}
	go func() {
		conn, err := net.DialTimeout("tcp", address, s.timeout)
		s.results <- Result{Address: address, Conn: conn, Err: err}
		if s.onWake != nil {
			s.onWake()
		}
	}()
	return nil
}

// Results returns the channel the engine drains after a wakeup.
func (s *Service) Results() <-chan Result {
	return s.results
}

// Drain returns all results currently queued without blocking.
func (s *Service) Drain() []Result {
	var out []Result
	for {
		select {
		case r := <-s.results:
			out = append(out, r)
		default:
			return out
		}
	}
}
