// Package engine runs the main loop: block on the reactor, translate
// each readiness event into an action, dispatch it through the store, and
// let the reducer and effects do the rest. The engine is also where
// everything that needs a live net.Conn happens (registering dialed
// sockets, closing torn-down peers, accepting on the listener), because
// connections never enter State; peers and requests reference sockets by
// token only.
package engine

import (
	"bufio"
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/driftnode/driftnode/pkg/action"
	"github.com/driftnode/driftnode/pkg/handshake"
	"github.com/driftnode/driftnode/pkg/peerconn"
	"github.com/driftnode/driftnode/pkg/reactor"
	"github.com/driftnode/driftnode/pkg/state"
	"github.com/driftnode/driftnode/pkg/store"
)

// pollTimeout bounds one WaitForEvents call so ticks fire and ctx
// cancellation is noticed even on a fully idle node.
const pollTimeout = time.Second

// bufferedReaders is implemented by reactor backends that wrap
// registered connections in a buffer; inbound bytes must then be pulled
// back out of that buffer rather than the raw connection.
type bufferedReaders interface {
	Reader(address string) (*bufio.Reader, bool)
}

// Engine owns the loop plus the connection handles the state machine
// refers to by token.
type Engine struct {
	log       *zap.Logger
	store     *store.Store
	reactor   reactor.Reactor
	dials     *peerconn.Service
	transport *handshake.Transport

	listenAddress string
	listener      net.Listener

	conns map[string]net.Conn

	// publish, when set, receives the state after every processed batch;
	// the introspection server uses it to keep its /state snapshot fresh.
	publish func(*state.State)
}

// New wires an Engine. dials must have been constructed with the
// reactor's Signal as its wake callback so completed dials surface as
// wakeups.
func New(log *zap.Logger, st *store.Store, r reactor.Reactor, dials *peerconn.Service, transport *handshake.Transport, listenAddress string, publish func(*state.State)) *Engine {
	return &Engine{
		log:           log,
		store:         st,
		reactor:       r,
		dials:         dials,
		transport:     transport,
		listenAddress: listenAddress,
		conns:         make(map[string]net.Conn),
		publish:       publish,
	}
}

// Run drives the loop until ctx is canceled. It dispatches the initial
// DNS discovery, then processes reactor batches forever.
func (e *Engine) Run(ctx context.Context) error {
	if e.listenAddress != "" {
		ln, err := net.Listen("tcp", e.listenAddress)
		if err != nil {
			return err
		}
		e.listener = ln
		go e.acceptLoop(ln)
		e.log.Info("listening", zap.String("address", e.listenAddress))
	}

	if seed := e.store.State().Config.DNSSeedAddress; seed != "" {
		e.store.Dispatch(action.PeersDNSLookupInit{Address: seed})
	}

	for {
		if err := ctx.Err(); err != nil {
			e.shutdown()
			return nil
		}

		events, err := e.reactor.WaitForEvents(pollTimeout)
		if err != nil {
			e.log.Error("wait for events", zap.Error(err))
			continue
		}
		for _, ev := range events {
			e.handleEvent(ev)
		}

		e.maybeSnapshot()
		if e.publish != nil {
			e.publish(e.store.State())
		}
	}
}

func (e *Engine) handleEvent(ev reactor.Event) {
	switch ev.Kind {
	case reactor.EventWake:
		e.drainDials()
		e.store.Dispatch(action.WakeupEvent{})
	case reactor.EventReadable:
		e.store.Dispatch(action.P2pPeerEvent{Token: uint64(ev.Token), Address: ev.Address, IsReadable: true})
	case reactor.EventWritable:
		e.store.Dispatch(action.P2pPeerEvent{Token: uint64(ev.Token), Address: ev.Address, IsWritable: true})
	case reactor.EventClosed:
		e.store.Dispatch(action.P2pPeerEvent{Token: uint64(ev.Token), Address: ev.Address, IsClosed: true})
	case reactor.EventServer:
		// The accept goroutine owns the listener; nothing to do here.
	case reactor.EventTick:
		e.store.Dispatch(action.TickEvent{})
	}
}

// drainDials registers every completed dial with the reactor and the
// handshake transport, then reports it into the state machine. Failed
// dials become connection errors.
func (e *Engine) drainDials() {
	for _, res := range e.dials.Drain() {
		if res.Err != nil {
			e.store.Dispatch(action.PeerConnectionError{Address: res.Address, Error: res.Err.Error()})
			continue
		}
		p, ok := e.store.State().Peers[res.Address]
		if !ok || p.Status != state.StatusConnecting || p.ConnectingSubStatus != state.ConnectingPending {
			// The peer was torn down while the dial was in flight.
			res.Conn.Close()
			continue
		}
		tok, err := e.reactor.Register(res.Address, res.Conn)
		if err != nil {
			res.Conn.Close()
			e.store.Dispatch(action.PeerConnectionError{Address: res.Address, Error: err.Error()})
			continue
		}

		var reader *bufio.Reader
		if br, ok := e.reactor.(bufferedReaders); ok {
			if r, found := br.Reader(res.Address); found {
				reader = r
			}
		}
		if c, ok := res.Conn.(handshake.Conn); ok {
			if reader != nil {
				e.transport.Attach(res.Address, c, reader)
			} else {
				e.transport.Attach(res.Address, c, nil)
			}
		}
		e.conns[res.Address] = res.Conn

		e.store.Dispatch(action.PeerConnectionSuccess{Address: res.Address, Token: uint64(tok)})
	}
}

// ClosePeer releases everything the engine holds for address: the
// reactor registration, the handshake session and the socket itself. It
// implements the closer service the disconnect effect calls through.
func (e *Engine) ClosePeer(address string) {
	if err := e.reactor.Unregister(address); err != nil {
		e.log.Debug("unregister peer", zap.String("peer", address), zap.Error(err))
	}
	e.transport.Detach(address)
	if conn, ok := e.conns[address]; ok {
		conn.Close()
		delete(e.conns, address)
	}
}

// acceptLoop drains the listener so the endpoint is live; inbound peers
// are not admitted into the overlay, so accepted connections are closed
// immediately.
func (e *Engine) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		e.log.Debug("inbound connection rejected", zap.Stringer("remote", conn.RemoteAddr()))
		conn.Close()
	}
}

func (e *Engine) maybeSnapshot() {
	st := e.store.State()
	interval := st.Config.SnapshotInterval
	if interval == 0 {
		return
	}
	if st.LastActionID-st.LastSnapshotAtID < interval {
		return
	}
	e.store.Dispatch(action.StorageStateSnapshotCreate{
		AnchorActionID: action.ID(st.LastActionID),
	})
}

func (e *Engine) shutdown() {
	if e.listener != nil {
		e.listener.Close()
	}
	for addr, conn := range e.conns {
		conn.Close()
		delete(e.conns, addr)
	}
	e.reactor.Close()
}
