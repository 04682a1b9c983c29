//go:build !linux

package reactor

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"
)

// portableReactor is the non-Linux readiness backend. Lacking a portable
// epoll/kqueue binding in this dependency set, it emulates readability
// with bufio.Reader.Peek, which blocks until at least one byte is
// available without consuming it, and reports a registered connection as
// writable whenever write interest is armed. Each registered connection
// gets one goroutine blocked in Peek; its result is delivered on a shared
// event channel the same way TokenWake delivers worker wakeups.
type portableReactor struct {
	mu      sync.Mutex
	entries map[string]*portableEntry
	byAddr  map[string]Token
	events  chan Event
	wake    chan struct{}
	nextTok Token
}

type portableEntry struct {
	token    Token
	conn     net.Conn
	reader   *bufio.Reader
	stop     chan struct{}
	writable bool
}

// NewPlatform returns the portable, non-epoll Reactor used on every GOOS
// other than linux.
func NewPlatform() (Reactor, error) {
	return &portableReactor{
		entries: make(map[string]*portableEntry),
		byAddr:  make(map[string]Token),
		events:  make(chan Event, 64),
		wake:    make(chan struct{}, 1),
		nextTok: firstConnToken,
	}, nil
}

func (r *portableReactor) Register(address string, conn net.Conn) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[address]; exists {
		return 0, fmt.Errorf("reactor: %q already registered", address)
	}
	tok := r.nextTok
	r.nextTok++
	entry := &portableEntry{
		token:  tok,
		conn:   conn,
		reader: bufio.NewReader(conn),
		stop:   make(chan struct{}),
	}
	r.entries[address] = entry
	r.byAddr[address] = tok

	go r.watchReadable(address, entry)
	return tok, nil
}

func (r *portableReactor) watchReadable(address string, entry *portableEntry) {
	for {
		select {
		case <-entry.stop:
			return
		default:
		}
		if _, err := entry.reader.Peek(1); err != nil {
			select {
			case r.events <- Event{Token: entry.token, Address: address, Kind: EventClosed}:
			case <-entry.stop:
			}
			return
		}
		select {
		case r.events <- Event{Token: entry.token, Address: address, Kind: EventReadable}:
		case <-entry.stop:
			return
		}
		// Back off until the buffered bytes are consumed, otherwise this
		// loop spins emitting readable events for the same bytes.
		for entry.reader.Buffered() > 0 {
			select {
			case <-entry.stop:
				return
			case <-time.After(time.Millisecond):
			}
		}
	}
}

// Reader returns the buffered reader wrapping address's connection, which
// callers must read from instead of the raw net.Conn so bytes peeked by
// the readability watcher aren't lost.
func (r *portableReactor) Reader(address string) (*bufio.Reader, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[address]
	if !ok {
		return nil, false
	}
	return e.reader, true
}

func (r *portableReactor) SetWritable(address string, writable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[address]
	if !ok {
		return fmt.Errorf("reactor: unknown address %q", address)
	}
	e.writable = writable
	if writable {
		select {
		case r.events <- Event{Token: e.token, Address: address, Kind: EventWritable}:
		default:
		}
	}
	return nil
}

func (r *portableReactor) Unregister(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[address]
	if !ok {
		return nil
	}
	close(e.stop)
	delete(r.entries, address)
	delete(r.byAddr, address)
	return nil
}

func (r *portableReactor) WaitForEvents(timeout time.Duration) ([]Event, error) {
	var out []Event
	deadline := time.After(timeout)
	select {
	case ev := <-r.events:
		out = append(out, ev)
	case <-r.wake:
		out = append(out, Event{Kind: EventWake, Token: TokenWake})
	case <-deadline:
	}
	for {
		select {
		case ev := <-r.events:
			out = append(out, ev)
			continue
		case <-r.wake:
			out = append(out, Event{Kind: EventWake, Token: TokenWake})
			continue
		default:
		}
		break
	}

	// A blocking-socket backend can't observe true write readiness, so
	// every batch re-offers writability for connections with write
	// interest still armed; the write effect stops arming it once the
	// message is flushed.
	r.mu.Lock()
	for addr, e := range r.entries {
		if e.writable {
			out = append(out, Event{Token: e.token, Address: addr, Kind: EventWritable})
		}
	}
	r.mu.Unlock()

	if len(out) == 0 {
		return []Event{{Kind: EventTick}}, nil
	}
	return out, nil
}

func (r *portableReactor) Signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *portableReactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		close(e.stop)
	}
	r.entries = make(map[string]*portableEntry)
	return nil
}
