//go:build linux

package reactor

import (
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// epollReactor is the Linux readiness backend: one epoll instance for all
// registered peer sockets plus an eventfd implementing Signal/TokenWake.
type epollReactor struct {
	epfd    int
	wakeFD  int
	mu      sync.Mutex
	byToken map[Token]*connEntry
	byAddr  map[string]Token
	byFD    map[int]Token
	nextTok Token
}

type connEntry struct {
	address  string
	conn     net.Conn
	rawFD    int
	writable bool
}

// NewPlatform returns the Linux epoll-backed Reactor.
func NewPlatform() (Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}
	r := &epollReactor{
		epfd:    epfd,
		wakeFD:  wakeFD,
		byToken: make(map[Token]*connEntry),
		byAddr:  make(map[string]Token),
		byFD:    make(map[int]Token),
		nextTok: firstConnToken,
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFD)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &ev); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFD)
		return nil, fmt.Errorf("reactor: epoll_ctl add wake: %w", err)
	}
	return r, nil
}

// rawFD extracts the underlying file descriptor from a net.Conn that
// implements syscall.Conn (true of *net.TCPConn, which is what this node
// dials). The descriptor is only used to register/modify/remove it from
// the epoll instance; Go's runtime poller keeps owning the fd for actual
// reads and writes.
func rawFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("reactor: connection does not support SyscallConn")
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	err = rc.Control(func(p uintptr) {
		fd = int(p)
	})
	if err != nil {
		return 0, err
	}
	return fd, nil
}

func (r *epollReactor) Register(address string, conn net.Conn) (Token, error) {
	fd, err := rawFD(conn)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byAddr[address]; exists {
		return 0, fmt.Errorf("reactor: %q already registered", address)
	}
	tok := r.nextTok
	r.nextTok++
	r.byToken[tok] = &connEntry{address: address, conn: conn, rawFD: fd}
	r.byAddr[address] = tok
	r.byFD[fd] = tok

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLRDHUP, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		delete(r.byToken, tok)
		delete(r.byAddr, address)
		delete(r.byFD, fd)
		return 0, err
	}
	return tok, nil
}

func (r *epollReactor) SetWritable(address string, writable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.byAddr[address]
	if !ok {
		return fmt.Errorf("reactor: unknown address %q", address)
	}
	entry := r.byToken[tok]
	entry.writable = writable

	events := uint32(unix.EPOLLIN | unix.EPOLLRDHUP)
	if writable {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(entry.rawFD)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, entry.rawFD, &ev)
}

func (r *epollReactor) Unregister(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.byAddr[address]
	if !ok {
		return nil
	}
	entry := r.byToken[tok]
	delete(r.byAddr, address)
	delete(r.byToken, tok)
	delete(r.byFD, entry.rawFD)
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, entry.rawFD, nil)
}

func (r *epollReactor) WaitForEvents(timeout time.Duration) ([]Event, error) {
	var raw [64]unix.EpollEvent
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	n, err := unix.EpollWait(r.epfd, raw[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return []Event{{Kind: EventTick}}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == r.wakeFD {
			var buf [8]byte
			unix.Read(r.wakeFD, buf[:])
			out = append(out, Event{Kind: EventWake, Token: TokenWake})
			continue
		}
		tok, ok := r.byFD[fd]
		if !ok {
			// Readiness for an fd unregistered earlier in this batch.
			continue
		}
		entry := r.byToken[tok]
		bits := raw[i].Events
		if bits&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			out = append(out, Event{Token: tok, Address: entry.address, Kind: EventClosed})
			continue
		}
		if bits&unix.EPOLLIN != 0 {
			out = append(out, Event{Token: tok, Address: entry.address, Kind: EventReadable})
		}
		if bits&unix.EPOLLOUT != 0 {
			out = append(out, Event{Token: tok, Address: entry.address, Kind: EventWritable})
		}
	}
	return out, nil
}

func (r *epollReactor) Signal() {
	var one [8]byte
	one[0] = 1
	unix.Write(r.wakeFD, one[:])
}

func (r *epollReactor) Close() error {
	unix.Close(r.wakeFD)
	return unix.Close(r.epfd)
}
