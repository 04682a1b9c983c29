// Package dnsresolver wraps net.Resolver behind the narrow interface
// pkg/effects calls through. DNS resolution internals are explicitly out
// of scope for this node; this package's only job is to turn a
// host:port seed address into a list of dialable host:port addresses.
package dnsresolver

import (
	"context"
	"net"
	"time"
)

// Resolver looks up the addresses behind a DNS seed's host:port.
type Resolver struct {
	impl    *net.Resolver
	timeout time.Duration
}

// New returns a Resolver using the standard library's resolver with the
// given per-lookup timeout.
func New(timeout time.Duration) *Resolver {
	return &Resolver{impl: net.DefaultResolver, timeout: timeout}
}

// Lookup resolves address's host part to its A/AAAA records and recombines
// each with the original port.
func (r *Resolver) Lookup(address string) ([]string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ips, err := r.impl.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.JoinHostPort(ip.IP.String(), port))
	}
	return out, nil
}
