// Package resolver turns host strings into routable IPv4 addresses.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"pingmonitor/internal/logging"
)

var logger = logging.WithPrefix("resolver")

// ErrResolution is returned when a host has no usable IPv4 address.
var ErrResolution = errors.New("host did not resolve to an IPv4 address")

// Resolver resolves a host string to an IPv4 address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (netip.Addr, error)
}

// Literal parses host as an IPv4 literal. The second return value reports
// whether host was any IP literal at all; IPv6 literals are returned with
// an ErrResolution error because resolution is IPv4 only.
func Literal(host string) (netip.Addr, bool, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(host))
	if err != nil {
		return netip.Addr{}, false, nil
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, true, fmt.Errorf("%w: %s is an IPv6 literal", ErrResolution, host)
	}
	return addr, true, nil
}

// LookupFunc matches net.Resolver.LookupIP.
type LookupFunc func(ctx context.Context, network, host string) ([]net.IP, error)

// System resolves names through the operating system resolver.
type System struct {
	lookup LookupFunc
}

// NewSystem returns a resolver backed by net.DefaultResolver.
func NewSystem() *System {
	return &System{lookup: net.DefaultResolver.LookupIP}
}

// NewSystemWithLookup returns a resolver that uses the given lookup function.
func NewSystemWithLookup(lookup LookupFunc) *System {
	return &System{lookup: lookup}
}

// Resolve implements Resolver.
func (s *System) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	host = strings.TrimSpace(host)
	if addr, isLiteral, err := Literal(host); isLiteral {
		return addr, err
	}
	if host == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty host", ErrResolution)
	}

	ips, err := s.lookup(ctx, "ip4", host)
	if err != nil {
		logger.WithField("host", host).Debugf("lookup failed: %v", err)
		return netip.Addr{}, fmt.Errorf("%w: %s: %v", ErrResolution, host, err)
	}
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			if addr = addr.Unmap(); addr.Is4() {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %s returned no A records", ErrResolution, host)
}
