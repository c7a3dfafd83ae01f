package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const defaultDNSTimeout = 2 * time.Second

// DNS queries A records directly from a fixed list of nameservers.
type DNS struct {
	client  *dns.Client
	servers []string
}

// NewDNS returns a resolver for the given nameservers. Servers without a port use 53.
func NewDNS(servers []string, timeout time.Duration) *DNS {
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	normalised := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalised = append(normalised, s)
	}
	return &DNS{
		client:  &dns.Client{Net: "udp", Timeout: timeout},
		servers: normalised,
	}
}

// Resolve implements Resolver. Servers are tried in order; the first A record wins.
func (d *DNS) Resolve(ctx context.Context, host string) (netip.Addr, error) {
	host = strings.TrimSpace(host)
	if addr, isLiteral, err := Literal(host); isLiteral {
		return addr, err
	}
	if host == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty host", ErrResolution)
	}
	if len(d.servers) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: no nameservers configured", ErrResolution)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range d.servers {
		resp, _, err := d.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			logger.WithField("server", server).Debugf("query %s failed: %v", host, err)
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])
			continue
		}
		for _, rr := range resp.Answer {
			a, ok := rr.(*dns.A)
			if !ok {
				continue
			}
			if addr, ok := netip.AddrFromSlice(a.A); ok && addr.Unmap().Is4() {
				return addr.Unmap(), nil
			}
		}
		lastErr = fmt.Errorf("no A records from %s", server)
	}
	return netip.Addr{}, fmt.Errorf("%w: %s: %v", ErrResolution, host, lastErr)
}
