package prober

import (
	"fmt"
	"strings"
	"time"
)

// Transport names accepted by New.
const (
	TransportICMP = "icmp"
	TransportExec = "exec"
	TransportTCP  = "tcp"
)

// Options selects and configures a transport.
type Options struct {
	Transport  string
	HardLimit  time.Duration
	Privileged bool
	Source     string
	ExecPath   string
	TCPPort    int
}

// New builds the configured transport wrapped in Supervise.
func New(opts Options) (Prober, error) {
	var p Prober
	switch strings.ToLower(strings.TrimSpace(opts.Transport)) {
	case "", TransportICMP:
		p = &ICMP{Privileged: opts.Privileged, Source: opts.Source}
	case TransportExec:
		p = &Exec{Path: opts.ExecPath}
	case TransportTCP:
		p = &TCP{Port: opts.TCPPort}
	default:
		return nil, fmt.Errorf("unknown probe transport %q", opts.Transport)
	}
	return Supervise(p, opts.HardLimit), nil
}
