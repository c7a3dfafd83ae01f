// Package prober executes single reachability probes against IPv4 addresses.
package prober

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"pingmonitor/internal/logging"
	"pingmonitor/internal/models"
)

var logger = logging.WithPrefix("prober")

const (
	// DefaultTimeout is the wait for one probe reply.
	DefaultTimeout = 2 * time.Second
	// DefaultHardLimit bounds a whole probe attempt, including process start-up.
	DefaultHardLimit = 6 * time.Second
)

var (
	// ErrTimeout means no reply arrived in time.
	ErrTimeout = errors.New("probe timed out")
	// ErrTransport covers permission problems, socket errors and spawn failures.
	ErrTransport = errors.New("probe transport error")
)

// Prober sends one probe and reports the outcome. Failures are carried in
// the outcome, never returned as errors.
type Prober interface {
	Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome
}

// Func adapts a function to the Prober interface.
type Func func(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome

// Probe implements Prober.
func (f Func) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
	return f(ctx, addr, timeout)
}

func success(rtt time.Duration) models.ProbeOutcome {
	if rtt < 0 {
		rtt = 0
	}
	return models.ProbeOutcome{Success: true, RTT: rtt}
}

func failure(kind error, format string, args ...any) models.ProbeOutcome {
	return models.ProbeOutcome{Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}

// contextFailure classifies a context error as a timeout.
func contextFailure(ctx context.Context, addr netip.Addr) models.ProbeOutcome {
	return failure(ErrTimeout, "%s: %v", addr, ctx.Err())
}
