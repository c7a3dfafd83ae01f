// Package measure runs probe rounds against a host and summarises them.
package measure

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"pingmonitor/internal/logging"
	"pingmonitor/internal/models"
	"pingmonitor/internal/prober"
	"pingmonitor/internal/resolver"
)

var logger = logging.WithPrefix("measure")

// DefaultSpacing is the pause between probe rounds when count > 1.
const DefaultSpacing = 500 * time.Millisecond

// Measurer produces one summarised measurement for a host.
type Measurer interface {
	Measure(ctx context.Context, host string, count int) models.Measurement
}

// Aggregator resolves a host, probes it count times and averages the successful round trips.
type Aggregator struct {
	resolver resolver.Resolver
	prober   prober.Prober
	timeout  time.Duration
	spacing  time.Duration
	now      func() time.Time
}

// Option tweaks an Aggregator.
type Option func(*Aggregator)

// WithTimeout sets the per-probe reply timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithSpacing sets the pause between rounds. Zero disables it.
func WithSpacing(d time.Duration) Option {
	return func(a *Aggregator) {
		if d >= 0 {
			a.spacing = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an Aggregator.
func New(r resolver.Resolver, p prober.Prober, opts ...Option) *Aggregator {
	a := &Aggregator{
		resolver: r,
		prober:   p,
		timeout:  prober.DefaultTimeout,
		spacing:  DefaultSpacing,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Measure never fails: resolution and probe errors become an unreachable measurement.
func (a *Aggregator) Measure(ctx context.Context, host string, count int) models.Measurement {
	if count < 1 {
		count = 1
	}
	log := logger.WithField("host", host)

	addr, err := a.resolver.Resolve(ctx, host)
	if err != nil {
		log.Debugf("resolve failed: %v", err)
		return models.UnreachableMeasurement(host, a.now())
	}

	var (
		total    float64
		received int
	)
	for round := 0; round < count; round++ {
		if round > 0 && a.spacing > 0 {
			if !sleep(ctx, a.spacing) {
				log.Debug("measurement cancelled between rounds")
				break
			}
		}
		out := a.prober.Probe(ctx, addr, a.timeout)
		if !out.Success {
			log.WithFields(logrus.Fields{"addr": addr.String(), "round": round}).Debugf("probe failed: %v", out.Err)
			continue
		}
		total += out.RTTMillis()
		received++
	}

	if received == 0 {
		return models.UnreachableMeasurement(host, a.now())
	}
	avg := total / float64(received)
	log.WithFields(logrus.Fields{"latency_ms": avg, "received": received, "sent": count}).Debug("measured")
	return models.ReachableMeasurement(host, avg, a.now())
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
