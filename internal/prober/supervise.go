package prober

import (
	"context"
	"net/netip"
	"time"

	"pingmonitor/internal/models"
)

type supervised struct {
	inner Prober
	limit time.Duration
}

// Supervise bounds every probe of inner by limit. When the limit passes the
// attempt's context is cancelled and a timeout outcome is returned at once,
// whether or not inner has noticed the cancellation yet.
func Supervise(inner Prober, limit time.Duration) Prober {
	if limit <= 0 {
		limit = DefaultHardLimit
	}
	return &supervised{inner: inner, limit: limit}
}

func (s *supervised) Probe(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
	limit := s.limit
	if timeout > limit {
		limit = timeout
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan models.ProbeOutcome, 1)
	go func() {
		done <- s.inner.Probe(ctx, addr, timeout)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		logger.WithField("addr", addr.String()).Warnf("probe exceeded %s, abandoning", limit)
		return contextFailure(ctx, addr)
	}
}
