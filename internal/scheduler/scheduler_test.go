package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingmonitor/internal/models"
	"pingmonitor/internal/registry"
)

// gatedMeasurer blocks each Measure call until release is closed (when set).
type gatedMeasurer struct {
	calls   int32
	entered chan string
	release chan struct{}
	counts  chan int
}

func newGatedMeasurer(gated bool) *gatedMeasurer {
	g := &gatedMeasurer{entered: make(chan string, 16), counts: make(chan int, 16)}
	if gated {
		g.release = make(chan struct{})
	}
	return g
}

func (g *gatedMeasurer) Measure(ctx context.Context, host string, count int) models.Measurement {
	atomic.AddInt32(&g.calls, 1)
	g.entered <- host
	g.counts <- count
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return models.UnreachableMeasurement(host, time.Now())
		}
	}
	return models.ReachableMeasurement(host, 12.5, time.Now())
}

func addHost(t *testing.T, r *registry.Registry, host string, interval time.Duration) models.HostEntry {
	t.Helper()
	entry, err := r.Add(host, interval)
	require.NoError(t, err)
	return entry
}

func TestRebuildIsIdempotent(t *testing.T) {
	reg := registry.New()
	a := addHost(t, reg, "8.8.8.8", 5*time.Second)
	b := addHost(t, reg, "1.1.1.1", 10*time.Second)
	c := addHost(t, reg, "9.9.9.9", 5*time.Second)
	c.Enabled = false
	_, err := reg.Update(c)
	require.NoError(t, err)

	s := New(reg, newGatedMeasurer(false), Options{Workers: 2})
	defer s.Stop()

	s.Rebuild(reg.Entries())
	first := s.Active()
	s.Rebuild(reg.Entries())
	second := s.Active()

	assert.Equal(t, first, second)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, second)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestRebuildDropsRemovedEntries(t *testing.T) {
	reg := registry.New()
	a := addHost(t, reg, "8.8.8.8", 5*time.Second)
	b := addHost(t, reg, "1.1.1.1", 5*time.Second)

	s := New(reg, newGatedMeasurer(false), Options{})
	defer s.Stop()

	s.Rebuild(reg.Entries())
	reg.Remove(a.ID)
	s.Rebuild(reg.Entries())

	assert.Equal(t, []string{b.ID}, s.Active())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestFireWritesBackResult(t *testing.T) {
	reg := registry.New()
	entry := addHost(t, reg, "8.8.8.8", 5*time.Second)

	var notified []string
	var mu sync.Mutex
	m := newGatedMeasurer(false)
	s := New(reg, m, Options{OnResult: func(id string, _ models.Measurement) {
		mu.Lock()
		notified = append(notified, id)
		mu.Unlock()
	}})
	defer s.Stop()

	require.NoError(t, s.Fire(entry.ID))

	got, ok := reg.Lookup(entry.ID)
	require.True(t, ok)
	require.NotNil(t, got.LastResult)
	assert.True(t, got.LastResult.Reachable)
	assert.Equal(t, "8.8.8.8", got.Host)
	assert.Equal(t, 5*time.Second, got.Interval.Std())
	assert.True(t, got.Enabled)
	assert.Equal(t, 1, <-m.counts)

	mu.Lock()
	assert.Equal(t, []string{entry.ID}, notified)
	mu.Unlock()
}

func TestFireUsesCurrentHost(t *testing.T) {
	reg := registry.New()
	entry := addHost(t, reg, "8.8.8.8", 5*time.Second)

	m := newGatedMeasurer(false)
	s := New(reg, m, Options{})
	defer s.Stop()
	s.Rebuild(reg.Entries())

	entry.Host = "1.1.1.1"
	_, err := reg.Update(entry)
	require.NoError(t, err)

	require.NoError(t, s.Fire(entry.ID))
	assert.Equal(t, "1.1.1.1", <-m.entered)
}

func TestFireForRemovedEntryIsNoop(t *testing.T) {
	reg := registry.New()
	m := newGatedMeasurer(false)
	s := New(reg, m, Options{})
	defer s.Stop()

	require.NoError(t, s.Fire("gone"))
	assert.Zero(t, atomic.LoadInt32(&m.calls))
}

func TestRemoveDuringInFlightFire(t *testing.T) {
	reg := registry.New()
	entry := addHost(t, reg, "8.8.8.8", 5*time.Second)

	var notified int32
	m := newGatedMeasurer(true)
	s := New(reg, m, Options{OnResult: func(string, models.Measurement) { atomic.AddInt32(&notified, 1) }})
	defer s.Stop()

	done := make(chan error, 1)
	go func() { done <- s.Fire(entry.ID) }()

	<-m.entered
	require.True(t, reg.Remove(entry.ID))
	s.Rebuild(reg.Entries())
	close(m.release)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fire did not complete")
	}
	_, ok := reg.Lookup(entry.ID)
	assert.False(t, ok)
	assert.Zero(t, atomic.LoadInt32(&notified))
	assert.Empty(t, s.Active())
}

func TestOverlappingFireIsSkipped(t *testing.T) {
	reg := registry.New()
	entry := addHost(t, reg, "8.8.8.8", time.Second)

	m := newGatedMeasurer(true)
	s := New(reg, m, Options{})
	defer s.Stop()

	done := make(chan struct{})
	go func() {
		_ = s.Fire(entry.ID)
		close(done)
	}()
	<-m.entered

	require.NoError(t, s.Fire(entry.ID))
	assert.EqualValues(t, 1, atomic.LoadInt32(&m.calls))

	close(m.release)
	<-done
}

func TestStopCancelsInFlightAndRejectsFires(t *testing.T) {
	reg := registry.New()
	entry := addHost(t, reg, "8.8.8.8", time.Second)

	m := newGatedMeasurer(true)
	s := New(reg, m, Options{})
	s.Start()
	s.Rebuild(reg.Entries())

	done := make(chan error, 1)
	go func() { done <- s.Fire(entry.ID) }()
	<-m.entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("stop did not return")
	}
	<-done

	assert.ErrorIs(t, s.Fire(entry.ID), ErrStopped)
	assert.Empty(t, s.Active())
	s.Stop()
}

func TestScheduledFireEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real timer")
	}
	reg := registry.New()
	entry := addHost(t, reg, "8.8.8.8", time.Second)

	s := New(reg, newGatedMeasurer(false), Options{})
	s.Start()
	defer s.Stop()
	s.Rebuild(reg.Entries())

	assert.Eventually(t, func() bool {
		got, ok := reg.Lookup(entry.ID)
		return ok && got.LastResult != nil
	}, 4*time.Second, 50*time.Millisecond)

	got, _ := reg.Lookup(entry.ID)
	require.NotNil(t, got.LastResult)
	assert.True(t, got.LastResult.Reachable)
	require.NotNil(t, got.LastResult.LatencyMs)
	assert.Equal(t, entry.Host, got.Host)
	assert.Equal(t, entry.Interval, got.Interval)
	assert.Equal(t, entry.Enabled, got.Enabled)
}

func TestEveryKeepsExactInterval(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 900_000_000, time.UTC)
	next := every(1500 * time.Millisecond).Next(base)
	assert.Equal(t, base.Add(1500*time.Millisecond), next)
	assert.Equal(t, base.Add(3*time.Second), every(1500*time.Millisecond).Next(next))
}

func TestScheduledFiresFollowInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real timer")
	}
	const interval = 1500 * time.Millisecond
	reg := registry.New()
	addHost(t, reg, "8.8.8.8", interval)

	var (
		mu    sync.Mutex
		fires []time.Duration
		start time.Time
	)
	s := New(reg, newGatedMeasurer(false), Options{OnResult: func(string, models.Measurement) {
		mu.Lock()
		fires = append(fires, time.Since(start))
		mu.Unlock()
	}})
	s.Start()
	defer s.Stop()

	mu.Lock()
	start = time.Now()
	mu.Unlock()
	s.Rebuild(reg.Entries())

	// Fires are due at 1.5s, 3s and 4.5s.
	time.Sleep(4800 * time.Millisecond)

	mu.Lock()
	got := append([]time.Duration(nil), fires...)
	mu.Unlock()

	require.Len(t, got, 3, "fires at %v", got)
	assert.GreaterOrEqual(t, got[0], interval, "first fire came before a full interval")
	for i := 1; i < len(got); i++ {
		gap := got[i] - got[i-1]
		assert.InDelta(t, float64(interval), float64(gap), float64(250*time.Millisecond), "gap %d was %v", i, gap)
	}
}

func TestRebuildDelaysFirstFireByInterval(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real timer")
	}
	const interval = 2 * time.Second
	reg := registry.New()
	addHost(t, reg, "8.8.8.8", interval)

	fired := make(chan time.Time, 4)
	s := New(reg, newGatedMeasurer(false), Options{OnResult: func(string, models.Measurement) {
		fired <- time.Now()
	}})
	s.Start()
	defer s.Stop()

	// Rebuild just before a wall-clock second boundary.
	now := time.Now()
	wait := now.Truncate(time.Second).Add(900 * time.Millisecond).Sub(now)
	if wait < 0 {
		wait += time.Second
	}
	time.Sleep(wait)
	rebuilt := time.Now()
	s.Rebuild(reg.Entries())

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(rebuilt), interval)
	case <-time.After(interval + time.Second):
		t.Fatal("no fire within the interval")
	}
}
