package prober

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingmonitor/internal/models"
)

var loopback = netip.MustParseAddr("127.0.0.1")

func TestSuperviseReturnsInnerOutcome(t *testing.T) {
	inner := Func(func(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
		return success(15 * time.Millisecond)
	})

	out := Supervise(inner, time.Second).Probe(context.Background(), loopback, 100*time.Millisecond)
	assert.True(t, out.Success)
	assert.Equal(t, 15*time.Millisecond, out.RTT)
}

func TestSuperviseCutsOffStuckProbe(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	inner := Func(func(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
		// Ignores ctx on purpose to simulate a wedged transport.
		<-release
		return success(time.Millisecond)
	})

	started := time.Now()
	out := Supervise(inner, 50*time.Millisecond).Probe(context.Background(), loopback, 10*time.Millisecond)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrTimeout)
	assert.Less(t, time.Since(started), time.Second)
}

func TestSuperviseCancelsInnerContext(t *testing.T) {
	cancelled := make(chan struct{})
	inner := Func(func(ctx context.Context, addr netip.Addr, timeout time.Duration) models.ProbeOutcome {
		<-ctx.Done()
		close(cancelled)
		return contextFailure(ctx, addr)
	})

	out := Supervise(inner, 20*time.Millisecond).Probe(context.Background(), loopback, 5*time.Millisecond)
	assert.ErrorIs(t, out.Err, ErrTimeout)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("inner probe context was not cancelled")
	}
}

func TestParseRTT(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   time.Duration
		ok     bool
	}{
		{
			name:   "darwin",
			output: "64 bytes from 8.8.8.8: icmp_seq=0 ttl=117 time=12.345 ms",
			want:   12345 * time.Microsecond,
			ok:     true,
		},
		{
			name:   "linux integer",
			output: "64 bytes from 1.1.1.1: icmp_seq=1 ttl=57 time=9 ms",
			want:   9 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "sub millisecond",
			output: "Reply from 127.0.0.1: bytes=32 time<1 ms TTL=128",
			want:   time.Millisecond,
			ok:     true,
		},
		{
			name:   "no reply",
			output: "1 packets transmitted, 0 packets received, 100.0% packet loss",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseRTT(tc.output)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, float64(tc.want), float64(got), float64(time.Microsecond))
			}
		})
	}
}

func TestExecArgs(t *testing.T) {
	darwin := &Exec{GOOS: "darwin"}
	assert.Equal(t, []string{"-c", "1", "-W", "2000", "-n", "8.8.8.8"},
		darwin.args(netip.MustParseAddr("8.8.8.8"), 2*time.Second))

	linux := &Exec{GOOS: "linux"}
	assert.Equal(t, []string{"-c", "1", "-W", "3", "-n", "8.8.8.8"},
		linux.args(netip.MustParseAddr("8.8.8.8"), 2500*time.Millisecond))
	assert.Equal(t, []string{"-c", "1", "-W", "1", "-n", "8.8.8.8"},
		linux.args(netip.MustParseAddr("8.8.8.8"), 100*time.Millisecond))
}

func TestExecMissingBinary(t *testing.T) {
	p := &Exec{Path: "/nonexistent/ping-binary"}
	out := p.Probe(context.Background(), loopback, time.Second)
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrTransport)
}

func TestTCPAcceptedConnection(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	p := &TCP{Port: ln.Addr().(*net.TCPAddr).Port}
	out := p.Probe(context.Background(), loopback, time.Second)
	require.True(t, out.Success, "outcome error: %v", out.Err)
	assert.GreaterOrEqual(t, out.RTT, time.Duration(0))
}

func TestTCPRefusedCountsAsReachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	out := (&TCP{Port: port}).Probe(context.Background(), loopback, time.Second)
	assert.True(t, out.Success, "outcome error: %v", out.Err)
}

func TestTCPCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := (&TCP{Port: 9}).Probe(ctx, netip.MustParseAddr("192.0.2.1"), time.Second)
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrTimeout)
}

func TestNewTransports(t *testing.T) {
	for _, name := range []string{"", "icmp", "EXEC", "tcp"} {
		p, err := New(Options{Transport: name})
		require.NoError(t, err, name)
		assert.IsType(t, &supervised{}, p)
	}

	_, err := New(Options{Transport: "carrier-pigeon"})
	assert.Error(t, err)
}
