package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingmonitor/internal/config"
	"pingmonitor/internal/measure"
	"pingmonitor/internal/models"
	"pingmonitor/internal/resolver"
)

type scriptedMeasurer struct {
	latency map[string]float64
	counts  []int
}

func (s *scriptedMeasurer) Measure(ctx context.Context, host string, count int) models.Measurement {
	s.counts = append(s.counts, count)
	if ms, ok := s.latency[host]; ok {
		return models.ReachableMeasurement(host, ms, time.Now())
	}
	return models.UnreachableMeasurement(host, time.Now())
}

func TestRunBattery(t *testing.T) {
	m := &scriptedMeasurer{latency: map[string]float64{"8.8.8.8": 12, "google.com": 120, "1.1.1.1": 600}}
	var out bytes.Buffer

	reachable := runBattery(context.Background(), &out, m, battery)
	assert.Equal(t, 4, reachable)
	assert.Equal(t, []int{1, 1, 1, 3, 1}, m.counts)

	text := out.String()
	assert.Contains(t, text, "Step 4: ping 8.8.8.8 (count=3)")
	assert.Contains(t, text, "green    8.8.8.8 reachable, 12.0 ms")
	assert.Contains(t, text, "yellow   google.com reachable, 120.0 ms")
	assert.Contains(t, text, "red      1.1.1.1 reachable, 600.0 ms")
	assert.Contains(t, text, "grey     invalid.host.that.does.not.exist.test unreachable")
	assert.Contains(t, text, "4 of 5 steps reachable")
}

func TestRunBatteryStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scriptedMeasurer{}
	var out bytes.Buffer

	assert.Zero(t, runBattery(ctx, &out, m, battery))
	assert.Empty(t, m.counts)
	assert.Contains(t, out.String(), "interrupted")
}

func TestResolveAll(t *testing.T) {
	r := resolver.NewSystemWithLookup(func(ctx context.Context, network, host string) ([]net.IP, error) {
		if host == "known.test" {
			return []net.IP{net.ParseIP("192.0.2.7")}, nil
		}
		return nil, errors.New("no such host")
	})
	var out bytes.Buffer

	failed := resolveAll(context.Background(), &out, r, []string{"known.test", "10.0.0.1", "unknown.test"})
	assert.Equal(t, 1, failed)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "OK    known.test -> 192.0.2.7", lines[0])
	assert.Equal(t, "OK    10.0.0.1 -> 10.0.0.1", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "FAIL  unknown.test"))
}

func TestBuildAggregator(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Probe.Transport = "tcp"
	a, err := buildAggregator(cfg)
	require.NoError(t, err)
	var _ measure.Measurer = a

	cfg.Probe.Transport = "smoke-signal"
	_, err = buildAggregator(cfg)
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "ping", "resolve", "battery", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "pingmonitor dev"))
}
