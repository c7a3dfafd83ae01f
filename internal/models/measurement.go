package models

import "time"

// Measurement is the outcome of one probe round for one host.
// Reachable is true exactly when LatencyMs is set.
type Measurement struct {
	Host      string    `json:"host"`
	LatencyMs *float64  `json:"latency_ms,omitempty"`
	Reachable bool      `json:"reachable"`
	Timestamp time.Time `json:"timestamp"`
}

// ReachableMeasurement builds a successful measurement. Negative latencies clamp to zero.
func ReachableMeasurement(host string, latencyMs float64, at time.Time) Measurement {
	if latencyMs < 0 {
		latencyMs = 0
	}
	return Measurement{
		Host:      host,
		LatencyMs: &latencyMs,
		Reachable: true,
		Timestamp: at,
	}
}

// UnreachableMeasurement builds a failed measurement without latency.
func UnreachableMeasurement(host string, at time.Time) Measurement {
	return Measurement{
		Host:      host,
		Timestamp: at,
	}
}

// Clone copies the latency pointer.
func (m Measurement) Clone() Measurement {
	if m.LatencyMs != nil {
		v := *m.LatencyMs
		m.LatencyMs = &v
	}
	return m
}

// Latency returns the latency and whether it is present.
func (m Measurement) Latency() (float64, bool) {
	if m.LatencyMs == nil {
		return 0, false
	}
	return *m.LatencyMs, true
}

// ProbeOutcome is the result of a single reachability probe.
type ProbeOutcome struct {
	Success bool
	RTT     time.Duration
	Err     error
}

// RTTMillis returns the round-trip time in milliseconds.
func (o ProbeOutcome) RTTMillis() float64 {
	return float64(o.RTT) / float64(time.Millisecond)
}
