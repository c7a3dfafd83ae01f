package metrics

import (
	"math"
	"time"

	"pingmonitor/internal/models"
)

// Summary aggregates the last results of the monitored hosts.
type Summary struct {
	Total         int          `json:"total"`
	Enabled       int          `json:"enabled"`
	Reachable     int          `json:"reachable"`
	Unreachable   int          `json:"unreachable"`
	Pending       int          `json:"pending"`
	MeanLatencyMs *float64     `json:"mean_latency_ms,omitempty"`
	Bands         map[Band]int `json:"bands"`
	LastUpdated   string       `json:"last_updated,omitempty"`
}

// Summarize counts entries by state and band. Entries without a result yet
// are pending.
func Summarize(entries []models.HostEntry) Summary {
	s := Summary{Total: len(entries), Bands: make(map[Band]int)}
	var (
		sum    float64
		latest time.Time
	)
	for _, e := range entries {
		if e.Enabled {
			s.Enabled++
		}
		if e.LastResult == nil {
			s.Pending++
			continue
		}
		if e.LastResult.Timestamp.After(latest) {
			latest = e.LastResult.Timestamp
		}
		s.Bands[Classify(e.LastResult)]++
		if latency, ok := e.LastResult.Latency(); ok {
			s.Reachable++
			sum += latency
		} else {
			s.Unreachable++
		}
	}
	if s.Reachable > 0 {
		mean := round2(sum / float64(s.Reachable))
		s.MeanLatencyMs = &mean
	}
	if !latest.IsZero() {
		s.LastUpdated = latest.UTC().Format(time.RFC3339)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
