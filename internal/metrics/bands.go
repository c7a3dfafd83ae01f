// Package metrics classifies and summarises measurements.
package metrics

import (
	"pingmonitor/internal/models"
)

// Band is the colour a measurement is rendered with.
type Band string

const (
	BandGrey   Band = "grey"
	BandGreen  Band = "green"
	BandYellow Band = "yellow"
	BandOrange Band = "orange"
	BandRed    Band = "red"
	BandPurple Band = "purple"
)

// Upper bounds in milliseconds, exclusive.
var thresholds = []struct {
	below float64
	band  Band
}{
	{100, BandGreen},
	{250, BandYellow},
	{500, BandOrange},
	{2500, BandRed},
}

// Classify returns the band for m. A nil or unreachable measurement is grey.
func Classify(m *models.Measurement) Band {
	if m == nil {
		return BandGrey
	}
	latency, ok := m.Latency()
	if !ok {
		return BandGrey
	}
	for _, t := range thresholds {
		if latency < t.below {
			return t.band
		}
	}
	return BandPurple
}
