// Package stats holds the pure statistical functions behind every forecast.
// All functions are total (defined for empty input) and deterministic; they
// hold no state and are safe to call concurrently.
package stats

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"stallcast/internal/models"
)

const (
	// sampleSaturation is the sample size at which sample adequacy stops
	// improving confidence.
	sampleSaturation = 50.0
	maxSampleFactor  = 0.95

	decayPerDay = 0.1
	decayFloor  = 0.3

	minSeriesLen = 3
)

// AvailabilityRate is the fraction of observations reporting "available".
// An empty set returns the neutral prior 0.5, not zero.
func AvailabilityRate(obs []models.Observation) float64 {
	if len(obs) == 0 {
		return 0.5
	}
	available := 0
	for _, o := range obs {
		if o.Result == models.ResultAvailable {
			available++
		}
	}
	return float64(available) / float64(len(obs))
}

// Consistency is one minus the coefficient of variation of the binary
// available/not-available series, clamped to [0,1]. The series is a complete
// record of the slot, not a sample from it, so the population standard
// deviation applies. Fewer than three observations is too little signal to
// judge variance, so 0.5.
func Consistency(obs []models.Observation) float64 {
	if len(obs) < minSeriesLen {
		return 0.5
	}

	values := binarySeries(obs)
	mean := stat.Mean(values, nil)
	stddev := stat.PopStdDev(values, nil)

	cv := 0.0
	if mean != 0 {
		cv = stddev / mean
	}
	return Clamp(1-cv, 0, 1)
}

// Confidence combines sample adequacy, observation agreement, and staleness
// decay into a single [0,1] score. Stale data is discounted but never driven
// to zero: the decay factor floors at 0.3.
func Confidence(sampleSize int, consistency float64, daysSinceUpdate float64) float64 {
	sampleFactor := float64(sampleSize) / sampleSaturation
	if sampleFactor > maxSampleFactor {
		sampleFactor = maxSampleFactor
	}
	decay := 1 - decayPerDay*daysSinceUpdate
	if decay < decayFloor {
		decay = decayFloor
	}
	return sampleFactor * consistency * decay
}

// Trend is the ordinary least-squares slope of the binary outcome series
// against observation order, sorted by timestamp ascending. Positive means
// availability has been improving over time. Zero for short series.
func Trend(obs []models.Observation) float64 {
	if len(obs) < minSeriesLen {
		return 0
	}

	sorted := make([]models.Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	xs := make([]float64, len(sorted))
	for i := range sorted {
		xs[i] = float64(i)
	}
	ys := binarySeries(sorted)

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

// SeasonalAdjustment is a multiplicative deviation from a base probability,
// composed from independent weekday, hour-of-day and month factors. The
// result is factor-1, i.e. 0 means no adjustment.
func SeasonalAdjustment(t time.Time) float64 {
	weekday := t.Weekday()
	hour := t.Hour()
	month := t.Month()

	weekdayFactor := 0.8
	if weekday >= time.Monday && weekday <= time.Friday {
		weekdayFactor = 1.1
	}

	hourFactor := 1.0
	switch {
	case hour >= 12 && hour <= 13: // lunch rush
		hourFactor = 1.4
	case hour >= 9 && hour <= 11:
		hourFactor = 1.3
	case hour >= 14 && hour <= 16:
		hourFactor = 1.2
	case hour < 8 || hour > 18:
		hourFactor = 0.6
	}

	monthFactor := 1.0
	if month >= time.June && month <= time.September {
		monthFactor = 0.9
	}

	return weekdayFactor*hourFactor*monthFactor - 1.0
}

// Clamp bounds v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func binarySeries(obs []models.Observation) []float64 {
	values := make([]float64, len(obs))
	for i, o := range obs {
		if o.Result == models.ResultAvailable {
			values[i] = 1
		}
	}
	return values
}
