// Package predict turns raw occupancy history into availability forecasts:
// single-slot predictions, batch lookaheads, and ranked "best time to go"
// recommendations.
package predict

import (
	"time"

	"stallcast/internal/calendar"
	"stallcast/internal/models"
	"stallcast/internal/stats"
	"stallcast/internal/timeslot"
)

const (
	trendWeight    = 0.1
	seasonalWeight = 0.2

	// Fallback predictions borrow strength from merely similar slots, so
	// their confidence is capped regardless of sample size.
	fallbackConfidenceCap = 0.7

	neutralProbability = 0.5
	neutralConfidence  = 0.1
)

// Similarity weights for the fallback matcher. A record qualifies at a
// cumulative score of 0.5, so time-of-day alone is not enough.
const (
	simRestDayWeight   = 0.3
	simTimeOfDayWeight = 0.4
	simPeakWeight      = 0.3
	simThreshold       = 0.5
)

// Source distinguishes how a prediction was produced, so consumers know
// which fields are populated.
type Source string

const (
	// SourceDirect means the exact slot had history; Metadata is set.
	SourceDirect Source = "direct"
	// SourceSimilar means the slot was empty and context-matched records
	// were borrowed instead.
	SourceSimilar Source = "similar"
	// SourceNeutral means nothing matched at all; the neutral prior.
	SourceNeutral Source = "neutral"
)

// Metadata breaks a direct prediction down into its components, for
// explainability. Only populated when Source is SourceDirect.
type Metadata struct {
	BaseRate           float64 `json:"baseRate"`
	TrendAdjustment    float64 `json:"trendAdjustment"`
	SeasonalAdjustment float64 `json:"seasonalAdjustment"`
	Consistency        float64 `json:"consistency"`
}

// Prediction is an availability forecast for one slot. Ephemeral: recomputed
// on every request, never persisted.
type Prediction struct {
	SlotKey     timeslot.Key `json:"slotKey"`
	LocationID  string       `json:"locationId"`
	TargetTime  time.Time    `json:"targetTime"`
	Probability float64      `json:"availabilityProbability"`
	Confidence  float64      `json:"confidence"`
	SampleSize  int          `json:"sampleSize"`
	Recommended bool         `json:"isRecommended"`
	Source      Source       `json:"source"`
	Metadata    *Metadata    `json:"metadata,omitempty"`
}

// Engine orchestrates slot keying, the statistics functions and the
// similarity fallback. It is constructed once with its calendar and clock
// and is safe for concurrent use.
type Engine struct {
	cal *calendar.Calendar
	now func() time.Time
}

func New(cal *calendar.Calendar) *Engine {
	return NewWithClock(cal, time.Now)
}

// NewWithClock injects the clock. Tests use this to pin "now".
func NewWithClock(cal *calendar.Calendar, now func() time.Time) *Engine {
	return &Engine{cal: cal, now: now}
}

// Predict forecasts availability for one location at target. History may
// contain records for other locations; they are ignored. An empty exact
// slot falls back to similar slots, and an empty history yields the neutral
// prior rather than an error.
func (e *Engine) Predict(target time.Time, locationID string, history []models.Observation) Prediction {
	located := filterLocation(history, locationID)
	g := timeslot.Determine(len(located))
	targetKey := timeslot.KeyFor(target, g)

	var slotRecords []models.Observation
	for _, o := range located {
		if timeslot.KeyFor(o.Timestamp, g) == targetKey {
			slotRecords = append(slotRecords, o)
		}
	}

	if len(slotRecords) == 0 {
		return e.predictFromSimilar(target, targetKey, locationID, located)
	}

	rate := stats.AvailabilityRate(slotRecords)
	consistency := stats.Consistency(slotRecords)
	trend := stats.Trend(slotRecords)
	seasonal := stats.SeasonalAdjustment(target)
	confidence := stats.Confidence(len(slotRecords), consistency, 0)

	probability := stats.Clamp(rate+trendWeight*trend+seasonalWeight*seasonal, 0, 1)

	return Prediction{
		SlotKey:     targetKey,
		LocationID:  locationID,
		TargetTime:  target,
		Probability: probability,
		Confidence:  confidence,
		SampleSize:  len(slotRecords),
		Source:      SourceDirect,
		Metadata: &Metadata{
			BaseRate:           rate,
			TrendAdjustment:    trendWeight * trend,
			SeasonalAdjustment: seasonalWeight * seasonal,
			Consistency:        consistency,
		},
	}
}

// predictFromSimilar borrows statistical strength from records whose time
// context matches the target on at least two of rest-day status,
// time-of-day band, and peak status.
func (e *Engine) predictFromSimilar(target time.Time, targetKey timeslot.Key, locationID string, located []models.Observation) Prediction {
	targetCtx := timeslot.ContextFor(target, e.cal.IsWorkTime(target))

	var similar []models.Observation
	for _, o := range located {
		ctx := timeslot.ContextFor(o.Timestamp, e.cal.IsWorkTime(o.Timestamp))

		score := 0.0
		if ctx.IsRestDay == targetCtx.IsRestDay {
			score += simRestDayWeight
		}
		if ctx.TimeOfDay == targetCtx.TimeOfDay {
			score += simTimeOfDayWeight
		}
		if ctx.IsPeak == targetCtx.IsPeak {
			score += simPeakWeight
		}
		if score >= simThreshold {
			similar = append(similar, o)
		}
	}

	if len(similar) == 0 {
		return Prediction{
			SlotKey:     targetKey,
			LocationID:  locationID,
			TargetTime:  target,
			Probability: neutralProbability,
			Confidence:  neutralConfidence,
			SampleSize:  0,
			Source:      SourceNeutral,
		}
	}

	rate := stats.AvailabilityRate(similar)
	confidence := stats.Confidence(len(similar), stats.Consistency(similar), 0)
	if confidence > fallbackConfidenceCap {
		confidence = fallbackConfidenceCap
	}

	return Prediction{
		SlotKey:     targetKey,
		LocationID:  locationID,
		TargetTime:  target,
		Probability: rate,
		Confidence:  confidence,
		SampleSize:  len(similar),
		Source:      SourceSimilar,
	}
}

// PredictBatch forecasts 2*hoursAhead consecutive future slots for a
// location, in chronological order and unfiltered.
func (e *Engine) PredictBatch(locationID string, hoursAhead int, history []models.Observation) []Prediction {
	located := filterLocation(history, locationID)
	g := timeslot.Determine(len(located))

	slots := timeslot.FutureSlots(2*hoursAhead, g, e.now())
	predictions := make([]Prediction, 0, len(slots))
	for _, s := range slots {
		predictions = append(predictions, e.Predict(s.Start, locationID, history))
	}
	return predictions
}

func filterLocation(history []models.Observation, locationID string) []models.Observation {
	var out []models.Observation
	for _, o := range history {
		if o.LocationID == locationID {
			out = append(out, o)
		}
	}
	return out
}
