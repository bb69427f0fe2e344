package predict

import (
	"sort"
	"time"

	"stallcast/internal/models"
	"stallcast/internal/stats"
	"stallcast/internal/timeslot"
)

const (
	// Lookahead window for recommendations, regardless of granularity.
	lookaheadHours = 8

	// Slots busier than this are not worth recommending.
	maxRecommendableBusy = 60.0

	defaultBusyLevel  = 50.0
	defaultConfidence = 0.3

	availabilityScoreWeight = 0.5
	confidenceScoreWeight   = 0.3
	recencyScoreWeight      = 0.2
)

// SlotForecast is the per-slot busy-level view used for ranking. BusyLevel
// is the percentage of matching records reporting occupied or full.
type SlotForecast struct {
	SlotKey     timeslot.Key         `json:"slotKey"`
	Display     string               `json:"timeSlot"`
	Start       time.Time            `json:"startTime"`
	End         time.Time            `json:"endTime"`
	BusyLevel   float64              `json:"busyLevel"`
	Confidence  float64              `json:"confidence"`
	SampleSize  int                  `json:"sampleSize"`
	Quality     DataQuality          `json:"dataQuality"`
	Granularity timeslot.Granularity `json:"granularity"`
	TotalStalls int                  `json:"totalStalls,omitempty"`
	Recommended bool                 `json:"isRecommended"`
}

// BestSlot is one ranked recommendation with its composite score and a
// human-readable reason.
type BestSlot struct {
	Forecast SlotForecast `json:"prediction"`
	Score    float64      `json:"score"`
	Reason   string       `json:"reason"`
}

// BestTimeSlots scans roughly the next eight hours and returns up to
// maxResults slots worth visiting, best first, with a minimum spacing
// between picks so adjacent near-duplicate slots are not all recommended.
// History is expected to already be scoped to one location.
func (e *Engine) BestTimeSlots(history []models.Observation, totalStalls, maxResults int) []BestSlot {
	g := timeslot.Determine(len(history))
	slotCount := lookaheadHours * 60 / g.Minutes()
	slots := timeslot.FutureSlots(slotCount, g, e.now())

	now := e.now()
	var candidates []BestSlot
	for _, slot := range slots {
		fc := e.slotForecast(slot, g, history, totalStalls)
		if fc.BusyLevel > maxRecommendableBusy {
			continue
		}
		candidates = append(candidates, e.scoreSlot(fc, now))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return selectSpacedSlots(candidates, maxResults, minSpacing(g))
}

// CurrentPrediction applies the slot forecast to the slot containing now.
func (e *Engine) CurrentPrediction(history []models.Observation, totalStalls int) SlotForecast {
	g := timeslot.Determine(len(history))
	now := e.now()
	slot := timeslot.Slot{
		Key:   timeslot.KeyFor(now, g),
		Start: now,
		End:   now.Add(g.Duration()),
	}
	return e.slotForecast(slot, g, history, totalStalls)
}

func (e *Engine) slotForecast(slot timeslot.Slot, g timeslot.Granularity, history []models.Observation, totalStalls int) SlotForecast {
	var slotRecords []models.Observation
	for _, o := range history {
		if timeslot.KeyFor(o.Timestamp, g) == slot.Key {
			slotRecords = append(slotRecords, o)
		}
	}

	busy := defaultBusyLevel
	confidence := defaultConfidence
	if len(slotRecords) > 0 {
		notAvailable := 0
		for _, o := range slotRecords {
			if o.Result == models.ResultOccupied || o.Result == models.ResultFull {
				notAvailable++
			}
		}
		busy = float64(notAvailable) / float64(len(slotRecords)) * 100
		confidence = stats.Confidence(len(slotRecords), stats.Consistency(slotRecords), 0)
	}

	display, _ := timeslot.Display(slot.Key, g)

	return SlotForecast{
		SlotKey:     slot.Key,
		Display:     display,
		Start:       slot.Start,
		End:         slot.End,
		BusyLevel:   busy,
		Confidence:  confidence,
		SampleSize:  len(slotRecords),
		Quality:     AssessQuality(len(slotRecords), confidence),
		Granularity: g,
		TotalStalls: totalStalls,
		Recommended: busy <= maxRecommendableBusy && confidence >= 0.4,
	}
}

// scoreSlot weighs availability, confidence and closeness to now. Slots more
// than eight hours out get no recency credit.
func (e *Engine) scoreSlot(fc SlotForecast, now time.Time) BestSlot {
	availabilityScore := (100 - fc.BusyLevel) / 100
	hoursFromNow := fc.Start.Sub(now).Hours()
	recencyScore := 1 - hoursFromNow/lookaheadHours
	if recencyScore < 0 {
		recencyScore = 0
	}

	score := availabilityScoreWeight*availabilityScore +
		confidenceScoreWeight*fc.Confidence +
		recencyScoreWeight*recencyScore

	return BestSlot{Forecast: fc, Score: score, Reason: slotReason(fc)}
}

func slotReason(fc SlotForecast) string {
	var reason string
	switch {
	case fc.BusyLevel <= 30:
		reason = "usually free, a good time to go"
	case fc.BusyLevel <= 50:
		reason = "relatively free"
	default:
		reason = "may require a short wait"
	}
	if fc.Quality.Tier == QualityLow {
		reason += " (limited data, treat as a rough guide)"
	}
	return reason
}

// selectSpacedSlots greedily picks from the sorted candidates, skipping any
// slot whose start is within spacing of an already-selected one. Conflicting
// candidates are dropped, not substituted.
func selectSpacedSlots(candidates []BestSlot, maxResults int, spacing time.Duration) []BestSlot {
	var selected []BestSlot
	for _, c := range candidates {
		if len(selected) >= maxResults {
			break
		}
		conflict := false
		for _, s := range selected {
			gap := c.Forecast.Start.Sub(s.Forecast.Start)
			if gap < 0 {
				gap = -gap
			}
			if gap < spacing {
				conflict = true
				break
			}
		}
		if !conflict {
			selected = append(selected, c)
		}
	}
	return selected
}

// minSpacing keeps recommendations from clustering: finer granularities
// still require a sensible gap between picks.
func minSpacing(g timeslot.Granularity) time.Duration {
	switch g {
	case timeslot.Gran10Min:
		return 30 * time.Minute
	case timeslot.Gran15Min:
		return 45 * time.Minute
	default:
		return 60 * time.Minute
	}
}
