package timeslot

import "time"

// TimeOfDay is the coarse band used for similarity matching.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"   // 06:00-12:00
	Afternoon TimeOfDay = "afternoon" // 12:00-18:00
	Evening   TimeOfDay = "evening"   // 18:00-22:00
	Night     TimeOfDay = "night"
)

// TimeOfDayFor bands an hour of the day.
func TimeOfDayFor(hour int) TimeOfDay {
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 18:
		return Afternoon
	case hour >= 18 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// Context is the similarity vector for a point in time: whether it falls on
// a rest day, which time-of-day band it is in, and whether it is a peak
// period. Peak periods only exist on working days.
type Context struct {
	IsRestDay bool
	TimeOfDay TimeOfDay
	IsPeak    bool
}

// ContextFor computes the context vector. isWorkDay comes from the calendar
// classifier, so public holidays falling on weekdays are not peak.
func ContextFor(t time.Time, isWorkDay bool) Context {
	hour := t.Hour()
	peak := false
	if isWorkDay {
		peak = (hour >= 9 && hour <= 11) || (hour >= 14 && hour <= 16)
	}
	return Context{
		IsRestDay: !isWorkDay,
		TimeOfDay: TimeOfDayFor(hour),
		IsPeak:    peak,
	}
}
