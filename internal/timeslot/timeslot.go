// Package timeslot maps timestamps onto recurring weekly time buckets.
// A slot key is the triple (weekday, hour, minute-bucket) and is the unit
// of statistical aggregation everywhere else in the system.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Granularity is the width of a slot's minute bucket. It is derived from
// observation volume and never persisted.
type Granularity string

const (
	Gran10Min Granularity = "10min"
	Gran15Min Granularity = "15min"
	Gran30Min Granularity = "30min"
)

// Minutes returns the minute span of one slot at this granularity.
func (g Granularity) Minutes() int {
	switch g {
	case Gran10Min:
		return 10
	case Gran15Min:
		return 15
	default:
		return 30
	}
}

func (g Granularity) Duration() time.Duration {
	return time.Duration(g.Minutes()) * time.Minute
}

// Determine picks the granularity for a location from its observation count.
// More data unlocks finer buckets.
func Determine(recordCount int) Granularity {
	switch {
	case recordCount >= 100:
		return Gran10Min
	case recordCount >= 30:
		return Gran15Min
	default:
		return Gran30Min
	}
}

// Key identifies a recurring weekly slot as "weekday-hour-minute",
// e.g. "1-10-30" for Monday 10:30. Weekday 0 is Sunday.
type Key string

// KeyFor buckets t into its slot at granularity g, using t's own location
// for the calendar day and clock hour.
func KeyFor(t time.Time, g Granularity) Key {
	minute := (t.Minute() / g.Minutes()) * g.Minutes()
	return Key(fmt.Sprintf("%d-%d-%d", int(t.Weekday()), t.Hour(), minute))
}

// Parse splits a key back into its components.
func Parse(k Key) (weekday, hour, minute int, err error) {
	parts := strings.Split(string(k), "-")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("malformed slot key %q", k)
	}
	weekday, err = strconv.Atoi(parts[0])
	if err != nil || weekday < 0 || weekday > 6 {
		return 0, 0, 0, fmt.Errorf("slot key %q: bad weekday", k)
	}
	hour, err = strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, 0, fmt.Errorf("slot key %q: bad hour", k)
	}
	minute, err = strconv.Atoi(parts[2])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, 0, fmt.Errorf("slot key %q: bad minute", k)
	}
	return weekday, hour, minute, nil
}

var weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Display renders a key as "Monday 10:00-10:10". The end boundary wraps
// across the hour (and midnight) rather than exceeding 59/23.
func Display(k Key, g Granularity) (string, error) {
	weekday, hour, minute, err := Parse(k)
	if err != nil {
		return "", err
	}

	endMinute := minute + g.Minutes()
	endHour := hour
	if endMinute >= 60 {
		endMinute -= 60
		endHour++
		if endHour >= 24 {
			endHour = 0
		}
	}

	return fmt.Sprintf("%s %02d:%02d-%02d:%02d", weekdayNames[weekday], hour, minute, endHour, endMinute), nil
}

// Slot is one concrete future occurrence of a recurring key.
type Slot struct {
	Key   Key
	Start time.Time
	End   time.Time
}

// FutureSlots generates count consecutive slots starting at from, each
// exactly one granularity wide, contiguous and strictly increasing.
func FutureSlots(count int, g Granularity, from time.Time) []Slot {
	slots := make([]Slot, 0, count)
	step := g.Duration()
	for i := 0; i < count; i++ {
		start := from.Add(time.Duration(i) * step)
		slots = append(slots, Slot{
			Key:   KeyFor(start, g),
			Start: start,
			End:   start.Add(step),
		})
	}
	return slots
}
