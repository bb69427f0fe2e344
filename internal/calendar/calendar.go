// Package calendar classifies dates as working or rest days, including the
// Chinese public-holiday schedule with its makeup workdays. A Calendar is a
// plain value built once at startup and passed to whoever needs it; there is
// no package-level cache.
package calendar

import (
	"sort"
	"sync"
	"time"
)

type DayType string

const (
	Workday             DayType = "workday"
	Weekend             DayType = "weekend"
	Holiday             DayType = "holiday"
	MakeupWorkday       DayType = "makeup_workday"
	CompensatoryHoliday DayType = "compensatory_holiday"
)

// Entry is one special date in the holiday schedule. Date is "2006-01-02".
type Entry struct {
	Date     string  `json:"date"`
	Type     DayType `json:"type"`
	Name     string  `json:"name"`
	Official bool    `json:"isOfficial"`
}

// DayInfo is the classification of a concrete date.
type DayInfo struct {
	Date     string
	Type     DayType
	Name     string
	Official bool
}

type Calendar struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New builds a calendar from a holiday schedule. Dates not in the schedule
// fall back to plain weekend/workday classification.
func New(entries []Entry) *Calendar {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Date] = e
	}
	return &Calendar{entries: m}
}

// Merge adds schedule entries in place, replacing any existing entry for the
// same date. Safe to call while other goroutines classify dates, so the feed
// refresher can apply updates without rebuilding the consumers.
func (c *Calendar) Merge(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[e.Date] = e
	}
}

// Classify returns the day type for a date, consulting the holiday schedule
// first and falling back to the weekday.
func (c *Calendar) Classify(date time.Time) DayInfo {
	key := date.Format("2006-01-02")
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return DayInfo{Date: key, Type: e.Type, Name: e.Name, Official: e.Official}
	}

	switch date.Weekday() {
	case time.Sunday, time.Saturday:
		return DayInfo{Date: key, Type: Weekend, Name: date.Weekday().String(), Official: true}
	}
	return DayInfo{Date: key, Type: Workday, Name: date.Weekday().String(), Official: true}
}

// IsWorkTime reports whether date is a working day. Makeup workdays shift a
// weekday's rhythm onto a weekend, so they count as work.
func (c *Calendar) IsWorkTime(date time.Time) bool {
	t := c.Classify(date).Type
	return t == Workday || t == MakeupWorkday
}

// IsRestTime is the complement used by the similarity matcher.
func (c *Calendar) IsRestTime(date time.Time) bool {
	t := c.Classify(date).Type
	return t == Weekend || t == Holiday || t == CompensatoryHoliday
}

// UpcomingHolidays lists the next count holidays on or after from.
func (c *Calendar) UpcomingHolidays(from time.Time, count int) []DayInfo {
	cutoff := from.Format("2006-01-02")

	c.mu.RLock()
	defer c.mu.RUnlock()
	var upcoming []DayInfo
	for _, e := range c.entries {
		if e.Date < cutoff {
			continue
		}
		if e.Type != Holiday && e.Type != CompensatoryHoliday {
			continue
		}
		upcoming = append(upcoming, DayInfo{Date: e.Date, Type: e.Type, Name: e.Name, Official: e.Official})
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].Date < upcoming[j].Date })
	if len(upcoming) > count {
		upcoming = upcoming[:count]
	}
	return upcoming
}

// Default returns the calendar seeded with the bundled holiday schedule.
func Default() *Calendar {
	return New(defaultSchedule)
}

// Bundled 2025 schedule. The feed client can layer updates on top as the
// official announcements land.
var defaultSchedule = []Entry{
	{Date: "2025-01-01", Type: Holiday, Name: "New Year's Day", Official: true},

	// Spring Festival: Jan 28 - Feb 3 off, Jan 26 and Feb 8 worked.
	{Date: "2025-01-26", Type: MakeupWorkday, Name: "Spring Festival makeup", Official: true},
	{Date: "2025-01-28", Type: Holiday, Name: "Spring Festival", Official: true},
	{Date: "2025-01-29", Type: Holiday, Name: "Spring Festival", Official: true},
	{Date: "2025-01-30", Type: Holiday, Name: "Spring Festival", Official: true},
	{Date: "2025-01-31", Type: Holiday, Name: "Spring Festival", Official: true},
	{Date: "2025-02-01", Type: Holiday, Name: "Spring Festival", Official: true},
	{Date: "2025-02-02", Type: Holiday, Name: "Spring Festival", Official: true},
	{Date: "2025-02-03", Type: Holiday, Name: "Spring Festival", Official: true},
	{Date: "2025-02-08", Type: MakeupWorkday, Name: "Spring Festival makeup", Official: true},
}
