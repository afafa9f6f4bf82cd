package domain

import "time"

// Calendar is the user's reference calendar for day and week boundaries.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

// DefaultCalendar uses UTC and weeks starting on Sunday.
func DefaultCalendar() Calendar {
	return Calendar{Location: time.UTC, WeekStart: time.Sunday}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Day returns midnight of t's calendar date.
func (c Calendar) Day(t time.Time) time.Time {
	t = t.In(c.location())
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// WeekStartOf returns midnight of the first day of t's week.
func (c Calendar) WeekStartOf(t time.Time) time.Time {
	day := c.Day(t)
	back := (int(day.Weekday()) - int(c.WeekStart) + 7) % 7
	return day.AddDate(0, 0, -back)
}

// ZoneName is the IANA name stored alongside reset markers.
func (c Calendar) ZoneName() string {
	return c.location().String()
}

// ResetMarker remembers the last daily and weekly boundaries that were applied
// and the zone they were computed in.
type ResetMarker struct {
	LastDaily  time.Time
	LastWeekly time.Time
	// TimeZone is empty for markers written before zones were recorded.
	TimeZone string
}

// IsZero is true for a user that was never reset.
func (m ResetMarker) IsZero() bool {
	return m.LastDaily.IsZero() && m.LastWeekly.IsZero()
}

// ResetResult reports which boundaries were crossed.
type ResetResult struct {
	Daily       bool
	Weekly      bool
	Initialized bool
	// Rezoned is set when the marker moves to a different calendar zone.
	Rezoned bool
}

// NeedsSave is true when the marker returned by ApplyPeriodicReset differs
// from the stored one.
func (r ResetResult) NeedsSave() bool {
	return r.Changed() || r.Initialized || r.Rezoned
}

// Changed is true when any goal record was zeroed.
func (r ResetResult) Changed() bool {
	return r.Daily || r.Weekly
}

// ApplyPeriodicReset zeroes completed counters whose period ended.
// a new calendar day zeroes daily components and today's completed obligations,
// a new week zeroes weekly components. an empty marker is initialised to the
// current period without zeroing anything.
//
// the marker's dates are read in the zone it was written in and compared as
// local dates with today in cal. only a later date resets, so neither a zone
// change nor a clock running backwards zeroes anything.
func ApplyPeriodicReset(records map[Category]GoalRecord, marker ResetMarker, now time.Time, cal Calendar) (map[Category]GoalRecord, ResetMarker, ResetResult) {
	today := cal.Day(now)
	week := cal.WeekStartOf(now)
	zone := cal.ZoneName()

	if marker.IsZero() {
		return records, ResetMarker{LastDaily: today, LastWeekly: week, TimeZone: zone}, ResetResult{Initialized: true}
	}

	written := Calendar{Location: cal.location(), WeekStart: cal.WeekStart}
	if marker.TimeZone != "" {
		if loc, err := time.LoadLocation(marker.TimeZone); err == nil {
			written.Location = loc
		}
	}
	lastDay := sameDateIn(written.Day(marker.LastDaily), cal.location())
	lastWeek := sameDateIn(written.WeekStartOf(marker.LastWeekly), cal.location())

	result := ResetResult{
		Daily:   today.After(lastDay),
		Weekly:  week.After(lastWeek),
		Rezoned: marker.TimeZone != zone,
	}

	next := ResetMarker{LastDaily: lastDay, LastWeekly: lastWeek, TimeZone: zone}
	if result.Daily {
		next.LastDaily = today
	}
	if result.Weekly {
		next.LastWeekly = week
	}
	if !result.NeedsSave() {
		return records, marker, result
	}
	if !result.Changed() {
		return records, next, result
	}

	out := make(map[Category]GoalRecord, len(records))
	for c, record := range records {
		record = record.Clone()
		for i, comp := range record.Components {
			spec, ok := LookupComponent(c, comp.Key)
			if !ok {
				continue
			}
			if (spec.Scope == ScopeDaily && result.Daily) || (spec.Scope == ScopeWeekly && result.Weekly) {
				record.Components[i].Completed = 0
			}
		}
		if result.Daily {
			record.CompletedObligations = nil
		}
		out[c] = record
	}
	return out, next, result
}

// sameDateIn returns midnight of t's calendar date in loc.
func sameDateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
