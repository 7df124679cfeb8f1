// Package epiweek implements Sunday-to-Saturday epidemiological week
// arithmetic. A week belongs to the year of its Wednesday, and week 1 of a
// year is the Sunday-week containing the first Wednesday of January (the
// MMWR convention used by disease surveillance systems).
//
// Both the temporal aggregator and the epidemiological aggregator key their
// output on these weeks; sharing one definition is what keeps the
// (district, week) join sound.
package epiweek

import "time"

// Week identifies one epidemiological week.
type Week struct {
	Year int
	Week int
}

// StartOfWeek returns the Sunday on or before d, at UTC midnight.
func StartOfWeek(d time.Time) time.Time {
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// firstWeekStart returns the Sunday starting epi week 1 of the given year:
// the start of the week containing the first Wednesday of January.
func firstWeekStart(year int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Wednesday) - int(jan1.Weekday()) + 7) % 7
	return StartOfWeek(jan1.AddDate(0, 0, offset))
}

// FromDate returns the epidemiological week containing d.
func FromDate(d time.Time) Week {
	start := StartOfWeek(d)
	year := start.AddDate(0, 0, 3).Year() // the week's Wednesday
	first := firstWeekStart(year)
	week := int(start.Sub(first).Hours()/(24*7)) + 1
	return Week{Year: year, Week: week}
}

// Start returns the Sunday beginning the week.
func (w Week) Start() time.Time {
	return firstWeekStart(w.Year).AddDate(0, 0, (w.Week-1)*7)
}

// End returns the Saturday ending the week.
func (w Week) End() time.Time {
	return w.Start().AddDate(0, 0, 6)
}

// Next returns the following epidemiological week.
func (w Week) Next() Week {
	return FromDate(w.Start().AddDate(0, 0, 7))
}

// Before reports whether w precedes o in time.
func (w Week) Before(o Week) bool {
	if w.Year != o.Year {
		return w.Year < o.Year
	}
	return w.Week < o.Week
}

// Range returns every epidemiological week from the one containing start
// through the one containing end, inclusive and in order. It returns nil
// when end precedes start.
func Range(start, end time.Time) []Week {
	if end.Before(start) {
		return nil
	}
	var weeks []Week
	last := FromDate(end)
	for w := FromDate(start); ; w = w.Next() {
		weeks = append(weeks, w)
		if w == last {
			break
		}
	}
	return weeks
}
