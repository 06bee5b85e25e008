// Package calendar projects an event collection onto day, month and year
// views and tracks where the user is looking.
//
// Everything here is pure: no I/O, no shared state. Dates are interpreted in
// the location of the reference date; callers pick the zone by choosing it.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// DateKeyLayout is the day key used by the year view.
const DateKeyLayout = "2006-01-02"

type Granularity string

const (
	Day   Granularity = "day"
	Month Granularity = "month"
	Year  Granularity = "year"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Day, Month, Year:
		return g, nil
	}
	return "", fmt.Errorf("unknown view %q (want day, month or year)", s)
}

// clock binds jinzhu/now to t's zone with weeks starting on Monday.
func clock(t time.Time) *now.Now {
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: t.Location()}
	return cfg.With(t)
}

func StartOfDay(t time.Time) time.Time   { return clock(t).BeginningOfDay() }
func EndOfDay(t time.Time) time.Time     { return clock(t).EndOfDay() }
func StartOfMonth(t time.Time) time.Time { return clock(t).BeginningOfMonth() }
func EndOfMonth(t time.Time) time.Time   { return clock(t).EndOfMonth() }
func StartOfWeek(t time.Time) time.Time  { return clock(t).BeginningOfWeek() }
func EndOfWeek(t time.Time) time.Time    { return clock(t).EndOfWeek() }
func StartOfYear(t time.Time) time.Time  { return clock(t).BeginningOfYear() }
func EndOfYear(t time.Time) time.Time    { return clock(t).EndOfYear() }

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateKey formats t's calendar date in loc as yyyy-MM-dd.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateKeyLayout)
}

// daysBetween lists every local midnight from first to last inclusive.
func daysBetween(first, last time.Time) []time.Time {
	var out []time.Time
	loc := first.Location()
	y, m, d := first.Date()
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); !day.After(last); {
		out = append(out, day)
		y, m, d = day.Date()
		day = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	return out
}

// MonthGrid returns the days shown for ref's month: whole weeks, Monday
// through Sunday, covering the first and last day of the month.
func MonthGrid(ref time.Time) []time.Time {
	first := StartOfWeek(StartOfMonth(ref))
	last := EndOfWeek(EndOfMonth(ref))
	return daysBetween(first, last)
}
