package calendar

import (
	"time"
)

// State is where the calendar is looking: a reference date and a zoom
// level. Transitions return a new State and never fail.
type State struct {
	Date        time.Time
	Granularity Granularity
}

// Initial is today's month view.
func Initial(today time.Time) State {
	return State{Date: StartOfDay(today), Granularity: Month}
}

func (s State) StepForward() State  { return s.step(1) }
func (s State) StepBackward() State { return s.step(-1) }

// JumpToToday moves to today's date and keeps the granularity.
func (s State) JumpToToday(today time.Time) State {
	s.Date = StartOfDay(today)
	return s
}

// WithGranularity switches the zoom level; the date is untouched.
func (s State) WithGranularity(g Granularity) State {
	s.Granularity = g
	return s
}

func (s State) step(n int) State {
	switch s.Granularity {
	case Day:
		s.Date = AddDays(s.Date, n)
	case Year:
		s.Date = AddMonthsClamped(s.Date, 12*n)
	default:
		s.Date = AddMonthsClamped(s.Date, n)
	}
	return s
}

// AddDays moves t by n calendar days, keeping the wall clock time.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// AddMonthsClamped moves t by n calendar months. When the target month is
// shorter the day is clamped to its last day (Jan 31 + 1 month = Feb 29 in
// 2024) instead of overflowing into the month after.
func AddMonthsClamped(t time.Time, n int) time.Time {
	target := StartOfMonth(t).AddDate(0, n, 0)
	last := EndOfMonth(target).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	y, m, _ := target.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, day, hh, mm, ss, t.Nanosecond(), t.Location())
}

// Step applies a named navigation action: "prev", "next" or "today".
// Unknown actions leave the state unchanged.
func (s State) Step(action string, today time.Time) State {
	switch action {
	case "prev", "back", "backward":
		return s.StepBackward()
	case "next", "forward":
		return s.StepForward()
	case "today":
		return s.JumpToToday(today)
	}
	return s
}
