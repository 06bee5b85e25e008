package calendar

import (
	"sort"
	"time"

	"planning/internal/event"
)

// DayView is a single day split into 24 hour buckets. An event sits in the
// bucket of its start hour only, however long it runs.
type DayView struct {
	Date   time.Time
	Start  time.Time
	End    time.Time
	Hours  [24][]event.Event
	Events []event.Event
}

// DayCell is one square of the month grid.
type DayCell struct {
	Date    time.Time
	InMonth bool
	Events  []event.Event
}

// Visible splits the cell's events into the first n and an overflow count.
// The engine never truncates; presentation calls this.
func (c DayCell) Visible(n int) ([]event.Event, int) {
	if n < 0 || len(c.Events) <= n {
		return c.Events, 0
	}
	return c.Events[:n], len(c.Events) - n
}

type MonthView struct {
	Month time.Time
	Days  []DayCell
}

// Weeks returns the grid row by row.
func (m MonthView) Weeks() [][]DayCell {
	var out [][]DayCell
	for i := 0; i+7 <= len(m.Days); i += 7 {
		out = append(out, m.Days[i:i+7])
	}
	return out
}

// YearView holds event counts per local start date. Counts cover the whole
// collection, not only the reference year.
type YearView struct {
	Year   time.Time
	Counts map[string]int
}

// CountOn returns the number of events starting on day's date.
func (y YearView) CountOn(day time.Time) int {
	return y.Counts[DateKey(day, y.Year.Location())]
}

// MonthTotal sums counts for month m of the reference year.
func (y YearView) MonthTotal(m time.Month) int {
	prefix := time.Date(y.Year.Year(), m, 1, 0, 0, 0, 0, y.Year.Location()).Format("2006-01-")
	total := 0
	for k, n := range y.Counts {
		if len(k) == len(DateKeyLayout) && k[:len(prefix)] == prefix {
			total += n
		}
	}
	return total
}

// MiniMonth is a month of the year view: its grid and per-day counts.
type MiniMonth struct {
	Month time.Time
	Total int
	Days  []MiniDay
}

type MiniDay struct {
	Date    time.Time
	InMonth bool
	Count   int
}

// Months lays out the twelve mini-month grids of the reference year.
func (y YearView) Months() []MiniMonth {
	loc := y.Year.Location()
	out := make([]MiniMonth, 0, 12)
	for m := time.January; m <= time.December; m++ {
		first := time.Date(y.Year.Year(), m, 1, 0, 0, 0, 0, loc)
		mm := MiniMonth{Month: first, Total: y.MonthTotal(m)}
		for _, d := range MonthGrid(first) {
			mm.Days = append(mm.Days, MiniDay{
				Date:    d,
				InMonth: d.Month() == m,
				Count:   y.CountOn(d),
			})
		}
		out = append(out, mm)
	}
	return out
}

// sortedByStart returns a stably sorted copy; the input is never mutated.
func sortedByStart(events []event.Event) []event.Event {
	out := make([]event.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

// BinDay selects events starting within [start of ref's day, end of ref's
// day], both inclusive, and buckets them by local start hour.
func BinDay(events []event.Event, ref time.Time) DayView {
	loc := ref.Location()
	v := DayView{
		Date:  StartOfDay(ref),
		Start: StartOfDay(ref),
		End:   EndOfDay(ref),
	}

	for _, e := range sortedByStart(events) {
		if e.StartDate.Before(v.Start) || e.StartDate.After(v.End) {
			continue
		}
		h := e.StartDate.In(loc).Hour()
		v.Hours[h] = append(v.Hours[h], e)
		v.Events = append(v.Events, e)
	}
	return v
}

// BinMonth buckets events by local start date over ref's month grid.
func BinMonth(events []event.Event, ref time.Time) MonthView {
	loc := ref.Location()
	grid := MonthGrid(ref)

	index := make(map[string]int, len(grid))
	v := MonthView{Month: StartOfMonth(ref), Days: make([]DayCell, len(grid))}
	for i, d := range grid {
		v.Days[i] = DayCell{Date: d, InMonth: d.Month() == ref.Month()}
		index[DateKey(d, loc)] = i
	}

	for _, e := range sortedByStart(events) {
		if i, ok := index[DateKey(e.StartDate, loc)]; ok {
			v.Days[i].Events = append(v.Days[i].Events, e)
		}
	}
	return v
}

// BinYear counts events per local start date across the whole collection.
func BinYear(events []event.Event, ref time.Time) YearView {
	loc := ref.Location()
	v := YearView{Year: StartOfYear(ref), Counts: make(map[string]int)}
	for _, e := range events {
		v.Counts[DateKey(e.StartDate, loc)]++
	}
	return v
}

// View is the result of binning at one granularity; exactly one of the
// pointers is set.
type View struct {
	Granularity Granularity
	Date        time.Time
	Day         *DayView
	Month       *MonthView
	Year        *YearView
}

func Bin(events []event.Event, ref time.Time, g Granularity) View {
	v := View{Granularity: g, Date: ref}
	switch g {
	case Day:
		d := BinDay(events, ref)
		v.Day = &d
	case Year:
		y := BinYear(events, ref)
		v.Year = &y
	default:
		v.Granularity = Month
		m := BinMonth(events, ref)
		v.Month = &m
	}
	return v
}
