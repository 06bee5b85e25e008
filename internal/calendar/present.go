package calendar

import (
	"time"

	"planning/internal/event"
)

// MaxPerDay is how many events a month cell shows before "+N more".
const MaxPerDay = 3

// EventItem is an event as drawn on a calendar, in the view's zone.
type EventItem struct {
	ID              string      `json:"id" yaml:"id"`
	Title           string      `json:"title" yaml:"title"`
	Description     string      `json:"description,omitempty" yaml:"description,omitempty"`
	Start           time.Time   `json:"start_date" yaml:"start_date"`
	End             time.Time   `json:"end_date" yaml:"end_date"`
	Color           event.Color `json:"color" yaml:"color"`
	Style           event.Style `json:"style" yaml:"style"`
	Reminder        bool        `json:"reminder" yaml:"reminder"`
	ReminderMinutes int         `json:"reminder_minutes" yaml:"reminder_minutes"`
}

func NewEventItem(e event.Event, loc *time.Location) EventItem {
	e = e.In(loc)
	return EventItem{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Start:           e.StartDate,
		End:             e.EndDate,
		Color:           e.Color,
		Style:           e.Color.Style(),
		Reminder:        e.Reminder,
		ReminderMinutes: e.ReminderMinutes,
	}
}

func items(events []event.Event, loc *time.Location) []EventItem {
	out := make([]EventItem, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventItem(e, loc))
	}
	return out
}

type HourSlot struct {
	Hour   int         `json:"hour" yaml:"hour"`
	Events []EventItem `json:"events" yaml:"events"`
}

type DayPage struct {
	Date   string      `json:"date" yaml:"date"`
	Hours  []HourSlot  `json:"hours" yaml:"hours"`
	Events []EventItem `json:"events" yaml:"events"`
}

type MonthCell struct {
	Date    string      `json:"date" yaml:"date"`
	InMonth bool        `json:"in_month" yaml:"in_month"`
	Today   bool        `json:"today" yaml:"today"`
	Events  []EventItem `json:"events" yaml:"events"`
	More    int         `json:"more" yaml:"more"`
}

type MonthPage struct {
	Month string        `json:"month" yaml:"month"`
	Weeks [][]MonthCell `json:"weeks" yaml:"weeks"`
}

type MiniCell struct {
	Date    string `json:"date" yaml:"date"`
	InMonth bool   `json:"in_month" yaml:"in_month"`
	Count   int    `json:"count" yaml:"count"`
}

type MiniMonthPage struct {
	Month string     `json:"month" yaml:"month"`
	Total int        `json:"total" yaml:"total"`
	Days  []MiniCell `json:"days" yaml:"days"`
}

type YearPage struct {
	Year   int             `json:"year" yaml:"year"`
	Months []MiniMonthPage `json:"months" yaml:"months"`
}

// Page is a rendered view, ready for JSON or YAML.
type Page struct {
	View     Granularity `json:"view" yaml:"view"`
	Date     string      `json:"date" yaml:"date"`
	Timezone string      `json:"timezone" yaml:"timezone"`
	Prev     string      `json:"prev" yaml:"prev"`
	Next     string      `json:"next" yaml:"next"`
	Day      *DayPage    `json:"day,omitempty" yaml:"day,omitempty"`
	Month    *MonthPage  `json:"month,omitempty" yaml:"month,omitempty"`
	Year     *YearPage   `json:"year,omitempty" yaml:"year,omitempty"`
}

// Render turns a binned view into a Page. Month cells are cut to MaxPerDay
// events with the remainder counted in More.
func Render(s State, v View, today time.Time) Page {
	loc := s.Date.Location()
	p := Page{
		View:     v.Granularity,
		Date:     s.Date.Format(DateKeyLayout),
		Timezone: loc.String(),
		Prev:     s.StepBackward().Date.Format(DateKeyLayout),
		Next:     s.StepForward().Date.Format(DateKeyLayout),
	}

	switch {
	case v.Day != nil:
		d := &DayPage{Date: v.Day.Date.Format(DateKeyLayout), Events: items(v.Day.Events, loc)}
		for h, bucket := range v.Day.Hours {
			d.Hours = append(d.Hours, HourSlot{Hour: h, Events: items(bucket, loc)})
		}
		p.Day = d
	case v.Month != nil:
		m := &MonthPage{Month: v.Month.Month.Format("2006-01")}
		for _, week := range v.Month.Weeks() {
			row := make([]MonthCell, 0, 7)
			for _, c := range week {
				shown, more := c.Visible(MaxPerDay)
				row = append(row, MonthCell{
					Date:    c.Date.Format(DateKeyLayout),
					InMonth: c.InMonth,
					Today:   SameDay(c.Date, today, loc),
					Events:  items(shown, loc),
					More:    more,
				})
			}
			m.Weeks = append(m.Weeks, row)
		}
		p.Month = m
	case v.Year != nil:
		y := &YearPage{Year: v.Year.Year.Year()}
		for _, mm := range v.Year.Months() {
			page := MiniMonthPage{Month: mm.Month.Format("2006-01"), Total: mm.Total}
			for _, d := range mm.Days {
				page.Days = append(page.Days, MiniCell{Date: d.Date.Format(DateKeyLayout), InMonth: d.InMonth, Count: d.Count})
			}
			y.Months = append(y.Months, page)
		}
		p.Year = y
	}
	return p
}
