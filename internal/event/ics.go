package event

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"planning/internal/apperr"
)

const icsProductID = "-//planning//calendar//EN"

// ExportICS writes events as a VCALENDAR. Enabled reminders become display
// alarms so other clients may act on them; this program never does.
func ExportICS(w io.Writer, name string, events []Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	if name != "" {
		cal.SetName(name)
	}

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetCreatedTime(e.CreatedAt.UTC())
		ve.SetModifiedAt(e.UpdatedAt.UTC())
		ve.SetStartAt(e.StartDate.UTC())
		ve.SetEndAt(e.EndDate.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		ve.SetColor(string(e.Color))

		if e.Reminder {
			alarm := ve.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", e.ReminderMinutes))
		}
	}

	return cal.SerializeTo(w)
}

// ImportItem is one VEVENT mapped onto a form, with the error that kept it
// out if any.
type ImportItem struct {
	UID  string
	Form FormData
	Err  error
}

// ParseICS maps every VEVENT in r onto a FormData. Events that cannot be
// mapped or do not validate are returned with Err set; the rest are ready
// to be created.
func ParseICS(r io.Reader) ([]ImportItem, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, apperr.NewValidationError(map[string]string{"file": "not a valid iCalendar document"})
	}

	var out []ImportItem
	for _, ve := range cal.Events() {
		item := ImportItem{UID: propValue(ve, ical.ComponentPropertyUniqueId)}

		start, serr := ve.GetStartAt()
		end, eerr := ve.GetEndAt()
		if serr != nil {
			item.Err = fmt.Errorf("DTSTART: %w", serr)
			out = append(out, item)
			continue
		}
		if eerr != nil {
			// DTEND is optional; an event without one is instantaneous
			end = start
		}

		f := FormData{
			Title:       unescapeText(propValue(ve, ical.ComponentPropertySummary)),
			Description: unescapeText(propValue(ve, ical.ComponentPropertyDescription)),
			StartDate:   start,
			EndDate:     end,
			Color:       ColorBlue,
		}
		if c, err := ParseColor(propValue(ve, ical.ComponentPropertyColor)); err == nil {
			f.Color = c
		}
		if mins, ok := alarmMinutes(ve); ok {
			f.Reminder = true
			f.ReminderMinutes = &mins
		}

		item.Form = f.Normalized()
		item.Err = Validate(item.Form)
		out = append(out, item)
	}

	if len(out) == 0 {
		return nil, apperr.NewValidationError(map[string]string{"file": "no events found"})
	}
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return p.Value
	}
	return ""
}

func unescapeText(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return r.Replace(s)
}

var errNoTrigger = errors.New("no relative trigger")

// alarmMinutes reads the first VALARM with a negative duration trigger such
// as -PT15M or -P1D, keeping it only if it is an offered lead time.
func alarmMinutes(ve *ical.VEvent) (int, bool) {
	for _, a := range ve.Alarms() {
		p := a.GetProperty(ical.ComponentPropertyTrigger)
		if p == nil {
			continue
		}
		m, err := parseTrigger(p.Value)
		if err != nil || !validReminder(m) {
			continue
		}
		return m, true
	}
	return 0, false
}

func parseTrigger(v string) (int, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if !strings.HasPrefix(v, "-P") {
		return 0, errNoTrigger
	}
	v = strings.TrimPrefix(v, "-P")

	total := 0
	if i := strings.Index(v, "D"); i >= 0 {
		var d int
		if _, err := fmt.Sscanf(v[:i], "%d", &d); err != nil {
			return 0, err
		}
		total += d * 24 * 60
		v = v[i+1:]
	}
	if !strings.HasPrefix(v, "T") {
		if v == "" {
			return total, nil
		}
		return 0, errNoTrigger
	}
	d, err := time.ParseDuration(strings.ToLower(strings.TrimPrefix(v, "T")))
	if err != nil {
		return 0, err
	}
	return total + int(d.Minutes()), nil
}
