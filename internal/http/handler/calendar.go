package handler

import (
	"net/http"
	"strings"
	"time"

	"planning/internal/apperr"
	"planning/internal/calendar"
)

// requestLocation resolves the ?tz= parameter, falling back to def.
func requestLocation(r *http.Request, def *time.Location) (*time.Location, error) {
	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		if def == nil {
			return time.UTC, nil
		}
		return def, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperr.NewValidationError(map[string]string{"tz": "unknown time zone"})
	}
	return loc, nil
}

type CalendarHandler struct {
	Events *EventHandler
}

// View renders GET /calendar?view=day|month|year&date=yyyy-mm-dd&tz=Zone&step=prev|next|today.
// The step is applied to date before rendering; the response carries the
// dates of the neighboring pages.
func (h *CalendarHandler) View(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}

	loc, err := h.Events.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	g := calendar.Month
	if v := strings.TrimSpace(q.Get("view")); v != "" {
		if g, err = calendar.ParseGranularity(v); err != nil {
			fields["view"] = "expected day, month or year"
		}
	}

	var date time.Time
	if d := strings.TrimSpace(q.Get("date")); d != "" {
		if date, err = time.ParseInLocation(calendar.DateKeyLayout, d, loc); err != nil {
			fields["date"] = "expected yyyy-mm-dd"
		}
	}

	step := strings.ToLower(strings.TrimSpace(q.Get("step")))
	switch step {
	case "", "prev", "next", "today":
	default:
		fields["step"] = "expected prev, next or today"
	}

	if len(fields) > 0 {
		writeError(w, r, apperr.NewValidationError(fields))
		return
	}

	c, _, err := h.Events.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	b := calendar.NewBrowser(c, loc, h.Events.now)
	if !date.IsZero() {
		b.GoTo(date)
	}
	b.State = b.State.WithGranularity(g)
	if step != "" {
		_ = b.Apply(step)
	}

	writeJSON(w, http.StatusOK, b.Page())
}
