package handler

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"planning/internal/apperr"
	"planning/internal/auth"
	"planning/internal/calendar"
	"planning/internal/event"

	"github.com/go-chi/chi/v5"
)

// maxImportBytes caps an uploaded calendar file.
const maxImportBytes = 1 << 20

type EventHandler struct {
	Auth     *auth.Service
	Store    event.Store
	Location *time.Location
	Now      func() time.Time
}

type eventDTO struct {
	calendar.EventItem
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toEventDTOs(events []event.Event, loc *time.Location) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, eventDTO{
			EventItem: calendar.NewEventItem(e, loc),
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return out
}

type eventReq struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Color           string    `json:"color"`
	Reminder        bool      `json:"reminder"`
	ReminderMinutes *int      `json:"reminder_minutes"`
}

func (q eventReq) form() event.FormData {
	return event.FormData{
		Title:           q.Title,
		Description:     q.Description,
		StartDate:       q.StartDate,
		EndDate:         q.EndDate,
		Color:           event.Color(strings.ToLower(strings.TrimSpace(q.Color))),
		Reminder:        q.Reminder,
		ReminderMinutes: q.ReminderMinutes,
	}
}

func (h *EventHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *EventHandler) location(r *http.Request) (*time.Location, error) {
	return requestLocation(r, h.Location)
}

// collection opens the signed-in user's event list, loaded.
func (h *EventHandler) collection(r *http.Request) (*event.Collection, *auth.Session, error) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	sess, err := h.Auth.SessionFor(r.Context(), claims)
	if err != nil {
		return nil, nil, err
	}
	c := event.NewCollection(h.Store, sess)
	if err := c.Load(r.Context()); err != nil {
		c.Close()
		return nil, nil, err
	}
	if !c.Loaded() {
		c.Close()
		return nil, nil, apperr.ErrNotAuthenticated
	}
	return c, sess, nil
}

func parseFilter(r *http.Request, loc *time.Location) (event.Filter, bool, error) {
	q := r.URL.Query()
	var f event.Filter
	fields := map[string]string{}

	if s := strings.TrimSpace(q.Get("start")); s != "" {
		t, err := parseInstant(s, loc, false)
		if err != nil {
			fields["start"] = "expected RFC3339 or yyyy-mm-dd"
		} else {
			f.Start = &t
		}
	}
	if s := strings.TrimSpace(q.Get("end")); s != "" {
		t, err := parseInstant(s, loc, true)
		if err != nil {
			fields["end"] = "expected RFC3339 or yyyy-mm-dd"
		} else {
			f.End = &t
		}
	}
	for _, raw := range q["color"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			c, err := event.ParseColor(part)
			if err != nil {
				fields["color"] = "unknown color"
				continue
			}
			f.Colors = append(f.Colors, c)
		}
	}
	f.Search = strings.TrimSpace(q.Get("q"))

	if len(fields) > 0 {
		return f, false, apperr.NewValidationError(fields)
	}
	filtered := f.Start != nil || f.End != nil || len(f.Colors) > 0 || f.Search != ""
	return f, filtered, nil
}

// rangeOnly reports whether f narrows by dates alone, which the loaded list
// can answer without another query.
func rangeOnly(f event.Filter) bool {
	return (f.Start != nil || f.End != nil) && len(f.Colors) == 0 && f.Search == ""
}

var maxInstant = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// parseInstant accepts RFC3339 or a bare date in loc. A bare end date means
// the end of that day.
func parseInstant(s string, loc *time.Location, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(calendar.DateKeyLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		return calendar.EndOfDay(d), nil
	}
	return d, nil
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	loc, err := h.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, filtered, err := parseFilter(r, loc)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, sess, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	events := c.Events()
	switch {
	case rangeOnly(f):
		var start time.Time
		end := maxInstant
		if f.Start != nil {
			start = *f.Start
		}
		if f.End != nil {
			end = *f.End
		}
		events = c.InRange(start, end)
	case filtered:
		events, err = h.Store.ListFiltered(r.Context(), sess.Current().ID, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toEventDTOs(events, loc)})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	loc, err := h.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	ev, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ev.UserID != uid {
		writeError(w, r, apperr.NewStoreError("get event", event.ErrForbidden))
		return
	}
	writeJSON(w, http.StatusOK, toEventDTOs([]event.Event{ev}, loc)[0])
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loc, err := h.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, _, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	id, err := c.Create(r.Context(), req.form())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "events": toEventDTOs(c.Events(), loc)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req eventReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loc, err := h.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, _, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	if err := c.Update(r.Context(), chi.URLParam(r, "id"), req.form()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toEventDTOs(c.Events(), loc)})
}

type eventPatch struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	Color           *string    `json:"color"`
	Reminder        *bool      `json:"reminder"`
	ReminderMinutes *int       `json:"reminder_minutes"`
}

func (p eventPatch) apply(f event.FormData) event.FormData {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	if p.StartDate != nil {
		f.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		f.EndDate = *p.EndDate
	}
	if p.Color != nil {
		f.Color = event.Color(strings.ToLower(strings.TrimSpace(*p.Color)))
	}
	if p.Reminder != nil {
		f.Reminder = *p.Reminder
	}
	if p.ReminderMinutes != nil {
		f.ReminderMinutes = p.ReminderMinutes
	}
	return f
}

// Patch changes only the fields present in the body.
func (h *EventHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req eventPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loc, err := h.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, _, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	id := chi.URLParam(r, "id")
	current, ok := c.ByID(id)
	if !ok {
		// not in the caller's list: let the store tell missing from foreign
		if _, err := h.Store.Get(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeError(w, r, apperr.NewStoreError("update event", event.ErrForbidden))
		return
	}

	if err := c.Update(r.Context(), id, req.apply(event.FormFromEvent(current))); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toEventDTOs(c.Events(), loc)})
}

// Stats reports totals, upcoming and past counts and a per-color breakdown.
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	c, _, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	s, err := c.Stats(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	loc, err := h.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, _, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	if err := c.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": toEventDTOs(c.Events(), loc)})
}

func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	c, sess, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	name := "planning"
	if p := sess.Current(); p != nil && p.DisplayName != "" {
		name = p.DisplayName + " - planning"
	}
	var buf bytes.Buffer
	if err := event.ExportICS(&buf, name, c.Events(), h.now()); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.ics"`)
	_, _ = buf.WriteTo(w)
}

type importFailure struct {
	UID    string            `json:"uid"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Import creates every valid VEVENT of an uploaded calendar and reports
// the ones that were skipped.
func (h *EventHandler) Import(w http.ResponseWriter, r *http.Request) {
	loc, err := h.location(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	parsed, err := event.ParseICS(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, _, err := h.collection(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer c.Close()

	imported := []string{}
	failed := []importFailure{}
	for _, it := range parsed {
		if it.Err == nil {
			var id string
			id, it.Err = c.Create(r.Context(), it.Form)
			if it.Err == nil {
				imported = append(imported, id)
				continue
			}
		}
		_, msg := statusFor(it.Err)
		failed = append(failed, importFailure{UID: it.UID, Error: msg, Fields: apperr.FieldsOf(it.Err)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(imported),
		"ids":      imported,
		"failed":   failed,
		"events":   toEventDTOs(c.Events(), loc),
	})
}
