package event

import (
	"context"
	"time"

	"planning/internal/apperr"
)

// Stats summarizes a user's events relative to a moment.
type Stats struct {
	Total            int64         `json:"total"`
	Upcoming         int           `json:"upcoming"`
	Past             int           `json:"past"`
	ByColor          map[Color]int `json:"by_color"`
	ScheduledMinutes int64         `json:"scheduled_minutes"`
}

// Summarize counts events starting after now as upcoming and before now as
// past; an event starting exactly at now is neither. ByColor has an entry
// for every color, zero included.
func Summarize(events []Event, now time.Time) Stats {
	s := Stats{Total: int64(len(events)), ByColor: make(map[Color]int, len(Colors))}
	for _, c := range Colors {
		s.ByColor[c] = 0
	}

	var scheduled time.Duration
	for _, e := range events {
		switch {
		case e.StartDate.After(now):
			s.Upcoming++
		case e.StartDate.Before(now):
			s.Past++
		}
		s.ByColor[e.Color]++
		scheduled += e.Duration()
	}
	s.ScheduledMinutes = int64(scheduled / time.Minute)
	return s
}

// Stats summarizes the loaded list. Total comes from the store so it counts
// rows the list may not have caught up with yet.
func (c *Collection) Stats(ctx context.Context, now time.Time) (Stats, error) {
	p := c.session.Current()
	if p == nil {
		return Stats{}, apperr.ErrNotAuthenticated
	}
	s := Summarize(c.Events(), now)
	total, err := c.store.CountForUser(ctx, p.ID)
	if err != nil {
		return Stats{}, err
	}
	s.Total = total
	return s, nil
}
