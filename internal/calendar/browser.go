package calendar

import (
	"fmt"
	"strings"
	"time"

	"planning/internal/event"
)

// Source is a versioned event list, normally an *event.Collection.
type Source interface {
	Events() []event.Event
	Version() uint64
}

// Browser is what a client holds while looking at a calendar: the events,
// where it is looking and a memo of the last binning.
type Browser struct {
	Events Source
	State  State
	Now    func() time.Time

	cache Cache
}

func NewBrowser(src Source, loc *time.Location, now func() time.Time) *Browser {
	if now == nil {
		now = time.Now
	}
	return &Browser{Events: src, State: Initial(now().In(loc)), Now: now}
}

func (b *Browser) today() time.Time {
	return b.Now().In(b.State.Date.Location())
}

// Apply runs one navigation command: prev, next, today, day, month or year.
func (b *Browser) Apply(cmd string) error {
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	switch cmd {
	case "prev", "back", "backward", "next", "forward", "today":
		b.State = b.State.Step(cmd, b.today())
		return nil
	}
	g, err := ParseGranularity(cmd)
	if err != nil {
		return fmt.Errorf("unknown command %q", cmd)
	}
	b.State = b.State.WithGranularity(g)
	return nil
}

// GoTo moves the reference date, keeping the granularity.
func (b *Browser) GoTo(date time.Time) {
	b.State.Date = StartOfDay(date.In(b.State.Date.Location()))
}

func (b *Browser) View() View {
	return b.cache.Bin(b.Events.Version(), b.Events.Events(), b.State.Date, b.State.Granularity)
}

func (b *Browser) Page() Page {
	return Render(b.State, b.View(), b.today())
}

// CacheHits reports how many renders reused an earlier binning.
func (b *Browser) CacheHits() int {
	return b.cache.Hits()
}
