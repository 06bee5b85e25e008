package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"planning/internal/apperr"
	"planning/internal/auth"
	"planning/internal/logging"
)

// Collection is the in-memory event list of the session's current user.
//
// Every successful mutation reloads the list from the store; a failed one
// leaves it untouched. Loads are stamped with a generation so a result that
// arrives after the principal changed, or after a newer load began, is
// dropped rather than applied.
type Collection struct {
	store   Store
	session *auth.Session

	mu         sync.RWMutex
	events     []Event
	loaded     bool
	generation uint64
	version    uint64
	owner      string

	unsubscribe func()
}

func NewCollection(store Store, session *auth.Session) *Collection {
	c := &Collection{store: store, session: session, owner: principalID(session.Current())}
	c.unsubscribe = session.Subscribe(c.onPrincipalChange)
	return c
}

// Close detaches the collection from its session.
func (c *Collection) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// onPrincipalChange drops the list when the signed-in user changes. A profile
// update republishes the same user and keeps it.
func (c *Collection) onPrincipalChange(p *auth.Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := principalID(p)
	if id == c.owner {
		return
	}
	c.owner = id
	c.generation++
	c.events = nil
	c.loaded = false
	c.version++
}

func principalID(p *auth.Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}

// Events returns a snapshot of the loaded events, ordered by start.
func (c *Collection) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *Collection) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Version changes whenever the visible list changes; caches key on it.
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Load fetches the current user's events. Without a principal the list is
// emptied and nil returned.
func (c *Collection) Load(ctx context.Context) error {
	p := c.session.Current()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if p == nil {
		c.events = nil
		c.loaded = false
		c.version++
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	events, err := c.store.ListForUser(ctx, p.ID)
	if err != nil {
		logging.Session().Error().Err(err).Str("user_id", p.ID).Msg("load events failed")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		logging.Session().Debug().Str("user_id", p.ID).Msg("discarding stale event load")
		return nil
	}
	c.events = events
	c.loaded = true
	c.version++
	return nil
}

// Create validates f, persists it for the current user and reloads.
func (c *Collection) Create(ctx context.Context, f FormData) (string, error) {
	p := c.session.Current()
	if p == nil {
		return "", apperr.ErrNotAuthenticated
	}
	if err := Validate(f); err != nil {
		return "", err
	}

	id, err := c.store.Create(ctx, p.ID, f)
	if err != nil {
		logging.Session().Error().Err(err).Str("user_id", p.ID).Msg("create event failed")
		return "", err
	}
	c.reload(ctx, "create event")
	return id, nil
}

func (c *Collection) Update(ctx context.Context, id string, f FormData) error {
	p := c.session.Current()
	if p == nil {
		return apperr.ErrNotAuthenticated
	}
	if err := Validate(f); err != nil {
		return err
	}
	if err := c.authorize(ctx, p, "update event", id); err != nil {
		return err
	}

	if err := c.store.Update(ctx, id, f); err != nil {
		logging.Session().Error().Err(err).Str("event_id", id).Msg("update event failed")
		return err
	}
	c.reload(ctx, "update event")
	return nil
}

func (c *Collection) Delete(ctx context.Context, id string) error {
	p := c.session.Current()
	if p == nil {
		return apperr.ErrNotAuthenticated
	}
	if err := c.authorize(ctx, p, "delete event", id); err != nil {
		return err
	}

	if err := c.store.Delete(ctx, id); err != nil {
		logging.Session().Error().Err(err).Str("event_id", id).Msg("delete event failed")
		return err
	}
	c.reload(ctx, "delete event")
	return nil
}

// reload refreshes the list after a write the store already accepted. A
// failed reload keeps the previous list and does not fail the write; the
// next Load catches up.
func (c *Collection) reload(ctx context.Context, op string) {
	if err := c.Load(ctx); err != nil {
		logging.Session().Warn().Err(err).Str("op", op).Msg("reload after write failed")
	}
}

func (c *Collection) authorize(ctx context.Context, p *auth.Principal, op, id string) error {
	ev, err := c.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if ev.UserID != p.ID {
		return apperr.NewStoreError(op, ErrForbidden)
	}
	return nil
}

// ByID looks an event up in the loaded list.
func (c *Collection) ByID(id string) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// InRange filters the loaded list to events starting within [start, end].
func (c *Collection) InRange(start, end time.Time) []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Event
	for _, e := range c.events {
		if !e.StartDate.Before(start) && !e.StartDate.After(end) {
			out = append(out, e)
		}
	}
	return out
}

// IsNotFound reports whether err is the store's not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden reports whether err is an ownership failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
