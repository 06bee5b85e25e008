package event

import (
	"context"
	"testing"
	"time"

	"planning/internal/apperr"
	"planning/internal/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	s := NewGormStore(dbtest.Open(t, &Event{}))
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }
	return s
}

func form(title string, start time.Time, d time.Duration) FormData {
	return FormData{Title: title, StartDate: start, EndDate: start.Add(d)}
}

func TestGormStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, paris)

	id, err := s.Create(ctx, "user-1", FormData{
		Title:       "  Dentist ",
		Description: "bring forms",
		StartDate:   start,
		EndDate:     start.Add(time.Hour),
		Color:       ColorGreen,
		Reminder:    true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ev, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, "Dentist", ev.Title)
	assert.Equal(t, "bring forms", ev.Description)
	assert.True(t, start.Equal(ev.StartDate))
	assert.True(t, start.Add(time.Hour).Equal(ev.EndDate))
	assert.Equal(t, ColorGreen, ev.Color)
	assert.True(t, ev.Reminder)
	assert.Equal(t, DefaultReminderMinutes, ev.ReminderMinutes)
	assert.True(t, ev.CreatedAt.Equal(s.Now()))
	assert.True(t, ev.UpdatedAt.Equal(s.Now()))
}

func TestGormStore_CreateRejectsInvertedRange(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	_, err := s.Create(context.Background(), "user-1", form("Backwards", start, -time.Hour))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGormStore_ListOrderingAndScope(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	_, err := s.Create(ctx, "user-1", form("Late", base.Add(15*time.Hour), time.Hour))
	require.NoError(t, err)
	_, err = s.Create(ctx, "user-1", form("Early", base.Add(8*time.Hour), time.Hour))
	require.NoError(t, err)
	_, err = s.Create(ctx, "user-2", form("Other", base.Add(9*time.Hour), time.Hour))
	require.NoError(t, err)

	events, err := s.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Early", events[0].Title)
	assert.Equal(t, "Late", events[1].Title)

	n, err := s.CountForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestGormStore_ListInRangeIsClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		title string
		start time.Time
	}{
		{"Before", day.Add(-time.Second)},
		{"AtStart", day},
		{"Noon", day.Add(12 * time.Hour)},
		{"AtEnd", day.Add(24*time.Hour - time.Second)},
		{"After", day.Add(24 * time.Hour)},
	} {
		_, err := s.Create(ctx, "user-1", form(tc.title, tc.start, 0))
		require.NoError(t, err)
	}

	events, err := s.ListForUserInRange(ctx, "user-1", day, day.Add(24*time.Hour-time.Second))
	require.NoError(t, err)

	titles := make([]string, 0, len(events))
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"AtStart", "Noon", "AtEnd"}, titles)
}

func TestGormStore_ListFiltered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	mk := func(title, desc string, c Color, offset time.Duration) {
		_, err := s.Create(ctx, "user-1", FormData{
			Title: title, Description: desc, StartDate: base.Add(offset), EndDate: base.Add(offset), Color: c,
		})
		require.NoError(t, err)
	}
	mk("Team sync", "", ColorBlue, 0)
	mk("Gym", "leg day", ColorRed, time.Hour)
	mk("Lunch", "with the TEAM", ColorGreen, 2*time.Hour)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"Team sync", "Gym", "Lunch"}},
		{"colors", Filter{Colors: []Color{ColorRed, ColorGreen}}, []string{"Gym", "Lunch"}},
		{"search title or description", Filter{Search: "team"}, []string{"Team sync", "Lunch"}},
		{"search and color", Filter{Search: "team", Colors: []Color{ColorBlue}}, []string{"Team sync"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.ListFiltered(ctx, "user-1", tt.filter)
			require.NoError(t, err)
			got := make([]string, 0, len(events))
			for _, e := range events {
				got = append(got, e.Title)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGormStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	id, err := s.Create(ctx, "user-1", form("Draft", start, time.Hour))
	require.NoError(t, err)

	s.Now = func() time.Time { return start.Add(48 * time.Hour) }
	require.NoError(t, s.Update(ctx, id, FormData{
		Title: "Final", StartDate: start, EndDate: start.Add(2 * time.Hour), Color: ColorPurple,
	}))

	ev, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Final", ev.Title)
	assert.Equal(t, ColorPurple, ev.Color)
	assert.True(t, ev.UpdatedAt.Equal(start.Add(48*time.Hour)))
	assert.Equal(t, 2*time.Hour, ev.Duration())

	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	assert.True(t, IsNotFound(err))

	// deleting twice is reported, not silently accepted
	err = s.Delete(ctx, id)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))

	err = s.Update(ctx, id, form("Ghost", start, 0))
	assert.True(t, IsNotFound(err))
}
