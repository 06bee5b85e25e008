package event

import (
	"context"
	"errors"
	"strings"
	"time"

	"planning/internal/apperr"
	"planning/internal/logging"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("event not found")
	ErrForbidden = errors.New("event belongs to another user")
)

// Store is the persistence contract for events. Listings are ordered by
// start instant ascending. Every failure is an apperr store error.
type Store interface {
	Create(ctx context.Context, userID string, f FormData) (string, error)
	Update(ctx context.Context, id string, f FormData) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Event, error)
	ListForUser(ctx context.Context, userID string) ([]Event, error)
	ListForUserInRange(ctx context.Context, userID string, start, end time.Time) ([]Event, error)
	ListFiltered(ctx context.Context, userID string, f Filter) ([]Event, error)
	CountForUser(ctx context.Context, userID string) (int64, error)
}

type GormStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db, Now: time.Now}
}

func (s *GormStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Create persists a new event. Validation runs again here, start ≤ end included.
func (s *GormStore) Create(ctx context.Context, userID string, f FormData) (string, error) {
	f = f.Normalized()
	if err := Validate(f); err != nil {
		return "", err
	}

	now := s.now()
	ev := Event{
		UserID:          userID,
		Title:           f.Title,
		Description:     f.Description,
		StartDate:       f.StartDate.UTC(),
		EndDate:         f.EndDate.UTC(),
		Color:           f.Color,
		Reminder:        f.Reminder,
		ReminderMinutes: *f.ReminderMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.DB.WithContext(ctx).Create(&ev).Error; err != nil {
		logging.Store().Error().Err(err).Str("user_id", userID).Msg("create event failed")
		return "", apperr.NewStoreError("create event", err)
	}
	return ev.ID, nil
}

func (s *GormStore) Update(ctx context.Context, id string, f FormData) error {
	f = f.Normalized()
	if err := Validate(f); err != nil {
		return err
	}

	res := s.DB.WithContext(ctx).Model(&Event{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":            f.Title,
			"description":      f.Description,
			"start_date":       f.StartDate.UTC(),
			"end_date":         f.EndDate.UTC(),
			"color":            f.Color,
			"reminder":         f.Reminder,
			"reminder_minutes": *f.ReminderMinutes,
			"updated_at":       s.now(),
		})
	if res.Error != nil {
		logging.Store().Error().Err(res.Error).Str("event_id", id).Msg("update event failed")
		return apperr.NewStoreError("update event", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewStoreError("update event", ErrNotFound)
	}
	return nil
}

// Delete removes an event. Deleting an unknown id reports ErrNotFound.
func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&Event{})
	if res.Error != nil {
		logging.Store().Error().Err(res.Error).Str("event_id", id).Msg("delete event failed")
		return apperr.NewStoreError("delete event", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewStoreError("delete event", ErrNotFound)
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (Event, error) {
	var ev Event
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Event{}, apperr.NewStoreError("get event", ErrNotFound)
		}
		return Event{}, apperr.NewStoreError("get event", err)
	}
	return ev, nil
}

func (s *GormStore) ListForUser(ctx context.Context, userID string) ([]Event, error) {
	return s.ListFiltered(ctx, userID, Filter{})
}

// ListForUserInRange returns events whose start lies in [start, end].
func (s *GormStore) ListForUserInRange(ctx context.Context, userID string, start, end time.Time) ([]Event, error) {
	return s.ListFiltered(ctx, userID, Filter{Start: &start, End: &end})
}

func (s *GormStore) ListFiltered(ctx context.Context, userID string, f Filter) ([]Event, error) {
	q := s.DB.WithContext(ctx).Model(&Event{}).Where("user_id = ?", userID)

	if f.Start != nil {
		q = q.Where("start_date >= ?", f.Start.UTC())
	}
	if f.End != nil {
		q = q.Where("start_date <= ?", f.End.UTC())
	}
	if len(f.Colors) > 0 {
		q = q.Where("color IN ?", f.Colors)
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}

	var rows []Event
	if err := q.Order("start_date asc").Order("id asc").Find(&rows).Error; err != nil {
		logging.Store().Error().Err(err).Str("user_id", userID).Msg("list events failed")
		return nil, apperr.NewStoreError("list events", err)
	}
	return rows, nil
}

func (s *GormStore) CountForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&Event{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, apperr.NewStoreError("count events", err)
	}
	return n, nil
}
