package event

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultReminderMinutes is applied when a form enables no explicit lead time.
const DefaultReminderMinutes = 15

// Event is a user-owned, time-bound calendar entry. Reminder fields are
// stored and exported but nothing schedules them.
type Event struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)"`
	UserID          string    `gorm:"index;not null;type:varchar(36)"`
	Title           string    `gorm:"type:varchar(100);not null"`
	Description     string    `gorm:"type:text;not null;default:''"`
	StartDate       time.Time `gorm:"not null"`
	EndDate         time.Time `gorm:"not null"`
	Color           Color     `gorm:"type:varchar(16);not null;default:'blue'"`
	Reminder        bool      `gorm:"not null;default:false"`
	ReminderMinutes int       `gorm:"not null;default:15"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// In returns a copy with both instants converted to loc.
func (e Event) In(loc *time.Location) Event {
	e.StartDate = e.StartDate.In(loc)
	e.EndDate = e.EndDate.In(loc)
	return e
}

// Duration is the event length; zero for instantaneous events.
func (e Event) Duration() time.Duration {
	return e.EndDate.Sub(e.StartDate)
}

// FormData is the user-editable subset of an Event.
type FormData struct {
	Title           string
	Description     string
	StartDate       time.Time
	EndDate         time.Time
	Color           Color
	Reminder        bool
	ReminderMinutes *int
}

// Normalized trims text fields and applies the reminder default.
func (f FormData) Normalized() FormData {
	f.Title = sanitize(f.Title)
	f.Description = sanitize(f.Description)
	if f.Color == "" {
		f.Color = ColorBlue
	}
	if f.ReminderMinutes == nil {
		m := DefaultReminderMinutes
		f.ReminderMinutes = &m
	}
	return f
}

// FormFromEvent returns the form that would reproduce e.
func FormFromEvent(e Event) FormData {
	m := e.ReminderMinutes
	return FormData{
		Title:           e.Title,
		Description:     e.Description,
		StartDate:       e.StartDate,
		EndDate:         e.EndDate,
		Color:           e.Color,
		Reminder:        e.Reminder,
		ReminderMinutes: &m,
	}
}

// Filter narrows a listing. Zero values mean "no constraint".
type Filter struct {
	Start  *time.Time
	End    *time.Time
	Colors []Color
	Search string
}
