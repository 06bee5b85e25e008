package event

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"planning/internal/apperr"
)

const (
	TitleMinLen       = 3
	TitleMaxLen       = 100
	DescriptionMaxLen = 500
)

// ReminderChoices are the lead times a form may offer, in minutes.
var ReminderChoices = []int{5, 15, 30, 60, 120, 1440}

var spaceRun = regexp.MustCompile(`\s+`)

func sanitize(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Validate checks a form before anything is sent to the store. It returns
// nil or an apperr validation error keyed by form field.
func Validate(f FormData) error {
	fields := map[string]string{}

	title := strings.TrimSpace(f.Title)
	if n := utf8.RuneCountInString(title); n < TitleMinLen || n > TitleMaxLen {
		fields["title"] = "title must be between 3 and 100 characters"
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(f.Description)); n > DescriptionMaxLen {
		fields["description"] = "description cannot exceed 500 characters"
	}

	if f.StartDate.IsZero() {
		fields["startDate"] = "start date is required"
	}
	if f.EndDate.IsZero() {
		fields["endDate"] = "end date is required"
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		fields["dateRange"] = "end date must not be before start date"
	}

	if f.Color != "" && !f.Color.Valid() {
		fields["color"] = "unknown color"
	}

	if f.Reminder && f.ReminderMinutes != nil && !validReminder(*f.ReminderMinutes) {
		fields["reminderMinutes"] = "reminder must be one of 5, 15, 30, 60, 120 or 1440 minutes"
	}

	if len(fields) == 0 {
		return nil
	}
	return apperr.NewValidationError(fields)
}

func validReminder(m int) bool {
	for _, c := range ReminderChoices {
		if c == m {
			return true
		}
	}
	return false
}
