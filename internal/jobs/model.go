package jobs

import "time"

const (
	TypePasswordResetDispatch = "PASSWORD_RESET_DISPATCH"

	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusDone      = "DONE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

type Job struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID string `gorm:"index;not null;type:varchar(36)"`

	Type    string `gorm:"type:text;not null"`
	Payload []byte `gorm:"not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"`

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// resetPayload is the body of a PASSWORD_RESET_DISPATCH job.
type resetPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}
