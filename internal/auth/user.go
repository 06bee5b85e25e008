package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account. PasswordHash is empty for accounts that only ever
// signed in through a federated provider.
type User struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)"`
	Email           string    `gorm:"uniqueIndex;not null"`
	DisplayName     string    `gorm:"not null;default:''"`
	PhotoURL        string    `gorm:"not null;default:''"`
	PasswordHash    string    `gorm:"not null;default:''"`
	Provider        string    `gorm:"type:varchar(64);not null;default:''"`
	ProviderSubject string    `gorm:"type:varchar(255);not null;default:''"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (u User) Principal() *Principal {
	return &Principal{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

// RevokedToken blocks a signed-out JWT until it would have expired anyway.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;type:varchar(64)"`
	UserID    string    `gorm:"index;not null;type:varchar(36)"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// PasswordReset is a single-use reset token. Only the sha256 of the token
// is stored.
type PasswordReset struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)"`
	UserID    string     `gorm:"index;not null;type:varchar(36)"`
	TokenHash string     `gorm:"uniqueIndex;not null;type:varchar(64)"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

func (r *PasswordReset) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
