package entities

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNoAuthMethod is returned when a user record carries neither a local
// credential nor a linked Google identity.
var ErrNoAuthMethod = errors.New("user must have a password or a linked Google account")

// User is an identity that can sign in with a local username/password,
// a linked Google account, or both. Username and GoogleID are nullable so
// the unique indexes ignore accounts that never set them.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  *string        `gorm:"uniqueIndex;size:100" json:"username,omitempty"`
	Email     string         `gorm:"index;size:255" json:"email,omitempty"`
	GoogleID  *string        `gorm:"uniqueIndex;size:255" json:"-"`
	// PasswordHash is a bcrypt hash, empty for OAuth-only accounts. Never
	// exposed over JSON.
	PasswordHash string         `gorm:"size:255" json:"-"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// HasLocalCredential reports whether the user can sign in with a password.
func (u *User) HasLocalCredential() bool {
	return u.Username != nil && u.PasswordHash != ""
}

// HasGoogleIdentity reports whether the user is linked to a Google account.
func (u *User) HasGoogleIdentity() bool {
	return u.GoogleID != nil && *u.GoogleID != ""
}

// BeforeCreate rejects records with no way to authenticate.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if !u.HasLocalCredential() && !u.HasGoogleIdentity() {
		return ErrNoAuthMethod
	}
	return nil
}
