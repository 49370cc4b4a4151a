package entities

import (
	"time"

	"gorm.io/gorm"
)

// DelegatedCredential stores the Gmail access token a user granted during
// Google sign-in. One row per user; each sign-in overwrites the previous
// grant, so concurrent logins by different users never share a slot.
type DelegatedCredential struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	// AccessToken is stored as base64-encoded AES-256-GCM ciphertext.
	AccessToken string `gorm:"type:text;not null" json:"-"`

	TokenType string `gorm:"type:varchar(50);default:Bearer" json:"token_type"`

	// Email is the Google account address the token was issued for; it is
	// used as the sender address when dispatching mail.
	Email string `gorm:"size:255" json:"email"`

	Scope string `gorm:"type:text" json:"scope,omitempty"`

	// ExpiresAt is nil for tokens whose expiry the provider did not report.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (DelegatedCredential) TableName() string {
	return "delegated_credentials"
}

// IsExpired reports whether the access token is past its expiry.
func (c *DelegatedCredential) IsExpired() bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*c.ExpiresAt)
}
