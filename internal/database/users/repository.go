// Package users provides database operations for identity records.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByUsername("alice")
package users

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/secrets/internal/entities"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateLocal creates a user with a local username/password credential.
// The caller passes the bcrypt hash; plaintext passwords never reach this
// layer.
func (r *Repository) CreateLocal(username, passwordHash string) (*entities.User, error) {
	user := &entities.User{
		Username:     &username,
		PasswordHash: passwordHash,
	}

	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindOrCreateByGoogleID returns the user linked to the given Google
// subject, creating the record on first sign-in. Concurrent calls for the
// same subject are resolved by the unique index: the loser of the insert
// race re-reads the winner's row, so exactly one record ever exists.
func (r *Repository) FindOrCreateByGoogleID(googleID, email string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("google_id = ?", googleID).First(&user).Error
	if err == nil {
		// Keep the linked address current across sign-ins.
		if user.Email != email {
			if err := r.db.Model(&user).Update("email", email).Error; err != nil {
				return nil, fmt.Errorf("failed to update email: %w", err)
			}
			user.Email = email
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	created := entities.User{
		GoogleID: &googleID,
		Email:    email,
	}
	err = r.db.Create(&created).Error
	if err == nil {
		return &created, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Lost the insert race; the winner's row must exist now.
	if err := r.db.Where("google_id = ?", googleID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to load user after conflict: %w", err)
	}
	return &user, nil
}

// Delete soft-deletes a user; subsequent lookups report ErrNotFound.
func (r *Repository) Delete(id uint) error {
	return r.db.Delete(&entities.User{}, id).Error
}

// TouchLastLogin records a successful sign-in. Failures are ignored; the
// timestamp is advisory.
func (r *Repository) TouchLastLogin(id uint, at time.Time) {
	r.db.Model(&entities.User{}).Where("id = ?", id).Update("last_login_at", at)
}

// GetByID retrieves a user by primary key.
func (r *Repository) GetByID(id uint) (*entities.User, error) {
	var user entities.User
	err := r.db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by their local username.
func (r *Repository) GetByUsername(username string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
