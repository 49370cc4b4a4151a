package auth

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/secrets/internal/config"
	"github.com/mrlokans/secrets/internal/database/users"
	"github.com/mrlokans/secrets/internal/entities"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrUsernameInvalid    = errors.New("username must be 3-64 characters, alphanumeric and underscore/hyphen only")
)

// Service handles registration and local credential verification.
type Service struct {
	users  *users.Repository
	config config.Auth

	// dummyHash is compared against when the username is unknown so both
	// failure paths cost one bcrypt verification.
	dummyHash string
}

// NewService creates a new authentication service.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	dummy, err := HashPassword("not-a-real-password-000", cfg.BcryptCost)
	if err != nil {
		// Only reachable with an out-of-range cost; fall back to the
		// library default so Authenticate still burns a comparison.
		dummy, _ = HashPassword("not-a-real-password-000", 10)
	}
	return &Service{
		users:     users.NewRepository(db),
		config:    cfg,
		dummyHash: dummy,
	}
}

// Register creates a user with a local credential. The plaintext password
// is hashed here and never stored or logged.
func (s *Service) Register(username, password string) (*entities.User, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrUsernameInvalid
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateLocal(username, passwordHash)
	if err != nil {
		if errors.Is(err, users.ErrDuplicateUsername) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies a local credential and returns the user. Every
// failure mode related to the submitted credentials collapses into
// ErrInvalidCredentials.
func (s *Service) Authenticate(username, password string) (*entities.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			// Burn a comparison so unknown users are not distinguishable
			// by response time.
			_ = CheckPassword(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !user.HasLocalCredential() {
		_ = CheckPassword(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	now := time.Now()
	s.users.TouchLastLogin(user.ID, now)
	user.LastLoginAt = &now

	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	return s.users.GetByID(id)
}
