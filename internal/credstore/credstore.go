// Package credstore stores per-user delegated Gmail credentials using
// AES-256-GCM encryption at rest.
package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/secrets/internal/config"
	"github.com/mrlokans/secrets/internal/crypto"
	"github.com/mrlokans/secrets/internal/entities"
)

const (
	// EnvEncryptionKey is the environment variable for the encryption key
	EnvEncryptionKey = "CREDENTIAL_ENCRYPTION_KEY"

	// DefaultKeyFileName is the default name for the key file
	DefaultKeyFileName = ".secrets-credential-key"
)

// ErrNoCredential is returned when a user has no usable delegated
// credential: either none was ever granted, or the grant has expired.
var ErrNoCredential = errors.New("no delegated credential")

// Credential is the decrypted form handed to callers. The access token
// only ever exists in this shape in memory.
type Credential struct {
	AccessToken string
	TokenType   string
	Email       string
	Scope       string
	ExpiresAt   *time.Time
}

// Store persists one delegated credential per user.
type Store struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

// New creates a credential store on the shared application database.
func New(db *gorm.DB, cfg config.Credentials) (*Store, error) {
	key, err := resolveEncryptionKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}

	encryptor, err := crypto.NewEncryptorFromBase64(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	return &Store{
		db:        db,
		encryptor: encryptor,
	}, nil
}

// resolveEncryptionKey determines the encryption key from various sources
func resolveEncryptionKey(cfg config.Credentials) (string, error) {
	// Priority 1: Explicitly configured key
	if cfg.EncryptionKey != "" {
		return cfg.EncryptionKey, nil
	}

	// Priority 2: Environment variable
	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return envKey, nil
	}

	// Priority 3: Key file
	keyFilePath := cfg.KeyFilePath
	if keyFilePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		keyFilePath = filepath.Join(homeDir, DefaultKeyFileName)
	}

	if data, err := os.ReadFile(keyFilePath); err == nil {
		return string(data), nil
	}

	// Generate new key and save it
	newKey, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}

	if err := os.WriteFile(keyFilePath, []byte(newKey), 0600); err != nil {
		return "", fmt.Errorf("failed to save encryption key to %s: %w", keyFilePath, err)
	}

	return newKey, nil
}

// Save stores a user's delegated credential, replacing any previous
// grant. Each user owns exactly one row, so two users signing in at the
// same time never clobber each other's token.
func (s *Store) Save(userID uint, cred Credential) error {
	encAccessToken, err := s.encryptor.Encrypt(cred.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	tokenType := cred.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	record := &entities.DelegatedCredential{
		UserID:      userID,
		AccessToken: encAccessToken,
		TokenType:   tokenType,
		Email:       cred.Email,
		Scope:       cred.Scope,
		ExpiresAt:   cred.ExpiresAt,
	}

	// Upsert: update if exists, create if not
	result := s.db.Where("user_id = ?", userID).
		Assign(map[string]interface{}{
			"access_token": encAccessToken,
			"token_type":   tokenType,
			"email":        cred.Email,
			"scope":        cred.Scope,
			"expires_at":   cred.ExpiresAt,
			"updated_at":   time.Now(),
		}).
		FirstOrCreate(record)

	if result.Error != nil {
		return fmt.Errorf("failed to save credential: %w", result.Error)
	}

	return nil
}

// Get retrieves and decrypts a user's delegated credential. An expired
// grant is reported the same way as a missing one; the caller's remedy
// is identical in both cases.
func (s *Store) Get(userID uint) (*Credential, error) {
	var record entities.DelegatedCredential
	err := s.db.Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if record.IsExpired() {
		return nil, ErrNoCredential
	}

	accessToken, err := s.encryptor.Decrypt(record.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	return &Credential{
		AccessToken: accessToken,
		TokenType:   record.TokenType,
		Email:       record.Email,
		Scope:       record.Scope,
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

// Delete removes a user's delegated credential.
func (s *Store) Delete(userID uint) error {
	result := s.db.Where("user_id = ?", userID).
		Delete(&entities.DelegatedCredential{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete credential: %w", result.Error)
	}
	return nil
}

// PurgeExpired removes credentials whose access token is past its
// expiry. Returns the number of rows removed.
func (s *Store) PurgeExpired() (int64, error) {
	result := s.db.Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&entities.DelegatedCredential{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired credentials: %w", result.Error)
	}
	return result.RowsAffected, nil
}
