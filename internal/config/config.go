package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		UI
		Auth
		Google
		Mail
		Credentials
		CredentialPurge
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	UI struct {
		TemplatesPath string
		StaticPath    string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
	}
	Google struct {
		ClientID     string
		ClientSecret string
		CallbackURL  string // e.g. http://localhost:3000/auth/google/secrets
	}
	Mail struct {
		BaseURL string        // Gmail API base, overridable for tests
		Timeout time.Duration // Per-request timeout for the send call
	}
	Credentials struct {
		EncryptionKey string // Base64-encoded 32-byte key; auto-generated key file if empty
		KeyFilePath   string
	}
	CredentialPurge struct {
		Enabled  bool
		Schedule string // Cron format: "*/30 * * * *" = every 30 minutes
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 3000)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", "./secrets.db")
	v.SetDefault("templates_path", "./templates")
	v.SetDefault("static_path", "./static")

	// Auth defaults
	v.SetDefault("auth_session_secret", "") // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)

	// Google OAuth defaults; client credentials have no defaults and must
	// come from the environment.
	v.SetDefault("google_callback_url", "http://localhost:3000/auth/google/secrets")

	// Mail defaults
	v.SetDefault("mail_base_url", "https://gmail.googleapis.com")
	v.SetDefault("mail_timeout", "30s")

	// Credential encryption; the key itself only comes from the
	// environment or the key file.
	v.SetDefault("credential_encryption_key", "")
	v.SetDefault("credential_key_file_path", "")

	// Delegated credential cleanup defaults
	v.SetDefault("credential_purge_enabled", true)
	v.SetDefault("credential_purge_schedule", "*/30 * * * *")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		UI: UI{
			TemplatesPath: v.GetString("TEMPLATES_PATH"),
			StaticPath:    v.GetString("STATIC_PATH"),
		},
		Auth: Auth{
			SessionSecret:   v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime: v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:      v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:   v.GetBool("AUTH_SECURE_COOKIES"),
		},
		Google: Google{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			CallbackURL:  v.GetString("GOOGLE_CALLBACK_URL"),
		},
		Mail: Mail{
			BaseURL: v.GetString("MAIL_BASE_URL"),
			Timeout: v.GetDuration("MAIL_TIMEOUT"),
		},
		Credentials: Credentials{
			EncryptionKey: v.GetString("CREDENTIAL_ENCRYPTION_KEY"),
			KeyFilePath:   v.GetString("CREDENTIAL_KEY_FILE_PATH"),
		},
		CredentialPurge: CredentialPurge{
			Enabled:  v.GetBool("CREDENTIAL_PURGE_ENABLED"),
			Schedule: v.GetString("CREDENTIAL_PURGE_SCHEDULE"),
		},
	}
}
