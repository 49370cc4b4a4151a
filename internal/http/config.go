package http

import (
	"github.com/mrlokans/secrets/internal/auth"
	"github.com/mrlokans/secrets/internal/credstore"
	"github.com/mrlokans/secrets/internal/database"
	"github.com/mrlokans/secrets/internal/database/users"
	"github.com/mrlokans/secrets/internal/mail"
	"github.com/mrlokans/secrets/internal/oauth2"
)

// RouterConfig carries every dependency the router needs. Passing a
// struct keeps NewRouter's signature stable as the surface grows and
// lets tests supply only what they exercise.
type RouterConfig struct {
	Database *database.Database
	Version  string

	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware

	Users          *users.Repository
	GoogleProvider *oauth2.GoogleProvider
	Credentials    *credstore.Store
	MailClient     *mail.Client

	CSRFSecret    []byte
	SecureCookies bool

	TemplatesPath string
	StaticPath    string
}
