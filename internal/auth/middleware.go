package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/secrets/internal/entities"
)

// Context keys for user data
const (
	ContextKeyUserID   = "auth_user_id"
	ContextKeyUsername = "auth_username"
)

// Middleware resolves the session on every request and gates the
// protected routes.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	publicPaths    map[string]bool
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	publicPaths := map[string]bool{
		"/":                    true,
		"/health":              true,
		"/login":               true,
		"/register":            true,
		"/auth/google":         true,
		"/auth/google/secrets": true,
		"/logout":              true,
		"/favicon.ico":         true,
	}

	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		publicPaths:    publicPaths,
	}
}

// Handler authenticates requests. Public paths pass through either way;
// everything else needs a session that resolves to a live user.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := m.resolveSession(c); user != nil {
			m.setUserContext(c, user)
			c.Next()
			return
		}

		if m.isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.Path))
		c.Abort()
	}
}

// resolveSession maps the session cookie to a user record. A session
// pointing at a deleted user resolves to nil, same as no session.
func (m *Middleware) resolveSession(c *gin.Context) *entities.User {
	if m.sessionManager == nil {
		return nil
	}

	userID := m.sessionManager.GetUserID(c.Request)
	if userID == 0 {
		return nil
	}

	user, err := m.service.GetUserByID(userID)
	if err != nil {
		return nil
	}

	return user
}

func (m *Middleware) setUserContext(c *gin.Context, user *entities.User) {
	c.Set(ContextKeyUserID, user.ID)
	if user.Username != nil {
		c.Set(ContextKeyUsername, *user.Username)
	} else {
		c.Set(ContextKeyUsername, user.Email)
	}
}

// isPublicPath checks if a path is accessible without authentication.
func (m *Middleware) isPublicPath(path string) bool {
	if m.publicPaths[path] {
		return true
	}

	// Prefix match for static files
	if strings.HasPrefix(path, "/static/") {
		return true
	}

	return false
}

// RequireAuth gates a route group; unauthenticated requests are sent to
// the login page with a return path.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == 0 {
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID retrieves the authenticated user's ID from the context.
// Returns 0 if not authenticated.
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextKeyUserID); exists {
		if userID, ok := id.(uint); ok {
			return userID
		}
	}
	return 0
}

// GetUsername retrieves the display name of the authenticated user.
func GetUsername(c *gin.Context) string {
	if name, exists := c.Get(ContextKeyUsername); exists {
		if username, ok := name.(string); ok {
			return username
		}
	}
	return ""
}

// IsAuthenticated returns true if the request carries a resolved user.
func IsAuthenticated(c *gin.Context) bool {
	return GetUserID(c) != 0
}
