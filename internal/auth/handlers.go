package auth

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/secrets/internal/database/users"
)

// isLocalPath validates that a redirect path is local to prevent open
// redirect attacks.
func isLocalPath(path string) bool {
	if path == "" {
		return false
	}

	// Must start with /
	if !strings.HasPrefix(path, "/") {
		return false
	}

	// Reject protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}

	// Reject URLs with schemes
	if strings.Contains(path, "://") {
		return false
	}

	// Reject paths with backslashes (potential bypass attempts)
	if strings.Contains(path, "\\") {
		return false
	}

	return true
}

// sanitizeRedirectPath returns a safe redirect path, defaulting to
// "/secrets" if invalid.
func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/secrets"
}

// Controller handles the login, register and logout endpoints.
type Controller struct {
	service        *Service
	sessionManager *SessionManager
	templates      *template.Template
}

// NewController creates the authentication controller. Missing templates
// are tolerated; responses fall back to JSON, which the tests use.
func NewController(service *Service, sessionManager *SessionManager, templatesPath string) *Controller {
	pattern := filepath.Join(templatesPath, "auth", "*.html")
	tmpl, err := template.ParseGlob(pattern)
	if err != nil {
		tmpl = nil
	}

	return &Controller{
		service:        service,
		sessionManager: sessionManager,
		templates:      tmpl,
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ct *Controller) RegisterRoutes(router *gin.Engine) {
	router.GET("/login", ct.LoginPage)
	router.POST("/login", ct.Login)
	router.GET("/register", ct.RegisterPage)
	router.POST("/register", ct.Register)
	router.GET("/logout", ct.Logout)
	router.POST("/logout", ct.Logout)
}

// LoginPage renders the login form.
func (ct *Controller) LoginPage(c *gin.Context) {
	if ct.sessionManager != nil && ct.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/secrets")
		return
	}

	ct.renderTemplate(c, "login.html", gin.H{
		"Title":     "Login",
		"Next":      sanitizeRedirectPath(c.Query("next")),
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// Login handles the login form submission. A session is established only
// after the password verifies; the failure message is identical for
// unknown users and wrong passwords.
func (ct *Controller) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	next := sanitizeRedirectPath(c.PostForm("next"))

	user, err := ct.service.Authenticate(username, password)
	if err != nil {
		ct.renderTemplate(c, "login.html", gin.H{
			"Title":     "Login",
			"Next":      next,
			"Username":  username,
			"CSRFToken": GetCSRFToken(c),
			"Error":     "Invalid username or password",
		})
		return
	}

	if err := ct.sessionManager.Establish(c.Request, user); err != nil {
		ct.renderTemplate(c, "login.html", gin.H{
			"Title":     "Login",
			"Next":      next,
			"Username":  username,
			"CSRFToken": GetCSRFToken(c),
			"Error":     "Failed to create session",
		})
		return
	}

	c.Redirect(http.StatusFound, next)
}

// RegisterPage renders the registration form.
func (ct *Controller) RegisterPage(c *gin.Context) {
	if ct.sessionManager != nil && ct.sessionManager.IsAuthenticated(c.Request) {
		c.Redirect(http.StatusFound, "/secrets")
		return
	}

	ct.renderTemplate(c, "register.html", gin.H{
		"Title":     "Register",
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// Register creates a local account and signs the new user in.
func (ct *Controller) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := ct.service.Register(username, password)
	if err != nil {
		errorMsg := "Failed to create account"
		switch {
		case errors.Is(err, users.ErrDuplicateUsername):
			errorMsg = "That username is already taken"
		case errors.Is(err, ErrPasswordTooShort):
			errorMsg = "Password must be at least 12 characters"
		case errors.Is(err, ErrPasswordTooLong):
			errorMsg = "Password exceeds maximum length of 72 characters"
		case errors.Is(err, ErrUsernameRequired):
			errorMsg = "Username is required"
		case errors.Is(err, ErrPasswordRequired):
			errorMsg = "Password is required"
		case errors.Is(err, ErrUsernameInvalid):
			errorMsg = "Username must be 3-64 characters, alphanumeric with underscore/hyphen only"
		}

		ct.renderTemplate(c, "register.html", gin.H{
			"Title":     "Register",
			"Username":  username,
			"CSRFToken": GetCSRFToken(c),
			"Error":     errorMsg,
		})
		return
	}

	if err := ct.sessionManager.Establish(c.Request, user); err != nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	c.Redirect(http.StatusFound, "/secrets")
}

// Logout destroys the session and returns to the landing page.
func (ct *Controller) Logout(c *gin.Context) {
	if ct.sessionManager != nil {
		_ = ct.sessionManager.Terminate(c.Request)
	}
	c.Redirect(http.StatusFound, "/")
}

// renderTemplate renders an auth template or falls back to JSON.
func (ct *Controller) renderTemplate(c *gin.Context, name string, data gin.H) {
	if ct.templates == nil {
		c.JSON(http.StatusOK, data)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := ct.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		c.String(http.StatusInternalServerError, "Template error: %v", err)
	}
}
