// Package http wires the web surface: pages, the Google sign-in flow and
// the mail submission form.
package http

import (
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/secrets/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Security headers on every response
	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by
	// CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	// Load HTML templates; tests run without a templates directory and
	// fall back to JSON responses.
	hasTemplates := false
	if cfg.TemplatesPath != "" {
		if tmpl, err := template.ParseGlob(cfg.TemplatesPath + "/*.html"); err == nil {
			router.SetHTMLTemplate(tmpl)
			hasTemplates = true
		}
	}

	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	// Login, register and logout
	if cfg.AuthService != nil && cfg.SessionManager != nil {
		authController := auth.NewController(cfg.AuthService, cfg.SessionManager, cfg.TemplatesPath)
		authController.RegisterRoutes(router)
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)

	pages := NewPagesController(cfg.Credentials, hasTemplates)
	router.GET("/", pages.Landing)
	router.GET("/secrets", pages.Secrets)

	if cfg.GoogleProvider != nil {
		google := NewGoogleController(cfg.GoogleProvider, cfg.Users, cfg.SessionManager, cfg.Credentials)
		router.GET("/auth/google", google.Start)
		router.GET("/auth/google/secrets", google.Callback)
	}

	if cfg.MailClient != nil {
		submit := NewSubmitController(cfg.Credentials, cfg.MailClient, hasTemplates)
		router.GET("/submit", submit.Page)
		router.POST("/submit", submit.Send)
	}

	return router
}
