package http

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/secrets/internal/auth"
	"github.com/mrlokans/secrets/internal/credstore"
	"github.com/mrlokans/secrets/internal/database/users"
	"github.com/mrlokans/secrets/internal/oauth2"
)

// sessionKeyOAuthState holds the pending authorization state between the
// redirect to Google and the callback.
const sessionKeyOAuthState = "oauth_state"

// GoogleController drives the Google sign-in flow. A successful callback
// links (or creates) the account, stores the delegated Gmail credential
// and establishes a session.
type GoogleController struct {
	provider    *oauth2.GoogleProvider
	users       *users.Repository
	sessions    *auth.SessionManager
	credentials *credstore.Store
}

func NewGoogleController(
	provider *oauth2.GoogleProvider,
	users *users.Repository,
	sessions *auth.SessionManager,
	credentials *credstore.Store,
) *GoogleController {
	return &GoogleController{
		provider:    provider,
		users:       users,
		sessions:    sessions,
		credentials: credentials,
	}
}

// Start redirects to the Google consent page. The state parameter lives
// in the session so the callback can verify it came from this browser.
func (g *GoogleController) Start(c *gin.Context) {
	state, err := oauth2.GenerateState()
	if err != nil {
		log.Printf("Failed to generate oauth state: %v", err)
		c.Redirect(http.StatusFound, "/login?error=Google+sign-in+is+unavailable")
		return
	}

	g.sessions.Put(c.Request.Context(), sessionKeyOAuthState, state)
	c.Redirect(http.StatusFound, g.provider.AuthCodeURL(state))
}

// Callback completes the flow: verify state, exchange the code, resolve
// the Google profile, upsert the user and their delegated credential,
// then sign them in.
func (g *GoogleController) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		log.Printf("Google authorization denied: %s", errParam)
		c.Redirect(http.StatusFound, "/login?error=Google+sign-in+was+cancelled")
		return
	}

	// One-shot read; a replayed callback cannot reuse the state.
	expectedState := g.sessions.PopString(c.Request.Context(), sessionKeyOAuthState)
	if expectedState == "" || c.Query("state") != expectedState {
		log.Printf("Google callback rejected: %v", oauth2.ErrStateMismatch)
		c.Redirect(http.StatusFound, "/login?error=Sign-in+session+expired.+Please+try+again.")
		return
	}

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, "/login?error=Google+sign-in+failed")
		return
	}

	token, err := g.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		log.Printf("Google code exchange failed: %v", err)
		c.Redirect(http.StatusFound, "/login?error=Google+sign-in+failed")
		return
	}

	profile, err := g.provider.FetchProfile(c.Request.Context(), token)
	if err != nil {
		log.Printf("Google profile fetch failed: %v", err)
		c.Redirect(http.StatusFound, "/login?error=Google+sign-in+failed")
		return
	}

	user, err := g.users.FindOrCreateByGoogleID(profile.Sub, profile.Email)
	if err != nil {
		log.Printf("Failed to resolve Google user: %v", err)
		c.Redirect(http.StatusFound, "/login?error=Google+sign-in+failed")
		return
	}

	if g.credentials != nil {
		var expiresAt *time.Time
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			expiresAt = &expiry
		}

		scope := strings.Join(oauth2.Scopes, " ")
		if granted, ok := token.Extra("scope").(string); ok && granted != "" {
			scope = granted
		}

		err := g.credentials.Save(user.ID, credstore.Credential{
			AccessToken: token.AccessToken,
			TokenType:   token.TokenType,
			Email:       profile.Email,
			Scope:       scope,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			// The sign-in still succeeds; mail sending will prompt for a
			// fresh grant.
			log.Printf("Failed to store delegated credential for user %d: %v", user.ID, err)
		}
	}

	if err := g.sessions.Establish(c.Request, user); err != nil {
		log.Printf("Failed to establish session after Google sign-in: %v", err)
		c.Redirect(http.StatusFound, "/login?error=Failed+to+create+session")
		return
	}

	c.Redirect(http.StatusFound, "/secrets")
}
