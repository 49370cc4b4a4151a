// Package oauth2 implements the Google sign-in flow used to link accounts
// and obtain a delegated Gmail credential.
package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mrlokans/secrets/internal/config"
)

var (
	ErrExchangeFailed     = errors.New("authorization code exchange failed")
	ErrProfileFetchFailed = errors.New("failed to fetch Google profile")
	ErrStateMismatch      = errors.New("oauth state mismatch")
)

// Scopes requested from Google. The mail scope grants delegated send
// access; the userinfo scopes identify the account.
var Scopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://mail.google.com/",
}

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Profile is the subset of the Google userinfo response we keep: the
// stable subject identifier and the account's email address.
type Profile struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// GoogleProvider drives the authorization code flow against Google.
// Endpoint and UserInfoURL are overridable so tests can point the flow at
// a local server.
type GoogleProvider struct {
	Config      *xoauth2.Config
	UserInfoURL string
	HTTPClient  *http.Client
}

// NewGoogleProvider builds a provider from the application configuration.
func NewGoogleProvider(cfg config.Google) *GoogleProvider {
	return &GoogleProvider{
		Config: &xoauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		UserInfoURL: defaultUserInfoURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthCodeURL returns the Google consent page URL carrying the given
// state parameter.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state)
}

// Exchange trades the authorization code for a token set. The call is
// bounded so a stalled token endpoint cannot hang the callback handler.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*xoauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	ctx = context.WithValue(ctx, xoauth2.HTTPClient, p.HTTPClient)

	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return token, nil
}

// FetchProfile resolves the token owner's subject and email from the
// userinfo endpoint.
func (p *GoogleProvider) FetchProfile(ctx context.Context, token *xoauth2.Token) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	token.SetAuthHeader(req)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProfileFetchFailed, resp.StatusCode, body)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetchFailed, err)
	}
	if profile.Sub == "" {
		return nil, fmt.Errorf("%w: response missing subject", ErrProfileFetchFailed)
	}

	return &profile, nil
}

// GenerateState produces an unguessable state parameter for CSRF
// protection of the authorization flow.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
