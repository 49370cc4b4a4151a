package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/secrets/internal/auth"
	"github.com/mrlokans/secrets/internal/config"
	"github.com/mrlokans/secrets/internal/credstore"
	"github.com/mrlokans/secrets/internal/crypto"
	"github.com/mrlokans/secrets/internal/database"
	"github.com/mrlokans/secrets/internal/database/users"
	"github.com/mrlokans/secrets/internal/entities"
	"github.com/mrlokans/secrets/internal/mail"
	"github.com/mrlokans/secrets/internal/oauth2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router      *gin.Engine
	db          *gorm.DB
	service     *auth.Service
	users       *users.Repository
	credentials *credstore.Store
	google      *httptest.Server
	gmail       *httptest.Server

	gmailRequests []gmailRequest
}

type gmailRequest struct {
	Path string
	Auth string
	Raw  string
}

// setupEnv builds the full router against in-memory storage and fake
// Google endpoints.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.DelegatedCredential{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)

	authCfg := config.Auth{
		SessionLifetime: time.Hour,
		BcryptCost:      4,
		SecureCookies:   false,
	}

	service := auth.NewService(db, authCfg)
	sessionManager, err := auth.NewSessionManager(sqlDB, authCfg)
	require.NoError(t, err)

	repo := users.NewRepository(db)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	credentials, err := credstore.New(db, config.Credentials{EncryptionKey: key})
	require.NoError(t, err)

	env := &testEnv{
		db:          db,
		service:     service,
		users:       repo,
		credentials: credentials,
	}

	// Fake Google: token exchange and userinfo.
	env.google = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "ya29.delegated",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/userinfo":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sub":"google-sub-1","email":"alice@gmail.com"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(env.google.Close)

	// Fake Gmail send endpoint.
	env.gmail = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Raw string `json:"raw"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		env.gmailRequests = append(env.gmailRequests, gmailRequest{
			Path: r.URL.EscapedPath(),
			Auth: r.Header.Get("Authorization"),
			Raw:  body.Raw,
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	}))
	t.Cleanup(env.gmail.Close)

	provider := oauth2.NewGoogleProvider(config.Google{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "http://example.com/auth/google/secrets",
	})
	provider.Config.Endpoint = xoauth2.Endpoint{
		AuthURL:  env.google.URL + "/auth",
		TokenURL: env.google.URL + "/token",
	}
	provider.UserInfoURL = env.google.URL + "/userinfo"

	env.router = NewRouter(RouterConfig{
		Database:       &database.Database{DB: db},
		Version:        "test",
		AuthService:    service,
		SessionManager: sessionManager,
		AuthMiddleware: auth.NewMiddleware(service, sessionManager),
		Users:          repo,
		GoogleProvider: provider,
		Credentials:    credentials,
		MailClient:     mail.NewClient(config.Mail{BaseURL: env.gmail.URL}),
	})

	return env
}

func do(router *gin.Engine, method, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// signInWithGoogle runs the full redirect/callback dance and returns the
// resulting session cookies.
func signInWithGoogle(t *testing.T, env *testEnv) []*http.Cookie {
	t.Helper()

	start := do(env.router, http.MethodGet, "/auth/google", nil, nil)
	require.Equal(t, http.StatusFound, start.Code)

	authURL, err := url.Parse(start.Header().Get("Location"))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	cookies := start.Result().Cookies()
	require.NotEmpty(t, cookies, "state must be pinned to a session")

	callback := do(env.router, http.MethodGet,
		"/auth/google/secrets?state="+url.QueryEscape(state)+"&code=auth-code", nil, cookies)
	require.Equal(t, http.StatusFound, callback.Code)
	require.Equal(t, "/secrets", callback.Header().Get("Location"))

	return callback.Result().Cookies()
}

func TestHealthEndpoint(t *testing.T) {
	env := setupEnv(t)

	rr := do(env.router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Checks["database"])
}

func TestLandingPage(t *testing.T) {
	env := setupEnv(t)

	rr := do(env.router, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSecretsRequiresLogin(t *testing.T) {
	env := setupEnv(t)

	rr := do(env.router, http.MethodGet, "/secrets", nil, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?next=%2Fsecrets", rr.Header().Get("Location"))
}

func TestGoogleSignInFlow(t *testing.T) {
	env := setupEnv(t)

	cookies := signInWithGoogle(t, env)

	// The session now unlocks the protected page.
	rr := do(env.router, http.MethodGet, "/secrets", nil, cookies)
	require.Equal(t, http.StatusOK, rr.Code)

	var page map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, true, page["GoogleLinked"])

	// Exactly one account exists for the Google subject.
	user, err := env.users.FindOrCreateByGoogleID("google-sub-1", "alice@gmail.com")
	require.NoError(t, err)

	// The delegated credential was captured for that user.
	cred, err := env.credentials.Get(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ya29.delegated", cred.AccessToken)
	assert.Equal(t, "alice@gmail.com", cred.Email)
}

func TestGoogleCallback_StateMismatch(t *testing.T) {
	env := setupEnv(t)

	start := do(env.router, http.MethodGet, "/auth/google", nil, nil)
	require.Equal(t, http.StatusFound, start.Code)
	cookies := start.Result().Cookies()

	rr := do(env.router, http.MethodGet,
		"/auth/google/secrets?state=forged&code=auth-code", nil, cookies)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/login")

	// No user was created off the forged callback.
	var count int64
	require.NoError(t, env.db.Model(&entities.User{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestGoogleCallback_WithoutSessionState(t *testing.T) {
	env := setupEnv(t)

	// A bare callback with no prior /auth/google visit carries no state.
	rr := do(env.router, http.MethodGet,
		"/auth/google/secrets?state=whatever&code=auth-code", nil, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/login")
}

func TestGoogleCallback_StateIsSingleUse(t *testing.T) {
	env := setupEnv(t)

	start := do(env.router, http.MethodGet, "/auth/google", nil, nil)
	authURL, err := url.Parse(start.Header().Get("Location"))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	cookies := start.Result().Cookies()

	first := do(env.router, http.MethodGet,
		"/auth/google/secrets?state="+url.QueryEscape(state)+"&code=auth-code", nil, cookies)
	require.Equal(t, "/secrets", first.Header().Get("Location"))

	// Replaying the same callback fails: the state was consumed.
	second := do(env.router, http.MethodGet,
		"/auth/google/secrets?state="+url.QueryEscape(state)+"&code=auth-code", nil, cookies)
	assert.Contains(t, second.Header().Get("Location"), "/login")
}

func TestSubmit_SendsMail(t *testing.T) {
	env := setupEnv(t)
	cookies := signInWithGoogle(t, env)

	rr := do(env.router, http.MethodPost, "/submit", url.Values{
		"to":      {"rcpt@example.com"},
		"subject": {"Hello"},
		"message": {"A message"},
	}, cookies)

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/secrets?sent=1", rr.Header().Get("Location"))

	require.Len(t, env.gmailRequests, 1)
	sent := env.gmailRequests[0]
	assert.Equal(t, "/gmail/v1/users/alice@gmail.com/messages/send", sent.Path)
	assert.Equal(t, "Bearer ya29.delegated", sent.Auth)
	assert.Equal(t, mail.MakeBody("rcpt@example.com", "alice@gmail.com", "Hello", "A message"), sent.Raw)
}

func TestSubmit_ValidatesInput(t *testing.T) {
	env := setupEnv(t)
	cookies := signInWithGoogle(t, env)

	tests := []struct {
		name string
		form url.Values
	}{
		{"missing recipient", url.Values{"subject": {"Hi"}, "message": {"m"}}},
		{"invalid recipient", url.Values{"to": {"not-an-address"}, "subject": {"Hi"}, "message": {"m"}}},
		{"missing subject", url.Values{"to": {"rcpt@example.com"}, "message": {"m"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(env.router, http.MethodPost, "/submit", tt.form, cookies)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	assert.Empty(t, env.gmailRequests)
}

func TestSubmit_WithoutGoogleCredential(t *testing.T) {
	env := setupEnv(t)

	// A local-password account has no delegated credential.
	rr := do(env.router, http.MethodPost, "/register", url.Values{
		"username": {"bob"},
		"password": {"correct-horse-battery"},
	}, nil)
	require.Equal(t, http.StatusFound, rr.Code)
	cookies := rr.Result().Cookies()

	page := do(env.router, http.MethodGet, "/submit", nil, cookies)
	require.Equal(t, http.StatusOK, page.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(page.Body.Bytes(), &body))
	assert.Equal(t, true, body["NeedsGoogle"])

	send := do(env.router, http.MethodPost, "/submit", url.Values{
		"to":      {"rcpt@example.com"},
		"subject": {"Hello"},
		"message": {"m"},
	}, cookies)
	assert.Equal(t, http.StatusForbidden, send.Code)
	assert.Empty(t, env.gmailRequests)
}

func TestSubmit_DispatchFailureSurfaces(t *testing.T) {
	env := setupEnv(t)
	cookies := signInWithGoogle(t, env)

	// Point the flow at a credential Google will refuse.
	env.gmail.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rr := do(env.router, http.MethodPost, "/submit", url.Values{
		"to":      {"rcpt@example.com"},
		"subject": {"Hello"},
		"message": {"m"},
	}, cookies)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
