package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/secrets/internal/auth"
	"github.com/mrlokans/secrets/internal/config"
	"github.com/mrlokans/secrets/internal/credstore"
	"github.com/mrlokans/secrets/internal/database"
	"github.com/mrlokans/secrets/internal/database/users"
	http_controllers "github.com/mrlokans/secrets/internal/http"
	"github.com/mrlokans/secrets/internal/mail"
	"github.com/mrlokans/secrets/internal/oauth2"
	"github.com/mrlokans/secrets/internal/scheduler"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then drains it within
// the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background jobs before draining connections
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Run wires every component and serves until shutdown.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Secrets v%s", version)

	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		log.Printf("WARNING: Google OAuth credentials are not set. Google sign-in and mail sending will be unavailable. Set 'GOOGLE_CLIENT_ID' and 'GOOGLE_CLIENT_SECRET' to enable.")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	usersRepo := users.NewRepository(db.DB)
	authService := auth.NewService(db.DB, cfg.Auth)

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get SQL DB for sessions: %v", err)
	}

	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	authMiddleware := auth.NewMiddleware(authService, sessionManager)

	// Generate or use configured CSRF secret
	var csrfSecret []byte
	if cfg.Auth.SessionSecret != "" {
		csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
		if err != nil {
			// Not hex, use as raw bytes
			csrfSecret = []byte(cfg.Auth.SessionSecret)
		}
	} else {
		secret, err := auth.GenerateSessionSecret()
		if err != nil {
			log.Fatalf("Failed to generate CSRF secret: %v", err)
		}
		csrfSecret, _ = hex.DecodeString(secret)
		log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	}

	credentials, err := credstore.New(db.DB, cfg.Credentials)
	if err != nil {
		log.Fatalf("Failed to initialize credential store: %v", err)
	}

	var googleProvider *oauth2.GoogleProvider
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		googleProvider = oauth2.NewGoogleProvider(cfg.Google)
	}

	mailClient := mail.NewClient(cfg.Mail)

	purgeScheduler := scheduler.NewCredentialPurgeScheduler(credentials, cfg.CredentialPurge)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	if err := purgeScheduler.Start(schedulerCtx); err != nil {
		log.Fatalf("Failed to start credential purge scheduler: %v", err)
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Version:        version,
		AuthService:    authService,
		SessionManager: sessionManager,
		AuthMiddleware: authMiddleware,
		Users:          usersRepo,
		GoogleProvider: googleProvider,
		Credentials:    credentials,
		MailClient:     mailClient,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
	})

	onShutdown := func(ctx context.Context) {
		schedulerCancel()
		purgeScheduler.Stop()
	}

	Serve(router, cfg, onShutdown)
}
