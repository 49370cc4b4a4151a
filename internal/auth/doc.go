// Package auth provides local credential verification and session
// management for the application.
//
// Users register with a username and password; the password is bcrypt
// hashed before storage and verified on login. Sessions are server-side
// (alexedwards/scs backed by SQLite); the cookie carries only an opaque
// token. A session is established only after the credential verifies, and
// the same flow is used after a successful Google sign-in.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # Auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h           # Session duration
//	AUTH_BCRYPT_COST=12                 # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true            # HTTPS-only cookies
//
// # Usage
//
//	authService := auth.NewService(db, cfg.Auth)
//	sessionManager, _ := auth.NewSessionManager(sqlDB, cfg.Auth)
//	router.Use(sessionManager.SessionLoadSave())
//	router.Use(auth.NewMiddleware(authService, sessionManager).Handler())
//
// Extract the user in handlers:
//
//	userID := auth.GetUserID(c) // 0 when unauthenticated
package auth
