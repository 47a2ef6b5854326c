package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scameleon/internal/catalog"
	"scameleon/internal/config"
	"scameleon/internal/database"
	"scameleon/internal/game"
	"scameleon/internal/handlers"
	"scameleon/internal/repository"
	"scameleon/internal/security"
	"scameleon/internal/service"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database (supports sqlite, postgres, mysql)
	db, err := database.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	// Load the world/level/badge catalog
	rules := game.DefaultRules()
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("Failed to load game catalog: %v", err)
	}
	if err := cat.ValidateScoring(rules.PassScore, rules.PointsPerQuestion); err != nil {
		log.Fatalf("Invalid game catalog: %v", err)
	}

	log.Printf("Catalog loaded: %d worlds, %d badges", len(cat.Worlds), len(cat.Badges))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	progressRepo := repository.NewProgressRepository(db, rules.HeartsMax)

	// Initialize services
	authService := service.NewAuthService(userRepo, sessionRepo, cfg.SessionDuration)

	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		log.Printf("Warning: completion certificate emails disabled: %v", err)
	}

	// Game engine: one outbox worker for all durable writes, one cached
	// controller per active user.
	outbox := game.NewOutbox(256)
	registry := game.NewRegistry(game.ControllerConfig{
		Rules:   rules,
		Catalog: cat,
		Store:   progressRepo,
		Outbox:  outbox,
		OnGameFinished: func(userID int64) {
			if emailService == nil || !emailService.IsEnabled() {
				return
			}
			user, err := userRepo.GetUserByID(userID)
			if err != nil || user == nil {
				log.Printf("Failed to look up user %d for completion certificate: %v", userID, err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := emailService.SendCompletionCertificate(ctx, user.Email, user.Name); err != nil {
				log.Printf("Failed to send completion certificate to %s: %v", user.Email, err)
			}
		},
	}, cfg.ControllerIdleTimeout)

	oauthProviders := map[string]handlers.OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		"facebook": {
			Name:  "facebook",
			Label: "Facebook",
			Config: &oauth2.Config{
				ClientID:     cfg.FacebookClientID,
				ClientSecret: cfg.FacebookClientSecret,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile"},
			},
			UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
		},
	}

	// Initialize handlers
	csrf := security.NewCSRFGenerator(cfg.SessionSecret)
	loginLimiter := security.NewRateLimiter(10, time.Minute)
	middleware := handlers.NewMiddleware(authService, csrf, loginLimiter)
	authHandler := handlers.NewAuthHandler(authService, csrf, oauthProviders, cfg.OAuthRedirectBaseURL, cfg.SessionSecret)
	gameHandler := handlers.NewGameHandler(registry, cat)

	// Setup routes
	mux := http.NewServeMux()

	// Public auth routes
	mux.HandleFunc("POST /api/register", middleware.RateLimit(authHandler.Register))
	mux.HandleFunc("POST /api/login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("POST /api/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/session", middleware.RequireAuth(authHandler.Session))
	mux.HandleFunc("GET /auth/{provider}/start", authHandler.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", authHandler.OAuthCallback)

	// Game routes
	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireAuth(middleware.CSRFProtect(h))
	}
	mux.HandleFunc("GET /api/game/state", middleware.RequireAuth(gameHandler.GetState))
	mux.HandleFunc("GET /api/game/notifications", middleware.RequireAuth(gameHandler.Notifications))
	mux.HandleFunc("GET /api/badges", middleware.RequireAuth(gameHandler.ListBadges))
	mux.HandleFunc("POST /api/game/worlds/{id}/select", protect(gameHandler.SelectWorld))
	mux.HandleFunc("POST /api/game/intro/dismiss", protect(gameHandler.DismissIntro))
	mux.HandleFunc("POST /api/game/back", protect(gameHandler.BackToWorlds))
	mux.HandleFunc("POST /api/game/levels/{id}/select", protect(gameHandler.SelectLevel))
	mux.HandleFunc("POST /api/game/levels/start", protect(gameHandler.StartLevel))
	mux.HandleFunc("POST /api/game/levels/cancel", protect(gameHandler.CancelBriefing))
	mux.HandleFunc("POST /api/game/answer", protect(gameHandler.SubmitAnswer))
	mux.HandleFunc("POST /api/game/advance", protect(gameHandler.Advance))
	mux.HandleFunc("POST /api/game/levels/exit", protect(gameHandler.ExitLevel))
	mux.HandleFunc("POST /api/game/modal/dismiss", protect(gameHandler.DismissModal))
	mux.HandleFunc("POST /api/game/refill", protect(gameHandler.Refill))

	// Wrap with logging middleware
	handler := handlers.Logging(mux)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background maintenance
	stop := make(chan struct{})
	go cleanupExpiredSessions(authService, stop)
	registry.StartSweeper(5*time.Minute, stop)

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	// Flush every pending progress write before the process exits
	registry.Close()
	outbox.Flush()
	outbox.Close()

	log.Println("Server stopped")
}

// cleanupExpiredSessions deletes expired sessions once an hour
func cleanupExpiredSessions(authService *service.AuthService, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			authService.CleanupExpiredSessions()
		}
	}
}
