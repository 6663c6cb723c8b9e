package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/squadup/squadup/internal/auth"
	"github.com/squadup/squadup/internal/cache"
	"github.com/squadup/squadup/internal/notify"
	"github.com/squadup/squadup/internal/server"
	"github.com/squadup/squadup/internal/service"
	"github.com/squadup/squadup/internal/storage/sqlite"
	"github.com/squadup/squadup/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	dbPath := getEnv("DB_PATH", "./data/squadup.db")
	port := getEnv("PORT", "8080")
	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	tokenDuration, err := time.ParseDuration(getEnv("TOKEN_DURATION", "24h"))
	if err != nil {
		slog.Error("Invalid TOKEN_DURATION", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	appCache := cache.New()
	notifier := notify.NewLogNotifier(slog.Default())

	jwtManager := auth.NewJWTManager(jwtSecret, tokenDuration)
	authenticator := auth.NewPasswordAuthenticator(store)

	profiles := service.NewProfileService(store, appCache)
	squads := service.NewSquadService(store, appCache, notifier)
	sessions := service.NewSessionService(store, appCache, notifier, profiles)
	authService := service.NewAuthService(authenticator, jwtManager, store)
	loader := service.NewPageLoader(appCache, squads, sessions, profiles)

	srv := server.New(authService, squads, sessions, profiles, loader, jwtManager)
	router := srv.Router()

	slog.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
