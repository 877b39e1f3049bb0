// Package main is the entrypoint for the octaton API server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/octaton/octaton/internal/bot"
	"github.com/octaton/octaton/internal/config"
	"github.com/octaton/octaton/internal/handler"
	"github.com/octaton/octaton/internal/middleware"
	"github.com/octaton/octaton/internal/repository"
	"github.com/octaton/octaton/internal/server"
	"github.com/octaton/octaton/internal/service"
	"github.com/octaton/octaton/internal/session"
	"github.com/octaton/octaton/internal/twitch"
)

func main() {
	ctx := context.Background()

	// Load configuration; a missing required value is fatal before any route
	// becomes reachable.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize OAuth provider adapter
	provider, err := twitch.New(twitch.Config{
		ClientID:     cfg.TwitchClientID,
		ClientSecret: cfg.TwitchClientSecret,
		RedirectURL:  cfg.CallbackURL(),
		Scopes:       cfg.GetTwitchScopes(),
	})
	if err != nil {
		logger.Error("failed to configure twitch provider", "error", err)
		os.Exit(1)
	}

	// Initialize session signing
	sessions, err := session.NewManager(cfg.SessionSecret, 0)
	if err != nil {
		logger.Error("failed to configure session manager", "error", err)
		os.Exit(1)
	}

	authService := service.NewAuthService(repo, sessions)

	// Connect the auxiliary chat bot. A failure here is logged but does not
	// block the HTTP surface.
	chatBot, err := bot.Connect(ctx, bot.Config{
		Username: cfg.TwitchUsername,
		Token:    cfg.TwitchToken,
	}, logger)
	if err != nil {
		logger.Error("failed to connect chat bot", "error", err)
	}

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo)
	authHandler := handler.NewAuthHandler(
		provider,
		authService,
		cfg.ClientOrigin,
		sessions.TTL(),
		cfg.IsProduction(),
		logger,
	)

	r := setupRouter(h, healthHandler, authHandler, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	srv.OnShutdown("database", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	if chatBot != nil {
		srv.OnShutdown("chat bot", chatBot.Close)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"callback_url", cfg.CallbackURL(),
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	authHandler *handler.AuthHandler,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.IsDevelopment()))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins())))

	// Health endpoints
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	// Root identity endpoint
	r.Get("/", h.Root)

	// OAuth flow
	r.Route("/auth/twitch", func(r chi.Router) {
		r.Get("/", authHandler.Begin)
		r.Get("/callback", authHandler.Callback)
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
