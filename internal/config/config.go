// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT,required"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Twitch OAuth client
	TwitchClientID     string `env:"TWITCH_CLIENT_ID,required"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET,required"`
	TwitchScopes       string `env:"TWITCH_SCOPES" envDefault:"user:read:email"`
	TwitchIncludeEmail bool   `env:"TWITCH_INCLUDE_EMAIL" envDefault:"true"`

	// Twitch chat bot credentials
	TwitchUsername string `env:"TWITCH_USERNAME,required"`
	TwitchToken    string `env:"TWITCH_TOKEN,required"`

	// Base URL the OAuth provider redirects back to.
	// In development this defaults to http://localhost:<port>.
	CallbackBaseURL string `env:"CALLBACK_BASE_URL" envDefault:""`

	// Front-end origin the client is redirected to after a successful login.
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:3000"`

	// Secret used to sign session tokens.
	SessionSecret string `env:"SESSION_SECRET,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CallbackURL resolves the full OAuth callback URL.
// CALLBACK_BASE_URL wins when set; otherwise the development host is assumed.
func (c *Config) CallbackURL() string {
	base := strings.TrimSuffix(c.CallbackBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", c.AppPort)
	}
	return base + "/auth/twitch/callback"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
// The client origin is always allowed so the front-end can carry the session cookie.
func (c *Config) GetCORSAllowedOrigins() []string {
	result := []string{}
	if c.ClientOrigin != "" {
		result = append(result, c.ClientOrigin)
	}

	if c.CORSAllowedOrigins == "" {
		return result
	}

	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" && trimmed != c.ClientOrigin {
			result = append(result, trimmed)
		}
	}

	return result
}

// GetTwitchScopes parses the space-separated scope string into a slice.
func (c *Config) GetTwitchScopes() []string {
	scopes := strings.Fields(c.TwitchScopes)
	if c.TwitchIncludeEmail && !containsScope(scopes, "user:read:email") {
		scopes = append(scopes, "user:read:email")
	}
	return scopes
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
