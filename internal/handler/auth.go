package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/octaton/octaton/internal/model"
	"github.com/octaton/octaton/internal/session"
	"github.com/octaton/octaton/internal/twitch"
)

// Authenticator is the OAuth provider surface the auth handlers depend on.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*twitch.Profile, error)
}

// LoginService resolves a provider profile to a local user and session token.
type LoginService interface {
	Login(ctx context.Context, profile *twitch.Profile) (*model.User, string, error)
}

// AuthHandler serves the OAuth begin and callback endpoints.
type AuthHandler struct {
	provider      Authenticator
	auth          LoginService
	clientOrigin  string
	sessionTTL    time.Duration
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	provider Authenticator,
	auth LoginService,
	clientOrigin string,
	sessionTTL time.Duration,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:      provider,
		auth:          auth,
		clientOrigin:  clientOrigin,
		sessionTTL:    sessionTTL,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Begin starts the OAuth redirect to Twitch.
// GET /auth/twitch
func (h *AuthHandler) Begin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState(w, h.secureCookies)
	if err != nil {
		h.logger.Error("failed to generate oauth state", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
		return
	}
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the OAuth handshake: it validates the callback request,
// exchanges the grant for a profile, upserts the user, and issues the session
// cookie. Authentication failures redirect to the root path; store failures
// surface as a server error.
// GET /auth/twitch/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	clearStateCookie(w, h.secureCookies)

	if !validateState(r) {
		h.logger.Warn("oauth callback with missing or mismatched state")
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	profile, err := h.provider.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		if errors.Is(err, twitch.ErrExchangeFailed) {
			h.logger.Warn("oauth code exchange rejected", "error", err)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		h.logger.Error("oauth exchange error", "error", err)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	user, token, err := h.auth.Login(r.Context(), profile)
	if err != nil {
		h.logger.Error("failed to resolve user", "twitch_id", profile.TwitchID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID, "twitch_id", user.TwitchID)

	session.SetCookie(w, token, time.Now().Add(h.sessionTTL), session.CookieOptions{
		Secure: h.secureCookies,
	})
	http.Redirect(w, r, h.clientOrigin, http.StatusFound)
}
