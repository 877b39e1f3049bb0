package handler

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

const (
	stateCookieName = "__oauth_state"
	stateTTL        = 5 * time.Minute
)

// readRand is swappable in tests to simulate entropy failure.
var readRand = rand.Read

// generateState creates a random state nonce and stores it in a short-lived
// cookie so the callback can verify the redirect round-trip. A failed entropy
// read is an error: a zeroed nonce would be predictable and defeat the check.
func generateState(w http.ResponseWriter, secure bool) (string, error) {
	b := make([]byte, 32)
	if _, err := readRand(b); err != nil {
		return "", fmt.Errorf("generate state nonce: %w", err)
	}

	state := base64.RawURLEncoding.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(stateTTL.Seconds()),
	})

	return state, nil
}

// validateState compares the state query parameter against the nonce cookie.
func validateState(r *http.Request) bool {
	stateQuery := r.URL.Query().Get("state")
	if stateQuery == "" {
		return false
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return false
	}

	return cookie.Value == stateQuery
}

// clearStateCookie removes the state nonce cookie after the callback.
func clearStateCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
