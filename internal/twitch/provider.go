// Package twitch implements the OAuth provider adapter for Twitch.
//
// The adapter covers the authorization code grant flow: it builds the
// authorization redirect URL, exchanges the returned code for an access token,
// and resolves the token into a normalized Profile via the Helix users API.
// It returns identity facts only and makes no user-creation or session decisions.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Default Twitch endpoints. Overridable in Config for tests.
const (
	defaultAuthURL  = "https://id.twitch.tv/oauth2/authorize"
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"
	defaultUsersURL = "https://api.twitch.tv/helix/users"
)

// ErrExchangeFailed indicates the authorization grant could not be exchanged
// for a profile. Callers treat it as an authentication failure, not a server error.
var ErrExchangeFailed = errors.New("twitch code exchange failed")

// Profile is the normalized identity returned by a successful exchange.
type Profile struct {
	TwitchID    string
	DisplayName string
	Email       string
}

// Config holds the provider settings, fixed at process start.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint overrides for tests. Empty values select the Twitch defaults.
	AuthURL  string
	TokenURL string
	UsersURL string

	// HTTPClient overrides the client used for token exchange and profile
	// fetches. Nil selects a client with a 10s timeout.
	HTTPClient *http.Client
}

// Provider performs the Twitch OAuth handshake.
type Provider struct {
	oauth      *oauth2.Config
	usersURL   string
	httpClient *http.Client
}

// New validates the configuration and returns a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("twitch oauth config missing required fields")
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	usersURL := cfg.UsersURL
	if usersURL == "" {
		usersURL = defaultUsersURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		usersURL:   usersURL,
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL builds the Twitch authorization URL for the given state nonce.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// helixUsersResponse mirrors the Helix GET /users payload.
type helixUsersResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
	} `json:"data"`
}

// Exchange trades the authorization code for an access token and resolves it
// into a Profile. All failure modes wrap ErrExchangeFailed so the caller can
// distinguish authentication failures from infrastructure errors.
func (p *Provider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrExchangeFailed)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	profile, err := p.fetchProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	return profile, nil
}

// fetchProfile calls the Helix users endpoint for the token owner.
func (p *Provider) fetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.usersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Client-Id", p.oauth.ClientID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("profile request returned %d: %s", resp.StatusCode, body)
	}

	var payload helixUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}

	if len(payload.Data) == 0 {
		return nil, errors.New("profile response contained no users")
	}

	u := payload.Data[0]
	if u.ID == "" {
		return nil, errors.New("profile response missing user id")
	}

	displayName := u.DisplayName
	if displayName == "" {
		displayName = u.Login
	}

	return &Profile{
		TwitchID:    u.ID,
		DisplayName: displayName,
		Email:       u.Email,
	}, nil
}
