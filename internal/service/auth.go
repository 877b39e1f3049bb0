// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/octaton/octaton/internal/model"
	"github.com/octaton/octaton/internal/repository"
	"github.com/octaton/octaton/internal/session"
	"github.com/octaton/octaton/internal/twitch"
)

// ErrInvalidProfile indicates the provider profile is missing required fields.
var ErrInvalidProfile = errors.New("provider profile missing twitch ID")

// UserStore is the persistence surface the auth service depends on.
type UserStore interface {
	GetUserByTwitchID(ctx context.Context, twitchID string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}

// AuthService bridges provider identity to local user identity and
// establishes a client session.
type AuthService struct {
	store    UserStore
	sessions *session.Manager
}

// NewAuthService creates a new AuthService.
func NewAuthService(store UserStore, sessions *session.Manager) *AuthService {
	return &AuthService{
		store:    store,
		sessions: sessions,
	}
}

// Login resolves a provider profile to a local user, creating the record on
// first login, and returns the user together with a signed session token.
//
// Two concurrent first logins for the same Twitch ID may both observe "no user
// found" and race on creation; the store reports the losing insert as
// ErrTwitchIDExists and the winner's record is re-fetched. Exactly one record
// ever exists per Twitch ID.
func (s *AuthService) Login(ctx context.Context, profile *twitch.Profile) (*model.User, string, error) {
	if profile == nil || profile.TwitchID == "" {
		return nil, "", ErrInvalidProfile
	}

	user, err := s.resolveUser(ctx, profile)
	if err != nil {
		return nil, "", err
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}

	return user, token, nil
}

// resolveUser implements the lookup-or-create upsert keyed by Twitch ID.
func (s *AuthService) resolveUser(ctx context.Context, profile *twitch.Profile) (*model.User, error) {
	existing, err := s.store.GetUserByTwitchID(ctx, profile.TwitchID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	// No user found, create one with the profile captured at first login.
	user := &model.User{
		ID:          model.NewUserID(),
		TwitchID:    profile.TwitchID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		CreatedAt:   time.Now(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		// A concurrent login won the insert race; use its record.
		if errors.Is(err, repository.ErrTwitchIDExists) {
			return s.store.GetUserByTwitchID(ctx, profile.TwitchID)
		}
		return nil, err
	}

	return user, nil
}
