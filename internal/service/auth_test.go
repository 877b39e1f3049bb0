package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/octaton/octaton/internal/model"
	"github.com/octaton/octaton/internal/repository"
	"github.com/octaton/octaton/internal/session"
	"github.com/octaton/octaton/internal/twitch"
)

// memStore is an in-memory UserStore with the same conflict semantics as the
// Postgres repository.
type memStore struct {
	mu    sync.Mutex
	users map[string]*model.User

	// failWith forces every call to return this error when set.
	failWith error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*model.User)}
}

func (s *memStore) GetUserByTwitchID(ctx context.Context, twitchID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	u, ok := s.users[twitchID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.users[user.TwitchID]; ok {
		return repository.ErrTwitchIDExists
	}
	copied := *user
	s.users[user.TwitchID] = &copied
	return nil
}

func newTestService(t *testing.T, store UserStore) *AuthService {
	t.Helper()
	sessions, err := session.NewManager("test-secret", 0)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return NewAuthService(store, sessions)
}

func TestAuthService_Login_CreatesUserOnFirstLogin(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	profile := &twitch.Profile{TwitchID: "44322889", DisplayName: "dallas", Email: "dallas@example.com"}

	user, token, err := svc.Login(context.Background(), profile)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if user.ID == "" {
		t.Error("expected user ID to be assigned")
	}
	if user.TwitchID != "44322889" {
		t.Errorf("expected TwitchID to be set, got %q", user.TwitchID)
	}
	if user.DisplayName != "dallas" {
		t.Errorf("expected DisplayName captured at first login, got %q", user.DisplayName)
	}
	if token == "" {
		t.Error("expected session token to be issued")
	}
	if len(store.users) != 1 {
		t.Errorf("expected exactly 1 persisted user, got %d", len(store.users))
	}
}

func TestAuthService_Login_IdempotentForKnownTwitchID(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	profile := &twitch.Profile{TwitchID: "44322889", DisplayName: "dallas"}

	first, _, err := svc.Login(context.Background(), profile)
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}

	second, _, err := svc.Login(context.Background(), profile)
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same user ID on repeat login, got %q and %q", first.ID, second.ID)
	}
	if len(store.users) != 1 {
		t.Errorf("expected exactly 1 persisted user, got %d", len(store.users))
	}
}

func TestAuthService_Login_RecoversFromCreateRace(t *testing.T) {
	store := newMemStore()

	// Simulate the loser of a concurrent first login: the record appears
	// between the lookup and the insert.
	winner := &model.User{ID: model.NewUserID(), TwitchID: "44322889", DisplayName: "dallas"}
	racing := &raceStore{memStore: store, winner: winner}

	svc := newTestService(t, racing)

	user, _, err := svc.Login(context.Background(), &twitch.Profile{TwitchID: "44322889"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if user.ID != winner.ID {
		t.Errorf("expected winner's user ID %q, got %q", winner.ID, user.ID)
	}
	if len(store.users) != 1 {
		t.Errorf("expected exactly 1 persisted user, got %d", len(store.users))
	}
}

// raceStore injects the winner's record right before the first create attempt.
type raceStore struct {
	*memStore
	winner   *model.User
	injected bool
}

func (s *raceStore) CreateUser(ctx context.Context, user *model.User) error {
	if !s.injected {
		s.injected = true
		s.memStore.users[s.winner.TwitchID] = s.winner
	}
	return s.memStore.CreateUser(ctx, user)
}

func TestAuthService_Login_ConcurrentFirstLogins(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	profile := &twitch.Profile{TwitchID: "44322889", DisplayName: "dallas"}

	const logins = 16
	ids := make([]string, logins)
	errs := make([]error, logins)

	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, _, err := svc.Login(context.Background(), profile)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = user.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("login %d failed: %v", i, err)
		}
	}

	for i := 1; i < logins; i++ {
		if ids[i] != ids[0] {
			t.Errorf("login %d resolved different user ID %q, want %q", i, ids[i], ids[0])
		}
	}

	if len(store.users) != 1 {
		t.Errorf("expected exactly 1 persisted user after concurrent logins, got %d", len(store.users))
	}
}

func TestAuthService_Login_InvalidProfile(t *testing.T) {
	svc := newTestService(t, newMemStore())

	if _, _, err := svc.Login(context.Background(), nil); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile for nil profile, got %v", err)
	}

	if _, _, err := svc.Login(context.Background(), &twitch.Profile{}); !errors.Is(err, ErrInvalidProfile) {
		t.Errorf("expected ErrInvalidProfile for empty twitch ID, got %v", err)
	}
}

func TestAuthService_Login_StoreFailurePropagates(t *testing.T) {
	store := newMemStore()
	storeErr := errors.New("connection refused")
	store.failWith = storeErr

	svc := newTestService(t, store)

	_, _, err := svc.Login(context.Background(), &twitch.Profile{TwitchID: "44322889"})
	if !errors.Is(err, storeErr) {
		t.Errorf("expected store error to propagate, got %v", err)
	}
}
