//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/octaton/octaton/internal/model"
	"github.com/octaton/octaton/internal/testutil"
)

func newUserTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()

	databaseURL := testutil.RequireEnv(t, "DATABASE_URL")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	repo, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("failed to acquire DB lock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	if err := testutil.ResetUsersSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("failed to reset users schema: %v", err)
	}

	return ctx, repo
}

func newTestUser(twitchID string) *model.User {
	return &model.User{
		ID:          model.NewUserID(),
		TwitchID:    twitchID,
		DisplayName: "dallas",
		Email:       "dallas@example.com",
		CreatedAt:   time.Now(),
	}
}

func TestIntegrationRepository_PoolSizing(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	cfg := repo.Pool().Config()
	if cfg.MaxConns != 4 {
		t.Errorf("expected MaxConns 4 for the login workload, got %d", cfg.MaxConns)
	}
	if cfg.MinConns != 1 {
		t.Errorf("expected MinConns 1, got %d", cfg.MinConns)
	}

	if err := repo.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestIntegrationUserRepository_CreateUser(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	user := newTestUser("44322889")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	retrieved, err := repo.GetUserByTwitchID(ctx, "44322889")
	if err != nil {
		t.Fatalf("GetUserByTwitchID failed: %v", err)
	}

	if retrieved.ID != user.ID {
		t.Errorf("ID mismatch: got %q, want %q", retrieved.ID, user.ID)
	}
	if retrieved.DisplayName != "dallas" {
		t.Errorf("DisplayName mismatch: got %q", retrieved.DisplayName)
	}
	if retrieved.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestIntegrationUserRepository_GetUserByTwitchID_NotFound(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	_, err := repo.GetUserByTwitchID(ctx, "does-not-exist")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationUserRepository_CreateUser_DuplicateTwitchID(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	first := newTestUser("44322889")
	second := newTestUser("44322889") // different ID, same twitch_id

	if err := repo.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser (first) failed: %v", err)
	}

	err := repo.CreateUser(ctx, second)
	if !errors.Is(err, ErrTwitchIDExists) {
		t.Errorf("expected ErrTwitchIDExists, got: %v", err)
	}
}

func TestIntegrationUserRepository_ConcurrentCreates(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	const attempts = 8
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.CreateUser(ctx, newTestUser("44322889"))
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrTwitchIDExists):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if created != 1 {
		t.Errorf("expected exactly 1 successful create, got %d", created)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}

	var count int
	if err := repo.Pool().QueryRow(ctx, "SELECT count(*) FROM users WHERE twitch_id = $1", "44322889").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 persisted row, got %d", count)
	}
}

func TestIntegrationUserRepository_GetUserByID(t *testing.T) {
	ctx, repo := newUserTestEnv(t)

	user := newTestUser("44322889")
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	retrieved, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if retrieved.TwitchID != user.TwitchID {
		t.Errorf("TwitchID mismatch: got %q, want %q", retrieved.TwitchID, user.TwitchID)
	}

	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
