package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/squadup/squadup/internal/auth"
	"github.com/squadup/squadup/internal/cache"
	"github.com/squadup/squadup/internal/identity"
	"github.com/squadup/squadup/internal/models"
	"github.com/squadup/squadup/internal/notify"
	"github.com/squadup/squadup/internal/storage"
	"github.com/squadup/squadup/internal/storage/sqlite"
)

type testEnv struct {
	store    storage.Store
	cache    *cache.Cache
	squads   *SquadService
	sessions *SessionService
	profiles *ProfileService
	auth     *AuthService
	loader   *PageLoader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "squadup-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return newTestEnvWithStore(t, store)
}

func newTestEnvWithStore(t *testing.T, store storage.Store) *testEnv {
	t.Helper()
	c := cache.New()
	notifier := notify.NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	profiles := NewProfileService(store, c)
	squads := NewSquadService(store, c, notifier)
	sessions := NewSessionService(store, c, notifier, profiles)

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)
	authService := NewAuthService(authenticator, jwtManager, store)

	return &testEnv{
		store:    store,
		cache:    c,
		squads:   squads,
		sessions: sessions,
		profiles: profiles,
		auth:     authService,
		loader:   NewPageLoader(c, squads, sessions, profiles),
	}
}

// user creates a profile and returns a context authenticated as it.
func (e *testEnv) user(t *testing.T, handle string) (*models.Profile, context.Context) {
	t.Helper()
	p := &models.Profile{Handle: handle, Email: handle + "@example.com", PasswordHash: "x"}
	if err := e.store.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	return p, e.ctxFor(p)
}

func (e *testEnv) ctxFor(p *models.Profile) context.Context {
	rc := identity.NewRequestCache(identity.ProviderFunc(func(ctx context.Context) (*identity.Identity, error) {
		return &identity.Identity{UserID: p.ID, Handle: p.Handle, Email: p.Email}, nil
	}))
	return identity.WithRequestCache(context.Background(), rc)
}

// freshCtx re-authenticates the same user with a new request cache, as
// a new request would.
func (e *testEnv) freshCtx(p *models.Profile) context.Context {
	return e.ctxFor(p)
}
