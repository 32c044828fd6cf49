package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/dispatch-api/internal/config"
	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/security"
)

type fakeActorRepo struct {
	actors map[string]*model.Actor
}

func (f *fakeActorRepo) Create(ctx context.Context, actor *model.Actor) error {
	f.actors[actor.Email] = actor
	return nil
}

func (f *fakeActorRepo) GetByEmail(ctx context.Context, email string) (*model.Actor, error) {
	actor, ok := f.actors[email]
	if !ok {
		return nil, fmt.Errorf("actor %s not found", email)
	}
	return actor, nil
}

func newTestService() (*Service, *fakeActorRepo) {
	repo := &fakeActorRepo{actors: make(map[string]*model.Actor)}
	cfg := config.JWTConfig{
		Secret:        "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	}
	svc := NewService(repo, security.NewBcryptHasher(4), cfg, logger.NewLogger(nil))
	return svc, repo
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	actor, err := svc.Register(ctx, "ops@example.com", "Ops Human", "correct-horse-battery")
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "ops@example.com", "correct-horse-battery")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, claims.ActorID)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "ops@example.com", "Ops Human", "correct-horse-battery")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ops@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownActor(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveActor(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "ops@example.com", "Ops Human", "correct-horse-battery")
	require.NoError(t, err)
	repo.actors["ops@example.com"].Active = false

	_, err = svc.Login(ctx, "ops@example.com", "correct-horse-battery")
	assert.ErrorIs(t, err, ErrInactiveActor)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "ops@example.com", "Ops Human", "correct-horse-battery")
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "ops@example.com", "correct-horse-battery")
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// Access tokens are signed with a different secret and must not refresh.
	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}
