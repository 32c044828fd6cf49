package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
)

type actorRepository struct {
	BaseRepository
}

func NewActorRepository(base BaseRepository) repository.ActorRepository {
	return &actorRepository{base}
}

func (r *actorRepository) Create(ctx context.Context, actor *model.Actor) error {
	actor.ID = uuid.New()
	actor.CreatedAt = time.Now()
	actor.UpdatedAt = actor.CreatedAt

	query := `
		INSERT INTO actors (id, email, name, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		actor.ID, actor.Email, actor.Name, actor.PasswordHash, actor.Active,
		actor.CreatedAt, actor.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create actor: %w", err)
	}
	return nil
}

func (r *actorRepository) GetByEmail(ctx context.Context, email string) (*model.Actor, error) {
	query := `
		SELECT id, email, name, password_hash, active, created_at, updated_at
		FROM actors
		WHERE email = $1
	`
	var actor model.Actor
	if err := r.GetDB().GetContext(ctx, &actor, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("actor %s not found", email)
		}
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	return &actor, nil
}
