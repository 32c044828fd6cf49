package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/pkg/security"
)

type workspaceRepository struct {
	BaseRepository
	encryptor security.Encryptor
}

func NewWorkspaceRepository(base BaseRepository, encryptor security.Encryptor) repository.WorkspaceRepository {
	return &workspaceRepository{BaseRepository: base, encryptor: encryptor}
}

func (r *workspaceRepository) Create(ctx context.Context, ws *model.Workspace) error {
	ws.ID = uuid.New()
	ws.CreatedAt = time.Now()
	ws.UpdatedAt = ws.CreatedAt

	botToken := ws.BotToken
	if botToken != "" {
		enc, err := r.encryptor.EncryptString(botToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt bot token: %w", err)
		}
		botToken = enc
	}

	query := `
		INSERT INTO workspaces (id, name, team_id, bot_token, bot_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		ws.ID, ws.Name, ws.TeamID, botToken, ws.BotUserID, ws.CreatedAt, ws.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

func (r *workspaceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	query := `
		SELECT id, name, team_id, bot_token, bot_user_id, created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`
	var ws model.Workspace
	if err := r.GetDB().GetContext(ctx, &ws, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("workspace %s not found", id)
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	if ws.BotToken != "" {
		plain, err := r.encryptor.DecryptString(ws.BotToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt bot token: %w", err)
		}
		ws.BotToken = plain
	}
	return &ws, nil
}

func (r *workspaceRepository) List(ctx context.Context) ([]*model.Workspace, error) {
	query := `
		SELECT id, name, team_id, bot_user_id, created_at, updated_at
		FROM workspaces
		ORDER BY created_at ASC
	`
	var workspaces []*model.Workspace
	if err := r.GetDB().SelectContext(ctx, &workspaces, query); err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

func (r *workspaceRepository) Update(ctx context.Context, ws *model.Workspace) error {
	botToken := ws.BotToken
	if botToken != "" {
		enc, err := r.encryptor.EncryptString(botToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt bot token: %w", err)
		}
		botToken = enc
	}

	query := `
		UPDATE workspaces
		SET name = $1, team_id = $2, bot_token = $3, bot_user_id = $4, updated_at = NOW()
		WHERE id = $5
	`
	result, err := r.GetDB().ExecContext(ctx, query, ws.Name, ws.TeamID, botToken, ws.BotUserID, ws.ID)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("workspace %s not found", ws.ID)
	}
	return nil
}
