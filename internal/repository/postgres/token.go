package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/pkg/security"
)

type tokenRepository struct {
	BaseRepository
	encryptor security.Encryptor
}

func NewTokenRepository(base BaseRepository, encryptor security.Encryptor) repository.TokenRepository {
	return &tokenRepository{BaseRepository: base, encryptor: encryptor}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.UserToken) error {
	token.ID = uuid.New()
	token.CreatedAt = time.Now()

	secret, err := r.encryptor.EncryptString(token.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		// A new default unseats any existing ones. Concurrent writers can
		// still race; the credential resolver picks the newest default.
		if token.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE user_tokens SET is_default = FALSE WHERE workspace_id = $1`,
				token.WorkspaceID,
			); err != nil {
				return fmt.Errorf("failed to unset default tokens: %w", err)
			}
		}

		query := `
			INSERT INTO user_tokens (id, workspace_id, slack_user_id, user_name, email, token, scopes, is_default, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.ExecContext(ctx, query,
			token.ID, token.WorkspaceID, token.UserID, token.UserName,
			token.Email, secret, token.Scopes, token.IsDefault, token.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}
		return nil
	})
}

func (r *tokenRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.UserToken, error) {
	query := `
		SELECT id, workspace_id, slack_user_id, user_name, email, token, scopes, is_default, created_at
		FROM user_tokens
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`
	var tokens []model.UserToken
	if err := r.GetDB().SelectContext(ctx, &tokens, query, workspaceID); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	for i := range tokens {
		plain, err := r.encryptor.DecryptString(tokens[i].Token)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token %s: %w", tokens[i].ID, err)
		}
		tokens[i].Token = plain
	}
	return tokens, nil
}

func (r *tokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM user_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("token %s not found", id)
	}
	return nil
}

func (r *tokenRepository) UnsetDefaults(ctx context.Context, workspaceID uuid.UUID) error {
	_, err := r.GetDB().ExecContext(ctx,
		`UPDATE user_tokens SET is_default = FALSE WHERE workspace_id = $1`,
		workspaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to unset defaults: %w", err)
	}
	return nil
}
