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

type ruleRepository struct {
	BaseRepository
}

func NewRuleRepository(base BaseRepository) repository.RuleRepository {
	return &ruleRepository{base}
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.MessageRule) error {
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt

	query := `
		INSERT INTO message_rules (
			id, workspace_id, name, description, object_type, object_id,
			conditions, actions, active, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		rule.ID, rule.WorkspaceID, rule.Name, rule.Description, rule.ObjectType,
		rule.ObjectID, rule.Conditions, rule.Actions, rule.Active, rule.CreatedBy,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (r *ruleRepository) Get(ctx context.Context, id uuid.UUID) (*model.MessageRule, error) {
	query := `
		SELECT id, workspace_id, name, description, object_type, object_id,
		       conditions, actions, active, created_by, created_at, updated_at
		FROM message_rules
		WHERE id = $1
	`
	var rule model.MessageRule
	if err := r.GetDB().GetContext(ctx, &rule, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("rule %s not found", id)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

func (r *ruleRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*model.MessageRule, error) {
	query := `
		SELECT id, workspace_id, name, description, object_type, object_id,
		       conditions, actions, active, created_by, created_at, updated_at
		FROM message_rules
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`
	var rules []*model.MessageRule
	if err := r.GetDB().SelectContext(ctx, &rules, query, workspaceID); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (r *ruleRepository) ListActive(ctx context.Context) ([]*model.MessageRule, error) {
	query := `
		SELECT id, workspace_id, name, description, object_type, object_id,
		       conditions, actions, active, created_by, created_at, updated_at
		FROM message_rules
		WHERE active = TRUE
		ORDER BY created_at ASC
	`
	var rules []*model.MessageRule
	if err := r.GetDB().SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	return rules, nil
}

func (r *ruleRepository) Update(ctx context.Context, rule *model.MessageRule) error {
	query := `
		UPDATE message_rules
		SET name = $1, description = $2, object_type = $3, object_id = $4,
		    conditions = $5, actions = $6, active = $7, updated_at = NOW()
		WHERE id = $8
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		rule.Name, rule.Description, rule.ObjectType, rule.ObjectID,
		rule.Conditions, rule.Actions, rule.Active, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rule %s not found", rule.ID)
	}
	return nil
}

func (r *ruleRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.GetDB().ExecContext(ctx,
		`UPDATE message_rules SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set rule active flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rule %s not found", id)
	}
	return nil
}
