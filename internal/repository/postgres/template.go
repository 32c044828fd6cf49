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

type templateRepository struct {
	BaseRepository
}

func NewTemplateRepository(base BaseRepository) repository.TemplateRepository {
	return &templateRepository{base}
}

func (r *templateRepository) Create(ctx context.Context, tpl *model.MessageTemplate) error {
	tpl.ID = uuid.New()
	tpl.CreatedAt = time.Now()
	tpl.UpdatedAt = tpl.CreatedAt

	query := `
		INSERT INTO message_templates (
			id, workspace_id, name, content, variables, hubspot_fields,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		tpl.ID, tpl.WorkspaceID, tpl.Name, tpl.Content, tpl.Variables,
		tpl.HubspotFields, tpl.CreatedBy, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

func (r *templateRepository) Get(ctx context.Context, id uuid.UUID) (*model.MessageTemplate, error) {
	query := `
		SELECT id, workspace_id, name, content, variables, hubspot_fields,
		       created_by, created_at, updated_at
		FROM message_templates
		WHERE id = $1
	`
	var tpl model.MessageTemplate
	if err := r.GetDB().GetContext(ctx, &tpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template %s not found", id)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*model.MessageTemplate, error) {
	query := `
		SELECT id, workspace_id, name, content, variables, hubspot_fields,
		       created_by, created_at, updated_at
		FROM message_templates
		WHERE workspace_id = $1
		ORDER BY created_at ASC
	`
	var templates []*model.MessageTemplate
	if err := r.GetDB().SelectContext(ctx, &templates, query, workspaceID); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}
