package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
)

type historyRepository struct {
	BaseRepository
}

func NewHistoryRepository(base BaseRepository) repository.HistoryRepository {
	return &historyRepository{base}
}

// Create appends one record. History is append-only: there is no update or
// delete path in this repository on purpose.
func (r *historyRepository) Create(ctx context.Context, record *model.MessageHistory) error {
	record.ID = uuid.New()
	if record.SentAt.IsZero() {
		record.SentAt = time.Now()
	}

	query := `
		INSERT INTO message_history (
			id, workspace_id, scheduled_message_id, template_id, rule_id,
			recipient, sender, content, blocks, outcome, error_message,
			sent_by, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		record.ID, record.WorkspaceID, record.ScheduledMessageID,
		record.TemplateID, record.RuleID, record.Recipient, record.Sender,
		record.Content, record.Blocks, record.Outcome, record.ErrorMessage,
		record.SentBy, record.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}
	return nil
}

func (r *historyRepository) ListByMessage(ctx context.Context, scheduledMessageID uuid.UUID) ([]*model.MessageHistory, error) {
	query := `
		SELECT id, workspace_id, scheduled_message_id, template_id, rule_id,
		       recipient, sender, content, blocks, outcome, error_message,
		       sent_by, sent_at
		FROM message_history
		WHERE scheduled_message_id = $1
		ORDER BY sent_at ASC
	`
	var records []*model.MessageHistory
	if err := r.GetDB().SelectContext(ctx, &records, query, scheduledMessageID); err != nil {
		return nil, fmt.Errorf("failed to list history by message: %w", err)
	}
	return records, nil
}

func (r *historyRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, p model.Pagination) ([]*model.MessageHistory, error) {
	if p.PageSize <= 0 {
		p.PageSize = 50
	}
	if p.Page <= 0 {
		p.Page = 1
	}

	query := `
		SELECT id, workspace_id, scheduled_message_id, template_id, rule_id,
		       recipient, sender, content, blocks, outcome, error_message,
		       sent_by, sent_at
		FROM message_history
		WHERE workspace_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`
	var records []*model.MessageHistory
	err := r.GetDB().SelectContext(ctx, &records, query, workspaceID, p.PageSize, (p.Page-1)*p.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list history by workspace: %w", err)
	}
	return records, nil
}
