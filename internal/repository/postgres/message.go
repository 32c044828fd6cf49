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

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(base BaseRepository) repository.MessageRepository {
	return &messageRepository{base}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.ScheduledMessage) error {
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("message must have at least one recipient")
	}

	msg.ID = uuid.New()
	msg.Status = model.MessageStatusScheduled
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt

	query := `
		INSERT INTO scheduled_messages (
			id, workspace_id, template_id, content, blocks, recipients, sender,
			scheduled_at, recurrence, status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		msg.ID, msg.WorkspaceID, msg.TemplateID, msg.Content, msg.Blocks,
		msg.Recipients, msg.Sender, msg.ScheduledAt, msg.Recurrence,
		msg.Status, msg.CreatedBy, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled message: %w", err)
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, id uuid.UUID) (*model.ScheduledMessage, error) {
	query := `
		SELECT id, workspace_id, template_id, content, blocks, recipients, sender,
		       scheduled_at, recurrence, status, error_message, last_run_at,
		       created_by, created_at, updated_at
		FROM scheduled_messages
		WHERE id = $1
	`
	var msg model.ScheduledMessage
	if err := r.GetDB().GetContext(ctx, &msg, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("scheduled message %s not found", id)
		}
		return nil, fmt.Errorf("failed to get scheduled message: %w", err)
	}
	return &msg, nil
}

func (r *messageRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, p model.Pagination) ([]*model.ScheduledMessage, error) {
	if p.PageSize <= 0 {
		p.PageSize = 50
	}
	if p.Page <= 0 {
		p.Page = 1
	}

	query := `
		SELECT id, workspace_id, template_id, content, blocks, recipients, sender,
		       scheduled_at, recurrence, status, error_message, last_run_at,
		       created_by, created_at, updated_at
		FROM scheduled_messages
		WHERE workspace_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3
	`
	var msgs []*model.ScheduledMessage
	err := r.GetDB().SelectContext(ctx, &msgs, query, workspaceID, p.PageSize, (p.Page-1)*p.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error) {
	query := `
		SELECT id, workspace_id, template_id, content, blocks, recipients, sender,
		       scheduled_at, recurrence, status, error_message, last_run_at,
		       created_by, created_at, updated_at
		FROM scheduled_messages
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`
	var msgs []*model.ScheduledMessage
	err := r.GetDB().SelectContext(ctx, &msgs, query, model.MessageStatusScheduled, now, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query due messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) ClaimForSending(ctx context.Context, id uuid.UUID) (bool, error) {
	// Conditional update doubles as the claim: zero rows affected means an
	// overlapping cycle got there first.
	query := `
		UPDATE scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		model.MessageStatusSending, id, model.MessageStatusScheduled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *messageRepository) MarkSent(ctx context.Context, id uuid.UUID, lastRunAt *time.Time) error {
	query := `
		UPDATE scheduled_messages
		SET status = $1, error_message = NULL, last_run_at = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.GetDB().ExecContext(ctx, query, model.MessageStatusSent, lastRunAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	return nil
}

func (r *messageRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE scheduled_messages
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.GetDB().ExecContext(ctx, query, model.MessageStatusFailed, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return nil
}

func (r *messageRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduled_messages
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		model.MessageStatusCancelled, id, model.MessageStatusScheduled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
