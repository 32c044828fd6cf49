package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/model"
)

type WorkspaceRepository interface {
	Create(ctx context.Context, ws *model.Workspace) error
	Get(ctx context.Context, id uuid.UUID) (*model.Workspace, error)
	List(ctx context.Context) ([]*model.Workspace, error)
	Update(ctx context.Context, ws *model.Workspace) error
}

type TokenRepository interface {
	Create(ctx context.Context, token *model.UserToken) error
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.UserToken, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// UnsetDefaults clears the default flag on every token of the workspace.
	UnsetDefaults(ctx context.Context, workspaceID uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.ScheduledMessage) error
	Get(ctx context.Context, id uuid.UUID) (*model.ScheduledMessage, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, p model.Pagination) ([]*model.ScheduledMessage, error)
	// GetDue returns up to limit messages with status=scheduled and
	// scheduled_at <= now, oldest first.
	GetDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error)
	// ClaimForSending transitions scheduled -> sending with a conditional
	// update. A false return means another worker already claimed the message.
	ClaimForSending(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, lastRunAt *time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	// Cancel succeeds only while the message is still in scheduled status.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

type HistoryRepository interface {
	Create(ctx context.Context, record *model.MessageHistory) error
	ListByMessage(ctx context.Context, scheduledMessageID uuid.UUID) ([]*model.MessageHistory, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, p model.Pagination) ([]*model.MessageHistory, error)
}

type RuleRepository interface {
	Create(ctx context.Context, rule *model.MessageRule) error
	Get(ctx context.Context, id uuid.UUID) (*model.MessageRule, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*model.MessageRule, error)
	ListActive(ctx context.Context) ([]*model.MessageRule, error)
	Update(ctx context.Context, rule *model.MessageRule) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type TemplateRepository interface {
	Create(ctx context.Context, tpl *model.MessageTemplate) error
	Get(ctx context.Context, id uuid.UUID) (*model.MessageTemplate, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*model.MessageTemplate, error)
}

type ActorRepository interface {
	Create(ctx context.Context, actor *model.Actor) error
	GetByEmail(ctx context.Context, email string) (*model.Actor, error)
}
