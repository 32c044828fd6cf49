package model

import (
	"time"

	"github.com/google/uuid"
)

// SendMessageRequest is the ad-hoc send payload. Rule-triggered sends build
// the same request internally so both paths share one pipeline.
type SendMessageRequest struct {
	WorkspaceID        uuid.UUID     `json:"workspace_id" binding:"required"`
	Content            string        `json:"content" binding:"required"`
	Blocks             BlockList     `json:"blocks,omitempty"`
	Recipients         RecipientList `json:"recipients" binding:"required,min=1,dive"`
	Sender             Sender        `json:"sender" binding:"required"`
	TemplateID         *uuid.UUID    `json:"template_id,omitempty"`
	ScheduledMessageID *uuid.UUID    `json:"scheduled_message_id,omitempty"`
	RuleID             *uuid.UUID    `json:"-"`
}

// RecipientResult is the per-recipient outcome of a send request.
type RecipientResult struct {
	Recipient    Recipient `json:"recipient"`
	Channel      string    `json:"channel"`
	Success      bool      `json:"success"`
	Timestamp    string    `json:"timestamp,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// SendMessageResponse aggregates results so callers can show partial success.
type SendMessageResponse struct {
	Success bool              `json:"success"`
	Results []RecipientResult `json:"results"`
}

type ScheduleMessageRequest struct {
	WorkspaceID uuid.UUID     `json:"workspace_id" binding:"required"`
	TemplateID  *uuid.UUID    `json:"template_id,omitempty"`
	Content     string        `json:"content" binding:"required"`
	Blocks      BlockList     `json:"blocks,omitempty"`
	Recipients  RecipientList `json:"recipients" binding:"required,min=1,dive"`
	Sender      Sender        `json:"sender" binding:"required"`
	ScheduledAt time.Time     `json:"scheduled_at" binding:"required"`
	Recurrence  *Recurrence   `json:"recurrence,omitempty"`
}

type CreateTokenRequest struct {
	UserID    string    `json:"user_id" binding:"required"`
	UserName  string    `json:"user_name"`
	Email     string    `json:"email" binding:"omitempty,email"`
	Token     string    `json:"token" binding:"required"`
	Scopes    ScopeList `json:"scopes"`
	IsDefault bool      `json:"is_default"`
}
