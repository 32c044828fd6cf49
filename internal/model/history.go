package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type HistoryOutcome string

const (
	HistoryOutcomeSent   HistoryOutcome = "sent"
	HistoryOutcomeFailed HistoryOutcome = "failed"
)

// RecipientJSON wraps a single Recipient for jsonb storage.
type RecipientJSON Recipient

func (r RecipientJSON) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RecipientJSON) Scan(src interface{}) error {
	if src == nil {
		*r = RecipientJSON{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for RecipientJSON: %T", src)
	}
	return json.Unmarshal(b, r)
}

// MessageHistory is an immutable audit record for one delivery attempt to one
// recipient. Created only by the dispatcher pipeline, never updated.
type MessageHistory struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	WorkspaceID        uuid.UUID      `json:"workspace_id" db:"workspace_id"`
	ScheduledMessageID *uuid.UUID     `json:"scheduled_message_id,omitempty" db:"scheduled_message_id"`
	TemplateID         *uuid.UUID     `json:"template_id,omitempty" db:"template_id"`
	RuleID             *uuid.UUID     `json:"rule_id,omitempty" db:"rule_id"`
	Recipient          RecipientJSON  `json:"recipient" db:"recipient"`
	Sender             Sender         `json:"sender" db:"sender"`
	Content            string         `json:"content" db:"content"`
	Blocks             BlockList      `json:"blocks,omitempty" db:"blocks"`
	Outcome            HistoryOutcome `json:"outcome" db:"outcome"`
	ErrorMessage       *string        `json:"error_message,omitempty" db:"error_message"`
	SentBy             string         `json:"sent_by" db:"sent_by"`
	SentAt             time.Time      `json:"sent_at" db:"sent_at"`
}
