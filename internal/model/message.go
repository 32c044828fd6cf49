package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusCancelled MessageStatus = "cancelled"
)

// BlockType enumerates the structured Slack block kinds the engine renders.
type BlockType string

const (
	BlockTypeSection BlockType = "section"
	BlockTypeDivider BlockType = "divider"
	BlockTypeHeader  BlockType = "header"
	BlockTypeContext BlockType = "context"
)

// MessageBlock is one element of a structured block payload.
type MessageBlock struct {
	Type   BlockType `json:"type"`
	Text   string    `json:"text,omitempty"`
	Fields []string  `json:"fields,omitempty"`
}

type BlockList []MessageBlock

func (l BlockList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *BlockList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for BlockList: %T", src)
	}
	return json.Unmarshal(b, l)
}

// Recurrence describes how often a message is meant to repeat. The poll loop
// stamps last_run_at when a recurring message is sent; computing the next due
// date is left to the job that re-arms recurring messages.
type Recurrence struct {
	Frequency string `json:"frequency"` // daily, weekly, monthly
	DayOfWeek int    `json:"day_of_week,omitempty"`
	Hour      int    `json:"hour,omitempty"`
	Minute    int    `json:"minute,omitempty"`
}

func (r Recurrence) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *Recurrence) Scan(src interface{}) error {
	if src == nil {
		*r = Recurrence{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for Recurrence: %T", src)
	}
	return json.Unmarshal(b, r)
}

// ScheduledMessage is a message queued for future delivery.
//
// Status transitions: scheduled -> sending -> sent|failed. Cancelled is set
// only by an explicit operator action while still in scheduled.
type ScheduledMessage struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	WorkspaceID  uuid.UUID     `json:"workspace_id" db:"workspace_id"`
	TemplateID   *uuid.UUID    `json:"template_id,omitempty" db:"template_id"`
	Content      string        `json:"content" db:"content"`
	Blocks       BlockList     `json:"blocks,omitempty" db:"blocks"`
	Recipients   RecipientList `json:"recipients" db:"recipients"`
	Sender       Sender        `json:"sender" db:"sender"`
	ScheduledAt  time.Time     `json:"scheduled_at" db:"scheduled_at"`
	Recurrence   *Recurrence   `json:"recurrence,omitempty" db:"recurrence"`
	Status       MessageStatus `json:"status" db:"status"`
	ErrorMessage *string       `json:"error_message,omitempty" db:"error_message"`
	LastRunAt    *time.Time    `json:"last_run_at,omitempty" db:"last_run_at"`
	CreatedBy    string        `json:"created_by" db:"created_by"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// IsRecurring reports whether the message carries a recurrence descriptor.
func (m *ScheduledMessage) IsRecurring() bool {
	return m.Recurrence != nil && m.Recurrence.Frequency != ""
}
