package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}
	return json.Unmarshal(b, l)
}

// MessageTemplate holds content with {{var}} placeholders. HubspotFields is
// the subset of Variables known to map onto CRM properties; the UI uses it
// for autocomplete, the engine does not require it.
type MessageTemplate struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	WorkspaceID   uuid.UUID  `json:"workspace_id" db:"workspace_id"`
	Name          string     `json:"name" db:"name" binding:"required"`
	Content       string     `json:"content" db:"content" binding:"required"`
	Variables     StringList `json:"variables" db:"variables"`
	HubspotFields StringList `json:"hubspot_fields" db:"hubspot_fields"`
	CreatedBy     string     `json:"created_by" db:"created_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
