package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Workspace identifies a destination Slack organization. It owns at most one
// bot token plus any number of user tokens added by operators.
type Workspace struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	Name       string      `json:"name" db:"name" binding:"required"`
	TeamID     string      `json:"team_id" db:"team_id"`
	BotToken   string      `json:"-" db:"bot_token"`
	BotUserID  string      `json:"bot_user_id" db:"bot_user_id"`
	UserTokens []UserToken `json:"user_tokens,omitempty" db:"-"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// UserToken is an opaque secret bound to one workspace and one human identity.
// At most one token per workspace is conventionally flagged as default; the
// write path unsets prior defaults but uniqueness is not enforced by the store.
type UserToken struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id" db:"workspace_id"`
	UserID      string    `json:"user_id" db:"slack_user_id"`
	UserName    string    `json:"user_name" db:"user_name"`
	Email       string    `json:"email" db:"email"`
	Token       string    `json:"-" db:"token"`
	Scopes      ScopeList `json:"scopes" db:"scopes"`
	IsDefault   bool      `json:"is_default" db:"is_default"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ScopeList is the set of OAuth scopes a token was granted, stored as a
// jsonb column.
type ScopeList []string

func (l ScopeList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

func (l *ScopeList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for ScopeList: %T", src)
	}
	return json.Unmarshal(b, l)
}
