package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type RecipientType string

const (
	RecipientTypeChannel RecipientType = "channel"
	RecipientTypeUser    RecipientType = "user"
	RecipientTypeEmail   RecipientType = "email"
)

// Recipient is a destination descriptor. For the email type the platform ID
// is unknown until a directory lookup resolves it.
type Recipient struct {
	Type  RecipientType `json:"type" binding:"required,oneof=channel user email"`
	ID    string        `json:"id,omitempty"`
	Name  string        `json:"name,omitempty"`
	Email string        `json:"email,omitempty"`
}

// RecipientList is stored as a jsonb column on scheduled messages and rules.
type RecipientList []Recipient

func (l RecipientList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]Recipient{})
	}
	return json.Marshal(l)
}

func (l *RecipientList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for RecipientList: %T", src)
	}
	return json.Unmarshal(b, l)
}

type SenderType string

const (
	SenderTypeBot  SenderType = "bot"
	SenderTypeUser SenderType = "user"
)

// Sender selects which workspace credential a dispatch uses.
type Sender struct {
	Type     SenderType `json:"type" binding:"required,oneof=bot user"`
	UserID   string     `json:"user_id,omitempty"`
	UserName string     `json:"user_name,omitempty"`
}

func (s Sender) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Sender) Scan(src interface{}) error {
	if src == nil {
		*s = Sender{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for Sender: %T", src)
	}
	return json.Unmarshal(b, s)
}
