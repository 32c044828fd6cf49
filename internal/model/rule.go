package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ConditionType string

const (
	ConditionTypeProperty ConditionType = "hubspot_property"
	ConditionTypeTime     ConditionType = "time_based"
	ConditionTypeMetric   ConditionType = "metric_calculation"
	ConditionTypeCustom   ConditionType = "custom"
)

type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorBetween     ConditionOperator = "between"
)

type MetricType string

const (
	MetricTypeSum      MetricType = "sum"
	MetricTypeAverage  MetricType = "average"
	MetricTypeDivide   MetricType = "divide"
	MetricTypeMultiply MetricType = "multiply"
	MetricTypeSubtract MetricType = "subtract"
	MetricTypeCount    MetricType = "count"
)

// MetricCalculation names an arithmetic reduction over CRM property values.
type MetricCalculation struct {
	Type          MetricType `json:"type"`
	Properties    []string   `json:"properties"`
	Label         string     `json:"label"`
	DisplayFormat string     `json:"display_format,omitempty"`
}

// RuleCondition is one boolean test. The populated fields depend on Type:
// property conditions carry Property, metric conditions carry Metric, custom
// conditions carry only Name and are resolved through the handler registry.
type RuleCondition struct {
	Type        ConditionType      `json:"type"`
	Property    string             `json:"property,omitempty"`
	Metric      *MetricCalculation `json:"metric,omitempty"`
	Name        string             `json:"name,omitempty"`
	Operator    ConditionOperator  `json:"operator"`
	Value       string             `json:"value"`
	SecondValue string             `json:"second_value,omitempty"`
}

type ConditionList []RuleCondition

func (l ConditionList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]RuleCondition{})
	}
	return json.Marshal(l)
}

func (l *ConditionList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for ConditionList: %T", src)
	}
	return json.Unmarshal(b, l)
}

type ActionType string

const (
	ActionTypeSendMessage   ActionType = "send_message"
	ActionTypeUpdateHubspot ActionType = "update_hubspot"
	ActionTypeWebhook       ActionType = "webhook"
)

// RuleAction is executed when a rule fires. Fields by Type:
// send_message uses TemplateID/CustomMessage/Recipients/Sender/IncludeMetrics,
// update_hubspot uses ObjectType/Properties, webhook uses URL.
type RuleAction struct {
	Type           ActionType        `json:"type"`
	TemplateID     *uuid.UUID        `json:"template_id,omitempty"`
	CustomMessage  string            `json:"custom_message,omitempty"`
	Recipients     RecipientList     `json:"recipients,omitempty"`
	Sender         Sender            `json:"sender,omitempty"`
	IncludeMetrics bool              `json:"include_metrics,omitempty"`
	ObjectType     string            `json:"object_type,omitempty"`
	Properties     map[string]string `json:"properties,omitempty"`
	URL            string            `json:"url,omitempty"`
}

type ActionList []RuleAction

func (l ActionList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]RuleAction{})
	}
	return json.Marshal(l)
}

func (l *ActionList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for ActionList: %T", src)
	}
	return json.Unmarshal(b, l)
}

// MessageRule belongs to a workspace and fires when every condition holds.
// There is no native OR; operators wanting OR create multiple rules.
type MessageRule struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	WorkspaceID uuid.UUID     `json:"workspace_id" db:"workspace_id"`
	Name        string        `json:"name" db:"name" binding:"required"`
	Description string        `json:"description" db:"description"`
	ObjectType  string        `json:"object_type" db:"object_type"`
	// ObjectID is the CRM record the rule watches during autonomous
	// evaluation. Rules without one are only evaluated on explicit request.
	ObjectID   string        `json:"object_id,omitempty" db:"object_id"`
	Conditions ConditionList `json:"conditions" db:"conditions"`
	Actions    ActionList    `json:"actions" db:"actions"`
	Active     bool          `json:"active" db:"active"`
	CreatedBy  string        `json:"created_by" db:"created_by"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}
