package rule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/platform/hubspot"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/internal/service/dispatch"
	"github.com/relayops/dispatch-api/internal/service/metric"
	"github.com/relayops/dispatch-api/internal/service/template"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/messaging"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

// Target identifies the CRM record a rule is evaluated against. ObjectID is
// preferred; Email falls back to a contact search.
type Target struct {
	ObjectID string `json:"object_id,omitempty"`
	Email    string `json:"email,omitempty" binding:"omitempty,email"`
}

// ConditionFunc resolves a custom condition by name. Registered handlers run
// with the properties already fetched for the rule.
type ConditionFunc func(ctx context.Context, cond model.RuleCondition, props map[string]string) (bool, error)

// ConditionResult reports one condition's outcome for the evaluate endpoint.
type ConditionResult struct {
	Type        model.ConditionType `json:"type"`
	Property    string              `json:"property,omitempty"`
	Label       string              `json:"label,omitempty"`
	Matched     bool                `json:"matched"`
	MetricValue string              `json:"metric_value,omitempty"`
}

// ActionResult reports one action's outcome after a rule fires.
type ActionResult struct {
	Type         model.ActionType `json:"type"`
	Success      bool             `json:"success"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// EvalResult is the full outcome of evaluating a single rule.
type EvalResult struct {
	RuleID     uuid.UUID         `json:"rule_id"`
	Fired      bool              `json:"fired"`
	Conditions []ConditionResult `json:"conditions"`
	Metrics    map[string]string `json:"metrics,omitempty"`
	Actions    []ActionResult    `json:"actions,omitempty"`
}

type Engine struct {
	rules     repository.RuleRepository
	templates repository.TemplateRepository
	crm       hubspot.CRM
	sender    dispatch.Sender
	broker    messaging.Broker
	webhook   *http.Client
	custom    map[string]ConditionFunc
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewEngine(
	rules repository.RuleRepository,
	templates repository.TemplateRepository,
	crm hubspot.CRM,
	sender dispatch.Sender,
	broker messaging.Broker,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Engine {
	return &Engine{
		rules:     rules,
		templates: templates,
		crm:       crm,
		sender:    sender,
		broker:    broker,
		webhook:   &http.Client{Timeout: 10 * time.Second},
		custom:    make(map[string]ConditionFunc),
		logger:    logger,
		metrics:   metrics,
	}
}

// RegisterCondition installs a handler for custom conditions with the given
// name. Unregistered names evaluate to false.
func (e *Engine) RegisterCondition(name string, fn ConditionFunc) {
	e.custom[name] = fn
}

// Evaluate loads a rule and evaluates it against the target.
func (e *Engine) Evaluate(ctx context.Context, ruleID uuid.UUID, target Target, now time.Time) (*EvalResult, error) {
	rule, err := e.rules.Get(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return e.EvaluateRule(ctx, rule, target, now)
}

// EvaluateRule checks every condition against the target and, when all of
// them match, executes the rule's actions. Action failures do not abort the
// remaining actions.
func (e *Engine) EvaluateRule(ctx context.Context, rule *model.MessageRule, target Target, now time.Time) (*EvalResult, error) {
	result := &EvalResult{RuleID: rule.ID, Metrics: make(map[string]string)}

	props, err := e.fetchProperties(ctx, rule, target)
	if err != nil {
		e.metrics.RuleEvaluations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetching properties for rule %s: %w", rule.ID, err)
	}

	var metricLabels []string
	fired := true
	for _, cond := range rule.Conditions {
		cr, err := e.evaluateCondition(ctx, cond, props, now)
		if err != nil {
			e.metrics.RuleEvaluations.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("evaluating condition %q on rule %s: %w", cond.Type, rule.ID, err)
		}
		result.Conditions = append(result.Conditions, cr)
		if cond.Type == model.ConditionTypeMetric && cond.Metric != nil {
			metricLabels = append(metricLabels, cond.Metric.Label)
			result.Metrics[cond.Metric.Label] = cr.MetricValue
		}
		if !cr.Matched {
			fired = false
		}
	}
	result.Fired = fired

	if !fired {
		e.metrics.RuleEvaluations.WithLabelValues("skipped").Inc()
		return result, nil
	}

	e.metrics.RuleEvaluations.WithLabelValues("fired").Inc()
	e.logger.Info("rule fired",
		"rule_id", rule.ID.String(),
		"rule_name", rule.Name,
		"object_id", target.ObjectID)

	for _, action := range rule.Actions {
		ar := e.executeAction(ctx, rule, action, target, props, metricLabels, result.Metrics)
		result.Actions = append(result.Actions, ar)
	}

	if e.broker != nil {
		event := messaging.Message{Type: "rule.fired", Payload: result}
		if err := e.broker.Publish(ctx, messaging.ChannelRuleFire, event); err != nil {
			e.logger.Error(err, "publishing rule fire event", "rule_id", rule.ID.String())
		}
	}
	return result, nil
}

// EvaluateAll runs every active rule that names its own target object. Rules
// are isolated from one another; a failing rule is logged and skipped.
func (e *Engine) EvaluateAll(ctx context.Context, now time.Time) error {
	rules, err := e.rules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active rules: %w", err)
	}

	for _, rule := range rules {
		if rule.ObjectID == "" {
			continue
		}
		if _, err := e.EvaluateRule(ctx, rule, Target{ObjectID: rule.ObjectID}, now); err != nil {
			e.logger.Error(err, "rule evaluation failed", "rule_id", rule.ID.String())
		}
	}
	return nil
}

// fetchProperties pulls every CRM property the rule's conditions and actions
// reference in a single request. Rules that reference no properties skip the
// CRM round trip entirely.
func (e *Engine) fetchProperties(ctx context.Context, rule *model.MessageRule, target Target) (map[string]string, error) {
	names := e.propertyNames(ctx, rule)
	if len(names) == 0 {
		return map[string]string{}, nil
	}

	switch {
	case target.ObjectID != "":
		objectType := rule.ObjectType
		if objectType == "" {
			objectType = "contacts"
		}
		return e.crm.GetObjectProperties(ctx, objectType, target.ObjectID, names)
	case target.Email != "":
		return e.crm.SearchContactByEmail(ctx, target.Email, names)
	default:
		return nil, fmt.Errorf("rule %s requires a target object or email", rule.ID)
	}
}

func (e *Engine) propertyNames(ctx context.Context, rule *model.MessageRule) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, cond := range rule.Conditions {
		switch cond.Type {
		case model.ConditionTypeProperty:
			add(cond.Property)
		case model.ConditionTypeMetric:
			if cond.Metric != nil {
				for _, p := range cond.Metric.Properties {
					add(p)
				}
			}
		}
	}
	for _, action := range rule.Actions {
		if action.Type != model.ActionTypeSendMessage {
			continue
		}
		content := action.CustomMessage
		if action.TemplateID != nil {
			tpl, err := e.templates.Get(ctx, *action.TemplateID)
			if err != nil {
				e.logger.Error(err, "loading template for property scan", "template_id", action.TemplateID.String())
				continue
			}
			content = tpl.Content
		}
		for _, v := range template.ExtractVariables(content) {
			add(v)
		}
	}
	return names
}

func (e *Engine) evaluateCondition(ctx context.Context, cond model.RuleCondition, props map[string]string, now time.Time) (ConditionResult, error) {
	cr := ConditionResult{Type: cond.Type, Property: cond.Property}

	switch cond.Type {
	case model.ConditionTypeProperty:
		matched, err := compare(props[cond.Property], cond.Operator, cond.Value, cond.SecondValue)
		if err != nil {
			return cr, err
		}
		cr.Matched = matched

	case model.ConditionTypeTime:
		matched, err := compareTime(now, cond.Operator, cond.Value, cond.SecondValue)
		if err != nil {
			return cr, err
		}
		cr.Matched = matched

	case model.ConditionTypeMetric:
		if cond.Metric == nil {
			return cr, fmt.Errorf("metric condition without a calculation")
		}
		cr.Label = cond.Metric.Label
		values := make([]string, 0, len(cond.Metric.Properties))
		for _, p := range cond.Metric.Properties {
			values = append(values, props[p])
		}
		computed, err := metric.Evaluate(*cond.Metric, values)
		if err != nil {
			e.metrics.MetricFailures.Inc()
			return cr, err
		}
		cr.MetricValue = metric.Format(*cond.Metric, computed)
		matched, err := compareNumeric(computed, cond.Operator, cond.Value, cond.SecondValue)
		if err != nil {
			return cr, err
		}
		cr.Matched = matched

	case model.ConditionTypeCustom:
		fn, ok := e.custom[cond.Name]
		if !ok {
			e.logger.Warn("unregistered custom condition", "name", cond.Name)
			cr.Matched = false
			return cr, nil
		}
		matched, err := fn(ctx, cond, props)
		if err != nil {
			return cr, err
		}
		cr.Matched = matched

	default:
		return cr, fmt.Errorf("unknown condition type %q", cond.Type)
	}
	return cr, nil
}

func (e *Engine) executeAction(
	ctx context.Context,
	rule *model.MessageRule,
	action model.RuleAction,
	target Target,
	props map[string]string,
	metricLabels []string,
	metricValues map[string]string,
) ActionResult {
	ar := ActionResult{Type: action.Type}

	var err error
	switch action.Type {
	case model.ActionTypeSendMessage:
		err = e.sendMessage(ctx, rule, action, props, metricLabels, metricValues)
	case model.ActionTypeUpdateHubspot:
		err = e.updateObject(ctx, rule, action, target, props, metricValues)
	case model.ActionTypeWebhook:
		err = e.callWebhook(ctx, rule, action, target, metricValues)
	default:
		err = fmt.Errorf("unknown action type %q", action.Type)
	}

	if err != nil {
		e.metrics.ActionsExecuted.WithLabelValues(string(action.Type), "failure").Inc()
		e.logger.Error(err, "rule action failed",
			"rule_id", rule.ID.String(),
			"action_type", string(action.Type))
		ar.ErrorMessage = err.Error()
		return ar
	}

	e.metrics.ActionsExecuted.WithLabelValues(string(action.Type), "success").Inc()
	ar.Success = true
	return ar
}

func (e *Engine) sendMessage(
	ctx context.Context,
	rule *model.MessageRule,
	action model.RuleAction,
	props map[string]string,
	metricLabels []string,
	metricValues map[string]string,
) error {
	content := action.CustomMessage
	if action.TemplateID != nil {
		tpl, err := e.templates.Get(ctx, *action.TemplateID)
		if err != nil {
			return fmt.Errorf("loading template: %w", err)
		}
		content = tpl.Content
	}
	if content == "" {
		return fmt.Errorf("send_message action has no template or custom message")
	}
	if len(action.Recipients) == 0 {
		return fmt.Errorf("send_message action has no recipients")
	}

	vars := make(map[string]string, len(props)+len(metricValues))
	for k, v := range props {
		vars[k] = v
	}
	for k, v := range metricValues {
		vars[k] = v
	}

	content = template.Render(content, vars)
	if action.IncludeMetrics {
		content = template.AppendMetrics(content, metricLabels, metricValues)
	}

	req := &model.SendMessageRequest{
		WorkspaceID: rule.WorkspaceID,
		Content:     content,
		Recipients:  action.Recipients,
		Sender:      action.Sender,
		TemplateID:  action.TemplateID,
		RuleID:      &rule.ID,
	}
	resp, err := e.sender.Send(ctx, req, "rule:"+rule.Name)
	if err != nil {
		return err
	}
	if !resp.Success {
		var failed []string
		for _, r := range resp.Results {
			if !r.Success {
				failed = append(failed, r.Channel)
			}
		}
		return fmt.Errorf("delivery failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func (e *Engine) updateObject(
	ctx context.Context,
	rule *model.MessageRule,
	action model.RuleAction,
	target Target,
	props map[string]string,
	metricValues map[string]string,
) error {
	if target.ObjectID == "" {
		return fmt.Errorf("update_hubspot action requires a target object id")
	}
	objectType := action.ObjectType
	if objectType == "" {
		objectType = rule.ObjectType
	}
	if objectType == "" {
		objectType = "contacts"
	}

	vars := make(map[string]string, len(props)+len(metricValues))
	for k, v := range props {
		vars[k] = v
	}
	for k, v := range metricValues {
		vars[k] = v
	}
	updates := make(map[string]string, len(action.Properties))
	for name, value := range action.Properties {
		updates[name] = template.Render(value, vars)
	}
	return e.crm.UpdateObject(ctx, objectType, target.ObjectID, updates)
}

type webhookPayload struct {
	RuleID      uuid.UUID         `json:"rule_id"`
	RuleName    string            `json:"rule_name"`
	WorkspaceID uuid.UUID         `json:"workspace_id"`
	ObjectID    string            `json:"object_id,omitempty"`
	Metrics     map[string]string `json:"metrics,omitempty"`
	FiredAt     time.Time         `json:"fired_at"`
}

func (e *Engine) callWebhook(ctx context.Context, rule *model.MessageRule, action model.RuleAction, target Target, metricValues map[string]string) error {
	if action.URL == "" {
		return fmt.Errorf("webhook action has no url")
	}

	payload := webhookPayload{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		WorkspaceID: rule.WorkspaceID,
		ObjectID:    target.ObjectID,
		Metrics:     metricValues,
		FiredAt:     time.Now().UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.webhook.Do(req)
	if err != nil {
		return fmt.Errorf("calling webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// compare applies an operator to a raw property value. equals and not_equals
// fall back to string comparison when either side is non-numeric; ordering
// operators require numeric operands.
func compare(raw string, op model.ConditionOperator, value, secondValue string) (bool, error) {
	switch op {
	case model.OperatorEquals, model.OperatorNotEquals:
		left, lerr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		right, rerr := strconv.ParseFloat(strings.TrimSpace(value), 64)
		var eq bool
		if lerr == nil && rerr == nil {
			eq = left == right
		} else {
			eq = raw == value
		}
		if op == model.OperatorNotEquals {
			return !eq, nil
		}
		return eq, nil

	case model.OperatorContains:
		return strings.Contains(raw, value), nil

	case model.OperatorGreaterThan, model.OperatorLessThan, model.OperatorBetween:
		left, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return false, fmt.Errorf("property value %q is not numeric", raw)
		}
		return compareNumeric(left, op, value, secondValue)

	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func compareNumeric(left float64, op model.ConditionOperator, value, secondValue string) (bool, error) {
	right, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return false, fmt.Errorf("condition value %q is not numeric", value)
	}

	switch op {
	case model.OperatorEquals:
		return left == right, nil
	case model.OperatorNotEquals:
		return left != right, nil
	case model.OperatorGreaterThan:
		return left > right, nil
	case model.OperatorLessThan:
		return left < right, nil
	case model.OperatorBetween:
		upper, err := strconv.ParseFloat(strings.TrimSpace(secondValue), 64)
		if err != nil {
			return false, fmt.Errorf("condition second value %q is not numeric", secondValue)
		}
		return left >= right && left <= upper, nil
	default:
		return false, fmt.Errorf("operator %q is not valid for numeric comparison", op)
	}
}

// compareTime evaluates time conditions. Values in RFC 3339 compare against
// the full instant; values in HH:MM compare against the time of day.
func compareTime(now time.Time, op model.ConditionOperator, value, secondValue string) (bool, error) {
	if instant, err := time.Parse(time.RFC3339, value); err == nil {
		switch op {
		case model.OperatorGreaterThan:
			return now.After(instant), nil
		case model.OperatorLessThan:
			return now.Before(instant), nil
		case model.OperatorEquals:
			return now.Equal(instant), nil
		case model.OperatorNotEquals:
			return !now.Equal(instant), nil
		case model.OperatorBetween:
			upper, err := time.Parse(time.RFC3339, secondValue)
			if err != nil {
				return false, fmt.Errorf("parsing second time value %q: %w", secondValue, err)
			}
			return !now.Before(instant) && !now.After(upper), nil
		default:
			return false, fmt.Errorf("operator %q is not valid for time comparison", op)
		}
	}

	lower, err := minutesOfDay(value)
	if err != nil {
		return false, err
	}
	current := now.Hour()*60 + now.Minute()

	switch op {
	case model.OperatorGreaterThan:
		return current > lower, nil
	case model.OperatorLessThan:
		return current < lower, nil
	case model.OperatorEquals:
		return current == lower, nil
	case model.OperatorNotEquals:
		return current != lower, nil
	case model.OperatorBetween:
		upper, err := minutesOfDay(secondValue)
		if err != nil {
			return false, err
		}
		return current >= lower && current <= upper, nil
	default:
		return false, fmt.Errorf("operator %q is not valid for time comparison", op)
	}
}

func minutesOfDay(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parsing time value %q: %w", value, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
