package rule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("dispatch_test", "rule")

type fakeRuleRepo struct {
	rules map[uuid.UUID]*model.MessageRule
}

func (f *fakeRuleRepo) Create(ctx context.Context, rule *model.MessageRule) error { return nil }
func (f *fakeRuleRepo) Get(ctx context.Context, id uuid.UUID) (*model.MessageRule, error) {
	rule, ok := f.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	return rule, nil
}
func (f *fakeRuleRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*model.MessageRule, error) {
	return nil, nil
}
func (f *fakeRuleRepo) ListActive(ctx context.Context) ([]*model.MessageRule, error) {
	var active []*model.MessageRule
	for _, rule := range f.rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	return active, nil
}
func (f *fakeRuleRepo) Update(ctx context.Context, rule *model.MessageRule) error { return nil }
func (f *fakeRuleRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return nil
}

type fakeTemplateRepo struct {
	templates map[uuid.UUID]*model.MessageTemplate
}

func (f *fakeTemplateRepo) Create(ctx context.Context, tpl *model.MessageTemplate) error { return nil }
func (f *fakeTemplateRepo) Get(ctx context.Context, id uuid.UUID) (*model.MessageTemplate, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}
	return tpl, nil
}
func (f *fakeTemplateRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]*model.MessageTemplate, error) {
	return nil, nil
}

type fakeCRM struct {
	properties map[string]string
	updates    []map[string]string
	fetches    int
}

func (f *fakeCRM) GetObjectProperties(ctx context.Context, objectType, objectID string, properties []string) (map[string]string, error) {
	f.fetches++
	out := make(map[string]string)
	for _, p := range properties {
		if v, ok := f.properties[p]; ok {
			out[p] = v
		}
	}
	return out, nil
}

func (f *fakeCRM) SearchContactByEmail(ctx context.Context, email string, properties []string) (map[string]string, error) {
	return f.GetObjectProperties(ctx, "contacts", email, properties)
}

func (f *fakeCRM) UpdateObject(ctx context.Context, objectType, objectID string, properties map[string]string) error {
	f.updates = append(f.updates, properties)
	return nil
}

type fakeSender struct {
	requests []*model.SendMessageRequest
	fail     bool
}

func (f *fakeSender) Send(ctx context.Context, req *model.SendMessageRequest, actor string) (*model.SendMessageResponse, error) {
	if f.fail {
		return nil, fmt.Errorf("workspace unavailable")
	}
	f.requests = append(f.requests, req)
	results := make([]model.RecipientResult, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		results = append(results, model.RecipientResult{Recipient: r, Channel: r.ID, Success: true})
	}
	return &model.SendMessageResponse{Success: true, Results: results}, nil
}

func newTestEngine(rules *fakeRuleRepo, templates *fakeTemplateRepo, crm *fakeCRM, sender *fakeSender) *Engine {
	return NewEngine(rules, templates, crm, sender, nil, logger.NewLogger(nil), testMetrics)
}

func dealRule(conditions []model.RuleCondition, actions []model.RuleAction) *model.MessageRule {
	return &model.MessageRule{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Name:        "big deal alert",
		ObjectType:  "deals",
		ObjectID:    "deal-42",
		Conditions:  conditions,
		Actions:     actions,
		Active:      true,
	}
}

func TestEvaluateRulePropertyConditionFires(t *testing.T) {
	crm := &fakeCRM{properties: map[string]string{"dealstage": "closedwon", "amount": "125000"}}
	sender := &fakeSender{}
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeProperty, Property: "dealstage", Operator: model.OperatorEquals, Value: "closedwon"},
		},
		[]model.RuleAction{
			{
				Type:          model.ActionTypeSendMessage,
				CustomMessage: "Deal closed at {{amount}}",
				Recipients:    model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C123"}},
				Sender:        model.Sender{Type: model.SenderTypeBot},
			},
		},
	)
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, crm, sender)

	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.NoError(t, err)

	assert.True(t, result.Fired)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "Deal closed at 125000", sender.requests[0].Content)
	assert.Equal(t, &rule.ID, sender.requests[0].RuleID)
	require.Len(t, result.Actions, 1)
	assert.True(t, result.Actions[0].Success)
	assert.Equal(t, 1, crm.fetches)
}

func TestEvaluateRuleAllConditionsMustMatch(t *testing.T) {
	crm := &fakeCRM{properties: map[string]string{"dealstage": "closedwon", "amount": "500"}}
	sender := &fakeSender{}
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeProperty, Property: "dealstage", Operator: model.OperatorEquals, Value: "closedwon"},
			{Type: model.ConditionTypeProperty, Property: "amount", Operator: model.OperatorGreaterThan, Value: "10000"},
		},
		[]model.RuleAction{
			{
				Type:          model.ActionTypeSendMessage,
				CustomMessage: "should not send",
				Recipients:    model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C123"}},
			},
		},
	)
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, crm, sender)

	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.NoError(t, err)

	assert.False(t, result.Fired)
	assert.Empty(t, sender.requests)
	assert.Empty(t, result.Actions)
	require.Len(t, result.Conditions, 2)
	assert.True(t, result.Conditions[0].Matched)
	assert.False(t, result.Conditions[1].Matched)
}

func TestEvaluateRuleMetricConditionWithFooter(t *testing.T) {
	crm := &fakeCRM{properties: map[string]string{"q1_revenue": "10000", "q2_revenue": "15000"}}
	sender := &fakeSender{}
	rule := dealRule(
		[]model.RuleCondition{
			{
				Type: model.ConditionTypeMetric,
				Metric: &model.MetricCalculation{
					Type:          model.MetricTypeSum,
					Properties:    []string{"q1_revenue", "q2_revenue"},
					Label:         "H1 revenue",
					DisplayFormat: "currency",
				},
				Operator: model.OperatorGreaterThan,
				Value:    "20000",
			},
		},
		[]model.RuleAction{
			{
				Type:           model.ActionTypeSendMessage,
				CustomMessage:  "Revenue target reached",
				Recipients:     model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C123"}},
				IncludeMetrics: true,
			},
		},
	)
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, crm, sender)

	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.NoError(t, err)

	assert.True(t, result.Fired)
	assert.Equal(t, "$25000.00", result.Metrics["H1 revenue"])
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "Revenue target reached\n\nH1 revenue: $25000.00", sender.requests[0].Content)
}

func TestEvaluateRuleMetricDivisionByZero(t *testing.T) {
	crm := &fakeCRM{properties: map[string]string{"won": "8", "total": "0"}}
	sender := &fakeSender{}
	rule := dealRule(
		[]model.RuleCondition{
			{
				Type: model.ConditionTypeMetric,
				Metric: &model.MetricCalculation{
					Type:       model.MetricTypeDivide,
					Properties: []string{"won", "total"},
					Label:      "win rate",
				},
				Operator: model.OperatorGreaterThan,
				Value:    "0.5",
			},
		},
		nil,
	)
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, crm, sender)

	_, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.Error(t, err)
	assert.Empty(t, sender.requests)
}

func TestEvaluateRuleTimeOfDayWindow(t *testing.T) {
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, &fakeCRM{}, &fakeSender{})
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeTime, Operator: model.OperatorBetween, Value: "09:00", SecondValue: "17:00"},
		},
		nil,
	)

	inside := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, inside)
	require.NoError(t, err)
	assert.True(t, result.Fired)

	outside := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	result, err = engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, outside)
	require.NoError(t, err)
	assert.False(t, result.Fired)
}

func TestEvaluateRuleTimeNotEquals(t *testing.T) {
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, &fakeCRM{}, &fakeSender{})

	// Time-of-day form.
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeTime, Operator: model.OperatorNotEquals, Value: "09:00"},
		},
		nil,
	)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, at)
	require.NoError(t, err)
	assert.False(t, result.Fired)

	result, err = engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, at.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, result.Fired)

	// Full-instant form.
	rule = dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeTime, Operator: model.OperatorNotEquals, Value: "2026-03-02T09:00:00Z"},
		},
		nil,
	)

	result, err = engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, at)
	require.NoError(t, err)
	assert.False(t, result.Fired)

	result, err = engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, at.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, result.Fired)
}

func TestEvaluateRuleUnregisteredCustomCondition(t *testing.T) {
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, &fakeCRM{}, &fakeSender{})
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeCustom, Name: "vip_account"},
		},
		nil,
	)

	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.NoError(t, err)
	assert.False(t, result.Fired)
}

func TestEvaluateRuleRegisteredCustomCondition(t *testing.T) {
	crm := &fakeCRM{properties: map[string]string{"tier": "enterprise"}}
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, crm, &fakeSender{})
	engine.RegisterCondition("vip_account", func(ctx context.Context, cond model.RuleCondition, props map[string]string) (bool, error) {
		return props["tier"] == "enterprise", nil
	})
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeProperty, Property: "tier", Operator: model.OperatorEquals, Value: "enterprise"},
			{Type: model.ConditionTypeCustom, Name: "vip_account"},
		},
		nil,
	)

	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.NoError(t, err)
	assert.True(t, result.Fired)
}

func TestEvaluateRuleActionFailureDoesNotAbortRemaining(t *testing.T) {
	crm := &fakeCRM{properties: map[string]string{"dealstage": "closedwon"}}
	sender := &fakeSender{fail: true}
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeProperty, Property: "dealstage", Operator: model.OperatorEquals, Value: "closedwon"},
		},
		[]model.RuleAction{
			{
				Type:          model.ActionTypeSendMessage,
				CustomMessage: "hello",
				Recipients:    model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C123"}},
			},
			{
				Type:       model.ActionTypeUpdateHubspot,
				Properties: map[string]string{"notified": "true"},
			},
		},
	)
	engine := newTestEngine(&fakeRuleRepo{}, &fakeTemplateRepo{}, crm, sender)

	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.NoError(t, err)

	require.Len(t, result.Actions, 2)
	assert.False(t, result.Actions[0].Success)
	assert.NotEmpty(t, result.Actions[0].ErrorMessage)
	assert.True(t, result.Actions[1].Success)
	require.Len(t, crm.updates, 1)
	assert.Equal(t, "true", crm.updates[0]["notified"])
}

func TestEvaluateRuleTemplateAction(t *testing.T) {
	tplID := uuid.New()
	templates := &fakeTemplateRepo{templates: map[uuid.UUID]*model.MessageTemplate{
		tplID: {ID: tplID, Content: "{{firstname}} moved to {{dealstage}}"},
	}}
	crm := &fakeCRM{properties: map[string]string{"firstname": "Dana", "dealstage": "closedwon"}}
	sender := &fakeSender{}
	rule := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeProperty, Property: "dealstage", Operator: model.OperatorEquals, Value: "closedwon"},
		},
		[]model.RuleAction{
			{
				Type:       model.ActionTypeSendMessage,
				TemplateID: &tplID,
				Recipients: model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C123"}},
			},
		},
	)
	engine := newTestEngine(&fakeRuleRepo{}, templates, crm, sender)

	result, err := engine.EvaluateRule(context.Background(), rule, Target{ObjectID: "deal-42"}, time.Now())
	require.NoError(t, err)

	assert.True(t, result.Fired)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "Dana moved to closedwon", sender.requests[0].Content)
}

func TestEvaluateAllSkipsRulesWithoutTarget(t *testing.T) {
	crm := &fakeCRM{properties: map[string]string{"dealstage": "closedwon"}}
	sender := &fakeSender{}

	targeted := dealRule(
		[]model.RuleCondition{
			{Type: model.ConditionTypeProperty, Property: "dealstage", Operator: model.OperatorEquals, Value: "closedwon"},
		},
		[]model.RuleAction{
			{
				Type:          model.ActionTypeSendMessage,
				CustomMessage: "fired",
				Recipients:    model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C123"}},
			},
		},
	)
	untargeted := dealRule(nil, nil)
	untargeted.ObjectID = ""

	repo := &fakeRuleRepo{rules: map[uuid.UUID]*model.MessageRule{
		targeted.ID:   targeted,
		untargeted.ID: untargeted,
	}}
	engine := newTestEngine(repo, &fakeTemplateRepo{}, crm, sender)

	err := engine.EvaluateAll(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "fired", sender.requests[0].Content)
}
