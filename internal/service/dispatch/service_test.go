package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/internal/service/credential"
	"github.com/relayops/dispatch-api/internal/service/recipient"
	apperrors "github.com/relayops/dispatch-api/pkg/errors"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("dispatch_test", "send")

type fakeChat struct {
	failChannels map[string]error
	posted       []string
}

func (f *fakeChat) PostMessage(ctx context.Context, token, channel, text string, blocks model.BlockList) (string, error) {
	if err, ok := f.failChannels[channel]; ok {
		return "", err
	}
	f.posted = append(f.posted, channel)
	return "1700000000.000100", nil
}

func (f *fakeChat) LookupUserByEmail(ctx context.Context, token, email string) (string, error) {
	return "", fmt.Errorf("users_not_found")
}

type fakeWorkspaceRepo struct {
	ws *model.Workspace
}

func (f *fakeWorkspaceRepo) Create(ctx context.Context, ws *model.Workspace) error { return nil }
func (f *fakeWorkspaceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Workspace, error) {
	if f.ws == nil {
		return nil, fmt.Errorf("workspace %s not found", id)
	}
	copied := *f.ws
	return &copied, nil
}
func (f *fakeWorkspaceRepo) List(ctx context.Context) ([]*model.Workspace, error) { return nil, nil }
func (f *fakeWorkspaceRepo) Update(ctx context.Context, ws *model.Workspace) error { return nil }

type fakeTokenRepo struct {
	tokens []model.UserToken
}

func (f *fakeTokenRepo) Create(ctx context.Context, token *model.UserToken) error { return nil }
func (f *fakeTokenRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]model.UserToken, error) {
	return f.tokens, nil
}
func (f *fakeTokenRepo) Delete(ctx context.Context, id uuid.UUID) error                  { return nil }
func (f *fakeTokenRepo) UnsetDefaults(ctx context.Context, workspaceID uuid.UUID) error { return nil }

type fakeRecorder struct {
	records []*model.MessageHistory
}

func (f *fakeRecorder) Record(ctx context.Context, record *model.MessageHistory) error {
	f.records = append(f.records, record)
	return nil
}

var _ repository.WorkspaceRepository = (*fakeWorkspaceRepo)(nil)
var _ repository.TokenRepository = (*fakeTokenRepo)(nil)

func newTestService(chat *fakeChat, ws *model.Workspace, recorder *fakeRecorder) *Service {
	lg := logger.NewLogger(nil)
	return NewService(
		&fakeWorkspaceRepo{ws: ws},
		&fakeTokenRepo{},
		credential.NewResolver(),
		recipient.NewResolver(chat, time.Minute, lg, testMetrics),
		NewDispatcher(chat, lg, testMetrics),
		recorder,
		lg,
	)
}

func testWorkspace() *model.Workspace {
	return &model.Workspace{ID: uuid.New(), Name: "acme", BotToken: "xoxb-bot"}
}

func TestSendAllRecipientsSucceed(t *testing.T) {
	chat := &fakeChat{}
	recorder := &fakeRecorder{}
	ws := testWorkspace()
	svc := newTestService(chat, ws, recorder)

	resp, err := svc.Send(context.Background(), &model.SendMessageRequest{
		WorkspaceID: ws.ID,
		Content:     "hello",
		Sender:      model.Sender{Type: model.SenderTypeBot},
		Recipients: model.RecipientList{
			{Type: model.RecipientTypeChannel, ID: "C1"},
			{Type: model.RecipientTypeChannel, ID: "C2"},
		},
	}, "tester")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Results, 2)
	assert.Len(t, recorder.records, 2)
	for _, rec := range recorder.records {
		assert.Equal(t, model.HistoryOutcomeSent, rec.Outcome)
	}
}

func TestSendIsolatesRecipientFailure(t *testing.T) {
	chat := &fakeChat{failChannels: map[string]error{"C2": fmt.Errorf("channel_not_found")}}
	recorder := &fakeRecorder{}
	ws := testWorkspace()
	svc := newTestService(chat, ws, recorder)

	resp, err := svc.Send(context.Background(), &model.SendMessageRequest{
		WorkspaceID: ws.ID,
		Content:     "hello",
		Sender:      model.Sender{Type: model.SenderTypeBot},
		Recipients: model.RecipientList{
			{Type: model.RecipientTypeChannel, ID: "C1"},
			{Type: model.RecipientTypeChannel, ID: "C2"},
			{Type: model.RecipientTypeChannel, ID: "C3"},
		},
	}, "tester")

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Len(t, resp.Results, 3)

	// One history record per recipient whatever the outcome.
	require.Len(t, recorder.records, 3)
	var sent, failed int
	for _, rec := range recorder.records {
		if rec.Outcome == model.HistoryOutcomeSent {
			sent++
		} else {
			failed++
		}
	}
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)

	// The failure at C2 did not stop C3 from being attempted.
	assert.Contains(t, chat.posted, "C3")
}

func TestSendDegradedEmailStillDispatched(t *testing.T) {
	chat := &fakeChat{}
	recorder := &fakeRecorder{}
	ws := testWorkspace()
	svc := newTestService(chat, ws, recorder)

	resp, err := svc.Send(context.Background(), &model.SendMessageRequest{
		WorkspaceID: ws.ID,
		Content:     "hello",
		Sender:      model.Sender{Type: model.SenderTypeBot},
		Recipients: model.RecipientList{
			{Type: model.RecipientTypeEmail, Email: "jane@example.com", Name: "jane"},
		},
	}, "tester")

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"jane"}, chat.posted)
}

func TestSendCredentialFailureAbortsRequest(t *testing.T) {
	chat := &fakeChat{}
	recorder := &fakeRecorder{}
	ws := testWorkspace()
	ws.BotToken = ""
	svc := newTestService(chat, ws, recorder)

	_, err := svc.Send(context.Background(), &model.SendMessageRequest{
		WorkspaceID: ws.ID,
		Content:     "hello",
		Sender:      model.Sender{Type: model.SenderTypeBot},
		Recipients:  model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C1"}},
	}, "tester")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNoCredential))
	// No recipient was attempted, so no history was written.
	assert.Empty(t, recorder.records)
	assert.Empty(t, chat.posted)
}
