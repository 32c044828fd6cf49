package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("dispatch_test", "scheduler")

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*model.ScheduledMessage
}

func newFakeMessageRepo(msgs ...*model.ScheduledMessage) *fakeMessageRepo {
	repo := &fakeMessageRepo{messages: make(map[uuid.UUID]*model.ScheduledMessage)}
	for _, m := range msgs {
		repo.messages[m.ID] = m
	}
	return repo
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *model.ScheduledMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeMessageRepo) Get(ctx context.Context, id uuid.UUID) (*model.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (f *fakeMessageRepo) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, p model.Pagination) ([]*model.ScheduledMessage, error) {
	return nil, nil
}

func (f *fakeMessageRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*model.ScheduledMessage
	for _, msg := range f.messages {
		if msg.Status == model.MessageStatusScheduled && !msg.ScheduledAt.After(now) {
			due = append(due, msg)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (f *fakeMessageRepo) ClaimForSending(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.Status != model.MessageStatusScheduled {
		return false, nil
	}
	msg.Status = model.MessageStatusSending
	return true, nil
}

func (f *fakeMessageRepo) MarkSent(ctx context.Context, id uuid.UUID, lastRunAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id].Status = model.MessageStatusSent
	f.messages[id].LastRunAt = lastRunAt
	return nil
}

func (f *fakeMessageRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id].Status = model.MessageStatusFailed
	f.messages[id].ErrorMessage = &errorMessage
	return nil
}

func (f *fakeMessageRepo) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok || msg.Status != model.MessageStatusScheduled {
		return false, nil
	}
	msg.Status = model.MessageStatusCancelled
	return true, nil
}

func (f *fakeMessageRepo) status(id uuid.UUID) model.MessageStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[id].Status
}

type fakeSender struct {
	mu       sync.Mutex
	requests []*model.SendMessageRequest
	failFor  map[uuid.UUID]error
	panicFor map[uuid.UUID]bool
}

func (f *fakeSender) Send(ctx context.Context, req *model.SendMessageRequest, actor string) (*model.SendMessageResponse, error) {
	if req.ScheduledMessageID != nil {
		if f.panicFor[*req.ScheduledMessageID] {
			panic("slack client blew up")
		}
		if err, ok := f.failFor[*req.ScheduledMessageID]; ok {
			return nil, err
		}
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return &model.SendMessageResponse{Success: true}, nil
}

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func dueMessage(at time.Time) *model.ScheduledMessage {
	return &model.ScheduledMessage{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Content:     "standup reminder",
		Recipients:  model.RecipientList{{Type: model.RecipientTypeChannel, ID: "C123"}},
		Sender:      model.Sender{Type: model.SenderTypeBot},
		ScheduledAt: at,
		Status:      model.MessageStatusScheduled,
		CreatedBy:   "ops@example.com",
	}
}

func newTestScheduler(repo *fakeMessageRepo, sender *fakeSender, batch int) *Scheduler {
	return NewScheduler(repo, sender, Config{BatchSize: batch}, logger.NewLogger(nil), testMetrics)
}

func TestRunPollCycleSendsDueMessages(t *testing.T) {
	now := time.Now()
	msg := dueMessage(now.Add(-time.Minute))
	future := dueMessage(now.Add(time.Hour))
	repo := newFakeMessageRepo(msg, future)
	sender := &fakeSender{}

	report, err := newTestScheduler(repo, sender, 50).RunPollCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Due)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, sender.sent())
	assert.Equal(t, model.MessageStatusSent, repo.status(msg.ID))
	assert.Equal(t, model.MessageStatusScheduled, repo.status(future.ID))
}

func TestRunPollCycleRespectsBatchCap(t *testing.T) {
	now := time.Now()
	repo := newFakeMessageRepo()
	for i := 0; i < 60; i++ {
		msg := dueMessage(now.Add(-time.Minute))
		repo.messages[msg.ID] = msg
	}
	sender := &fakeSender{}

	report, err := newTestScheduler(repo, sender, 50).RunPollCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 50, report.Due)
	assert.Equal(t, 50, sender.sent())
}

func TestRunPollCycleSkipsCancelledMessages(t *testing.T) {
	now := time.Now()
	msg := dueMessage(now.Add(-time.Minute))
	repo := newFakeMessageRepo(msg)
	sender := &fakeSender{}
	sched := newTestScheduler(repo, sender, 50)

	cancelled, err := repo.Cancel(context.Background(), msg.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	report, err := sched.RunPollCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Due)
	assert.Equal(t, 0, sender.sent())
	assert.Equal(t, model.MessageStatusCancelled, repo.status(msg.ID))
}

func TestRunPollCycleSkipsAlreadyClaimed(t *testing.T) {
	now := time.Now()
	msg := dueMessage(now.Add(-time.Minute))
	repo := newFakeMessageRepo(msg)
	sender := &fakeSender{}
	sched := newTestScheduler(repo, sender, 50)

	// Another worker claims the message between GetDue and the claim step.
	due, err := repo.GetDue(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, due, 1)
	msg.Status = model.MessageStatusSending

	report, err := sched.RunPollCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 0, sender.sent())
}

func TestRunPollCycleIsolatesFailures(t *testing.T) {
	now := time.Now()
	good := dueMessage(now.Add(-time.Minute))
	bad := dueMessage(now.Add(-time.Minute))
	repo := newFakeMessageRepo(good, bad)
	sender := &fakeSender{failFor: map[uuid.UUID]error{bad.ID: fmt.Errorf("workspace not found")}}

	report, err := newTestScheduler(repo, sender, 50).RunPollCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, model.MessageStatusSent, repo.status(good.ID))
	assert.Equal(t, model.MessageStatusFailed, repo.status(bad.ID))
	require.NotNil(t, repo.messages[bad.ID].ErrorMessage)
	assert.Equal(t, "workspace not found", *repo.messages[bad.ID].ErrorMessage)
}

func TestRunPollCycleRecoversFromPanic(t *testing.T) {
	now := time.Now()
	msg := dueMessage(now.Add(-time.Minute))
	repo := newFakeMessageRepo(msg)
	sender := &fakeSender{panicFor: map[uuid.UUID]bool{msg.ID: true}}

	report, err := newTestScheduler(repo, sender, 50).RunPollCycle(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, model.MessageStatusFailed, repo.status(msg.ID))
}

func TestRunPollCycleStampsRecurringLastRun(t *testing.T) {
	now := time.Now()
	msg := dueMessage(now.Add(-time.Minute))
	msg.Recurrence = &model.Recurrence{Frequency: "daily"}
	repo := newFakeMessageRepo(msg)
	sender := &fakeSender{}

	_, err := newTestScheduler(repo, sender, 50).RunPollCycle(context.Background(), now)
	require.NoError(t, err)

	require.NotNil(t, repo.messages[msg.ID].LastRunAt)
	assert.True(t, repo.messages[msg.ID].LastRunAt.Equal(now))
}
