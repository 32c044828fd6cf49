package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/internal/service/dispatch"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

// CycleReport summarizes one poll cycle for logging and tests.
type CycleReport struct {
	Due     int
	Claimed int
	Sent    int
	Failed  int
	Skipped int
}

type Config struct {
	BatchSize int
}

// Scheduler drains due scheduled messages through the shared send pipeline.
// Multiple instances may run concurrently; the claim step keeps each message
// with exactly one of them.
type Scheduler struct {
	messages repository.MessageRepository
	sender   dispatch.Sender
	batch    int
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewScheduler(
	messages repository.MessageRepository,
	sender dispatch.Sender,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Scheduler{
		messages: messages,
		sender:   sender,
		batch:    cfg.BatchSize,
		logger:   logger,
		metrics:  metrics,
	}
}

// RunPollCycle processes one batch of due messages. Each message is claimed,
// sent and marked independently; one message's failure never blocks the rest
// of the batch.
func (s *Scheduler) RunPollCycle(ctx context.Context, now time.Time) (*CycleReport, error) {
	timer := prometheus.NewTimer(s.metrics.PollCycleLatency)
	defer timer.ObserveDuration()

	due, err := s.messages.GetDue(ctx, now, s.batch)
	if err != nil {
		return nil, fmt.Errorf("fetching due messages: %w", err)
	}
	s.metrics.DueBacklog.Set(float64(len(due)))

	report := &CycleReport{Due: len(due)}
	if len(due) == 0 {
		return report, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, msg := range due {
		wg.Add(1)
		go func(msg *model.ScheduledMessage) {
			defer wg.Done()
			outcome := s.processMessage(ctx, msg, now)
			mu.Lock()
			switch outcome {
			case outcomeSent:
				report.Claimed++
				report.Sent++
			case outcomeFailed:
				report.Claimed++
				report.Failed++
			case outcomeSkipped:
				report.Skipped++
			}
			mu.Unlock()
		}(msg)
	}
	wg.Wait()

	s.logger.Info("poll cycle complete",
		"due", report.Due,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped)
	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

// processMessage claims, sends and finalizes a single message. A message that
// reaches the claimed state always leaves it as sent or failed, even when the
// send pipeline panics.
func (s *Scheduler) processMessage(ctx context.Context, msg *model.ScheduledMessage, now time.Time) (result outcome) {
	claimed, err := s.messages.ClaimForSending(ctx, msg.ID)
	if err != nil {
		s.logger.Error(err, "claiming message", "message_id", msg.ID.String())
		return outcomeSkipped
	}
	if !claimed {
		s.metrics.ClaimConflicts.Inc()
		return outcomeSkipped
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("%v", r), "send pipeline panicked", "message_id", msg.ID.String())
			s.finalizeFailed(ctx, msg.ID, fmt.Sprintf("internal error: %v", r))
			result = outcomeFailed
		}
	}()

	req := &model.SendMessageRequest{
		WorkspaceID:        msg.WorkspaceID,
		Content:            msg.Content,
		Blocks:             msg.Blocks,
		Recipients:         msg.Recipients,
		Sender:             msg.Sender,
		TemplateID:         msg.TemplateID,
		ScheduledMessageID: &msg.ID,
	}
	if _, err := s.sender.Send(ctx, req, msg.CreatedBy); err != nil {
		s.finalizeFailed(ctx, msg.ID, err.Error())
		return outcomeFailed
	}

	// Recipient-level failures are recorded in history; the message itself
	// completed its run.
	var lastRun *time.Time
	if msg.IsRecurring() {
		lastRun = &now
	}
	if err := s.messages.MarkSent(ctx, msg.ID, lastRun); err != nil {
		s.logger.Error(err, "marking message sent", "message_id", msg.ID.String())
	}
	s.metrics.MessagesProcessed.WithLabelValues(string(model.MessageStatusSent)).Inc()
	return outcomeSent
}

func (s *Scheduler) finalizeFailed(ctx context.Context, id uuid.UUID, reason string) {
	if err := s.messages.MarkFailed(ctx, id, reason); err != nil {
		s.logger.Error(err, "marking message failed", "message_id", id.String())
	}
	s.metrics.MessagesProcessed.WithLabelValues(string(model.MessageStatusFailed)).Inc()
	s.logger.Warn("message failed", "message_id", id.String(), "reason", reason)
}
