package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/internal/service/credential"
	"github.com/relayops/dispatch-api/internal/service/history"
	"github.com/relayops/dispatch-api/internal/service/recipient"
	"github.com/relayops/dispatch-api/pkg/logger"
)

// Sender is the send pipeline entry point shared by the HTTP surface, the
// scheduler and the rule engine.
type Sender interface {
	Send(ctx context.Context, req *model.SendMessageRequest, actor string) (*model.SendMessageResponse, error)
}

type Service struct {
	workspaces  repository.WorkspaceRepository
	tokens      repository.TokenRepository
	credentials *credential.Resolver
	recipients  *recipient.Resolver
	dispatcher  *Dispatcher
	recorder    history.Recorder
	logger      *logger.Logger
}

func NewService(
	workspaces repository.WorkspaceRepository,
	tokens repository.TokenRepository,
	credentials *credential.Resolver,
	recipients *recipient.Resolver,
	dispatcher *Dispatcher,
	recorder history.Recorder,
	logger *logger.Logger,
) *Service {
	return &Service{
		workspaces:  workspaces,
		tokens:      tokens,
		credentials: credentials,
		recipients:  recipients,
		dispatcher:  dispatcher,
		recorder:    recorder,
		logger:      logger,
	}
}

// Send resolves the workspace credential once, then processes every
// recipient as an independent unit of work. Resolution failures abort the
// whole request; recipient failures only mark their own result.
func (s *Service) Send(ctx context.Context, req *model.SendMessageRequest, actor string) (*model.SendMessageResponse, error) {
	if len(req.Recipients) == 0 {
		return nil, fmt.Errorf("send request has no recipients")
	}

	ws, err := s.workspaces.Get(ctx, req.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	tokens, err := s.tokens.ListByWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace tokens: %w", err)
	}
	ws.UserTokens = tokens

	token, err := s.credentials.Resolve(ws, req.Sender)
	if err != nil {
		return nil, err
	}

	resp := &model.SendMessageResponse{Success: true}
	for _, rcpt := range req.Recipients {
		result := s.sendToRecipient(ctx, token, rcpt, req, actor)
		if !result.Success {
			resp.Success = false
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (s *Service) sendToRecipient(ctx context.Context, token string, rcpt model.Recipient, req *model.SendMessageRequest, actor string) model.RecipientResult {
	result := model.RecipientResult{Recipient: rcpt}

	channel, err := s.recipients.Resolve(ctx, token, rcpt)
	if err == nil {
		result.Channel = channel
		var ts string
		ts, err = s.dispatcher.Dispatch(ctx, token, channel, req.Content, req.Blocks)
		result.Timestamp = ts
	}

	record := &model.MessageHistory{
		WorkspaceID:        req.WorkspaceID,
		ScheduledMessageID: req.ScheduledMessageID,
		TemplateID:         req.TemplateID,
		RuleID:             req.RuleID,
		Recipient:          model.RecipientJSON(rcpt),
		Sender:             req.Sender,
		Content:            req.Content,
		Blocks:             req.Blocks,
		SentBy:             actor,
		SentAt:             time.Now(),
	}

	if err != nil {
		msg := err.Error()
		result.Success = false
		result.ErrorMessage = msg
		record.Outcome = model.HistoryOutcomeFailed
		record.ErrorMessage = &msg
		s.logger.Warn("dispatch failed",
			"workspace_id", req.WorkspaceID.String(),
			"channel", result.Channel,
			"error", msg)
	} else {
		result.Success = true
		record.Outcome = model.HistoryOutcomeSent
	}

	// One history record per attempt, success or failure. A recording
	// failure must not flip an otherwise delivered message into an error.
	if recErr := s.recorder.Record(ctx, record); recErr != nil {
		s.logger.Error(recErr, "failed to record message history",
			"workspace_id", req.WorkspaceID.String())
	}
	return result
}
