package history

import (
	"context"
	"fmt"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/messaging"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

// Recorder appends one immutable record per delivery attempt. There is no
// read-modify path: dashboards consume the broker feed or query the store.
type Recorder interface {
	Record(ctx context.Context, record *model.MessageHistory) error
}

type Service struct {
	repo    repository.HistoryRepository
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.HistoryRepository, broker messaging.Broker, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		broker:  broker,
		logger:  logger,
		metrics: m,
	}
}

func (s *Service) Record(ctx context.Context, record *model.MessageHistory) error {
	if err := s.repo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	s.metrics.HistoryRecordsTotal.Inc()

	// Broker publish is best effort; the durable append above is the source
	// of truth.
	if s.broker != nil {
		if err := s.broker.Publish(ctx, messaging.ChannelHistory, record); err != nil {
			s.logger.Warn("failed to publish history event",
				"record_id", record.ID.String(), "error", err.Error())
		}
	}
	return nil
}
