package dispatch

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/platform/slack"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

// Dispatcher performs exactly one provider call per recipient. It holds no
// retry logic: scheduled sends get another chance on a later poll cycle,
// ad-hoc sends report the failure to the caller.
type Dispatcher struct {
	chat    slack.Chat
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(chat slack.Chat, logger *logger.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{chat: chat, logger: logger, metrics: m}
}

// Dispatch sends the rendered text to one resolved channel and returns the
// provider timestamp.
func (d *Dispatcher) Dispatch(ctx context.Context, token, channel, text string, blocks model.BlockList) (string, error) {
	timer := prometheus.NewTimer(d.metrics.DispatchLatency)
	defer timer.ObserveDuration()

	ts, err := d.chat.PostMessage(ctx, token, channel, text, blocks)
	if err != nil {
		d.metrics.DispatchesTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	d.metrics.DispatchesTotal.WithLabelValues("sent").Inc()
	return ts, nil
}
