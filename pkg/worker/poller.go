package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relayops/dispatch-api/pkg/logger"
)

// CycleFunc runs one poll cycle at the given wall-clock time. The poller owns
// the clock so cycles stay testable without timer mocking.
type CycleFunc func(ctx context.Context, now time.Time) error

type PollerConfig struct {
	// Spec is a cron expression; "* * * * *" fires once per minute.
	Spec string
}

// Poller drives a CycleFunc on a fixed wall-clock schedule.
type Poller struct {
	cron   *cron.Cron
	spec   string
	fn     CycleFunc
	logger *logger.Logger
}

func NewPoller(config PollerConfig, fn CycleFunc, logger *logger.Logger) *Poller {
	if config.Spec == "" {
		panic("poller cron spec must not be empty")
	}
	return &Poller{
		cron:   cron.New(),
		spec:   config.Spec,
		fn:     fn,
		logger: logger,
	}
}

// Start registers the cycle and blocks until ctx is cancelled.
func (p *Poller) Start(ctx context.Context) error {
	_, err := p.cron.AddFunc(p.spec, func() {
		if err := p.fn(ctx, time.Now().UTC()); err != nil {
			p.logger.Error(err, "poll cycle failed")
		}
	})
	if err != nil {
		return err
	}

	p.logger.Info("starting poller", "spec", p.spec)
	p.cron.Start()

	<-ctx.Done()
	p.logger.Info("shutting down poller")

	// Let an in-flight cycle finish before returning.
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	return nil
}
