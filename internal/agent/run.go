package agent

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// Run reconciles unfinished executions, then runs scheduled cycles until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	if a.cfg.Schedule == "" {
		return errors.New("schedule is required")
	}

	if pending := a.Reconcile(); len(pending) > 0 {
		a.l.Warn("resolve unfinished executions manually before relying on oracle prices", zap.Int("count", len(pending)))
	}

	logger := cronLogger{s: a.l.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(a.cfg.Schedule, func() { a.scheduledCycle(ctx) }); err != nil {
		return errors.Wrapf(err, "invalid schedule %q", a.cfg.Schedule)
	}

	a.l.Info("starting decision loop", zap.String("schedule", a.cfg.Schedule))

	if a.cfg.RunOnStart {
		a.scheduledCycle(ctx)
	}

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	a.l.Info("decision loop stopped")

	return ctx.Err()
}

func (a *Agent) scheduledCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cycleCtx, cancel := context.WithTimeout(ctx, a.cfg.CycleTimeout)
	defer cancel()

	report := a.RunCycle(cycleCtx, domain.CycleTriggerSchedule)
	if !report.Result.Success {
		a.l.Warn("scheduled cycle did not complete",
			zap.String("cycle_id", report.ID),
			zap.Stringer("error", report.Result.Error))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.s.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
