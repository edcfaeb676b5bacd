// Package agent drives decision cycles: snapshot reads, decision, execution and persistence.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/events"
	"github.com/vadiminshakov/orbit/internal/services/guard"
)

const (
	cycleLockKey           = "decision-cycle"
	defaultSnapshotTimeout = 20 * time.Second
	defaultCycleTimeout    = 6 * time.Minute
	notifyTimeout          = 15 * time.Second
)

// MarketProvider reads the reference asset quote.
type MarketProvider interface {
	GetMarketSnapshot(ctx context.Context, asset string) (domain.MarketSnapshot, error)
}

// OracleReader reads the price currently published on chain.
type OracleReader interface {
	GetOracleSnapshot(ctx context.Context) (domain.OracleSnapshot, error)
}

// ExposureMonitor reads the treasury balances.
type ExposureMonitor interface {
	GetExposureSnapshot(ctx context.Context, account string) (domain.ExposureSnapshot, error)
}

// Decider maps snapshots to a decision.
type Decider interface {
	Decide(market domain.MarketSnapshot, oracle domain.OracleSnapshot, exposure domain.ExposureSnapshot, cfg domain.StrategyConfig) domain.Decision
}

// Executor carries out a decision.
type Executor interface {
	Execute(ctx context.Context, decision domain.Decision, cfg domain.StrategyConfig) domain.ExecutionResult
	PendingIntents() []domain.ExecutionIntent
}

type cycleStore interface {
	Save(event domain.CycleEvent) (uint64, error)
}

type exposureStore interface {
	Save(record domain.ExposureRecord) error
}

type resultNotifier interface {
	NotifyResult(ctx context.Context, cycleID string, result domain.ExecutionResult) error
}

// Config static agent settings.
type Config struct {
	Pair     domain.Pair
	Strategy domain.StrategyConfig
	// Account treasury address whose balances are monitored.
	Account string
	// Schedule cron spec of autonomous cycles, e.g. "@every 5m".
	Schedule string
	// RunOnStart runs one cycle before waiting for the schedule.
	RunOnStart      bool
	SnapshotTimeout time.Duration
	CycleTimeout    time.Duration
}

// Dependencies collaborators of the agent. Stores, notifier, progress and cooldown are optional.
type Dependencies struct {
	Market    MarketProvider
	Oracle    OracleReader
	Exposure  ExposureMonitor
	Decider   Decider
	Executor  Executor
	Locker    guard.Locker
	Cooldown  *guard.Cooldown
	Cycles    cycleStore
	Exposures exposureStore
	Notifier  resultNotifier
	Progress  *events.Broadcaster
}

// Snapshots the inputs of one decision.
type Snapshots struct {
	Market   domain.MarketSnapshot
	Oracle   domain.OracleSnapshot
	Exposure domain.ExposureSnapshot
	// OracleAvailable is false when the oracle read failed and Oracle is neutral.
	OracleAvailable bool
}

// CycleReport outcome of one cycle.
type CycleReport struct {
	ID        string
	Trigger   domain.CycleTrigger
	StartedAt time.Time
	Snapshots Snapshots
	Decision  domain.Decision
	Result    domain.ExecutionResult
	// Index WAL index of the persisted cycle event, zero when not persisted.
	Index uint64
}

// Agent runs decision cycles. At most one cycle runs at a time.
type Agent struct {
	l    *zap.Logger
	cfg  Config
	deps Dependencies
	now  func() time.Time
}

// NewAgent validates the configuration and creates an agent.
func NewAgent(l *zap.Logger, cfg Config, deps Dependencies) (*Agent, error) {
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid strategy config")
	}
	if deps.Market == nil || deps.Oracle == nil || deps.Exposure == nil {
		return nil, errors.New("market, oracle and exposure readers are required")
	}
	if deps.Decider == nil || deps.Executor == nil {
		return nil, errors.New("decider and executor are required")
	}
	if deps.Locker == nil {
		deps.Locker = guard.NewLocalLocker()
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = defaultSnapshotTimeout
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}

	return &Agent{
		l:    l.With(zap.String("pair", cfg.Pair.String())),
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}, nil
}

// Strategy returns the configured thresholds.
func (a *Agent) Strategy() domain.StrategyConfig {
	return a.cfg.Strategy
}

// RunCycle runs one full decision cycle. It never returns an error: failures are in the report's result.
func (a *Agent) RunCycle(ctx context.Context, trigger domain.CycleTrigger) CycleReport {
	report := CycleReport{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		StartedAt: a.now(),
		Decision:  domain.HoldDecision(),
	}
	l := a.l.With(zap.String("cycle_id", report.ID), zap.String("trigger", string(trigger)))

	unlock, err := a.deps.Locker.Acquire(ctx, cycleLockKey, a.cfg.CycleTimeout)
	if err != nil {
		l.Info("decision cycle skipped", zap.Error(err))
		report.Result = domain.FailedResult(report.Decision, domain.ErrorKindCycleInProgress, err)
		return report
	}
	defer unlock()

	a.publish(report.ID, events.StageStarted, fmt.Sprintf("cycle started by %s", trigger))

	snapshots, err := a.ReadSnapshots(ctx)
	report.Snapshots = snapshots
	if err != nil {
		l.Error("snapshot read failed, cycle aborted", zap.Error(err))
		report.Result = domain.FailedResult(report.Decision, domain.ErrorKindUpstreamDataUnavailable, err)
		a.finish(ctx, l, &report)
		return report
	}
	a.publish(report.ID, events.StageSnapshots, fmt.Sprintf("%s %s (%s%% 24h)",
		snapshots.Market.Asset, snapshots.Market.Price.StringFixed(2), snapshots.Market.Change24h.StringFixed(2)))
	a.persistExposure(l, snapshots)

	report.Decision = a.deps.Decider.Decide(snapshots.Market, snapshots.Oracle, snapshots.Exposure, a.cfg.Strategy)
	l.Info("decision computed",
		zap.Stringer("action", report.Decision.Action),
		zap.Bool("should_rebalance", report.Decision.ShouldRebalance),
		zap.String("reason", report.Decision.Reason))
	a.publish(report.ID, events.StageDecided, decisionMessage(report.Decision))

	if active, remaining := a.deps.Cooldown.Active(report.Decision.Action.String()); report.Decision.ShouldRebalance && active {
		report.Result = domain.NoopResult(report.Decision)
		report.Result.Reason = fmt.Sprintf("cooldown active for %s, %s remaining", report.Decision.Action, remaining.Round(time.Second))
		l.Info("execution skipped", zap.String("reason", report.Result.Reason))
		a.publish(report.ID, events.StageSkipped, report.Result.Reason)
		a.finish(ctx, l, &report)
		return report
	}

	if report.Decision.ShouldRebalance {
		a.publish(report.ID, events.StageOracle, fmt.Sprintf("publishing %s to the oracle", report.Decision.TargetPrice))
	}
	report.Result = a.deps.Executor.Execute(ctx, report.Decision, a.cfg.Strategy)
	if report.Result.Success && report.Decision.ShouldRebalance {
		a.deps.Cooldown.Record(report.Decision.Action.String())
	}

	a.finish(ctx, l, &report)
	return report
}

// ReadSnapshots reads the three cycle inputs concurrently.
// A market or exposure failure is returned as an error; an oracle failure yields a neutral snapshot.
func (a *Agent) ReadSnapshots(ctx context.Context) (Snapshots, error) {
	var snapshots Snapshots

	ctx, cancel := context.WithTimeout(ctx, a.cfg.SnapshotTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		market, err := a.deps.Market.GetMarketSnapshot(gctx, a.cfg.Strategy.BaseAsset)
		if err != nil {
			return errors.Wrap(err, "market snapshot")
		}
		snapshots.Market = market
		return nil
	})
	g.Go(func() error {
		oracle, err := a.deps.Oracle.GetOracleSnapshot(gctx)
		if err != nil {
			a.l.Warn("oracle snapshot unavailable, using neutral snapshot", zap.Error(err))
			return nil
		}
		snapshots.Oracle = oracle
		snapshots.OracleAvailable = true
		return nil
	})
	g.Go(func() error {
		exposure, err := a.deps.Exposure.GetExposureSnapshot(gctx, a.cfg.Account)
		if err != nil {
			return errors.Wrap(err, "exposure snapshot")
		}
		snapshots.Exposure = exposure
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshots, err
	}

	return snapshots, nil
}

// Reconcile logs executions that stopped before reaching a terminal state and returns them.
func (a *Agent) Reconcile() []domain.ExecutionIntent {
	pending := a.deps.Executor.PendingIntents()
	for _, intent := range pending {
		a.l.Warn("unfinished execution found in journal",
			zap.String("intent_id", intent.ID),
			zap.String("status", string(intent.Status)),
			zap.String("action", intent.Action),
			zap.String("oracle_tx", intent.OracleUpdateTxID),
			zap.String("swap_tx", intent.SwapSubmittedTxID),
			zap.Time("updated_at", intent.UpdatedAt))
	}
	return pending
}

func (a *Agent) finish(ctx context.Context, l *zap.Logger, report *CycleReport) {
	result := report.Result
	event := domain.NewCycleEvent(report.ID, report.StartedAt, report.Trigger, a.cfg.Pair, a.cfg.Strategy,
		report.Snapshots.Market, report.Snapshots.Oracle, report.Snapshots.Exposure, result)

	if a.deps.Cycles != nil {
		index, err := a.deps.Cycles.Save(event)
		if err != nil {
			l.Error("failed to persist cycle event", zap.Error(err))
		}
		report.Index = index
	}

	switch {
	case result.Success && result.SwapTxID != "":
		l.Info("rebalance completed", zap.String("oracle_tx", result.OracleUpdateTxID), zap.String("swap_tx", result.SwapTxID))
		a.publish(report.ID, events.StageCompleted, fmt.Sprintf("swap confirmed: %s", result.SwapTxID))
	case result.Success:
		a.publish(report.ID, events.StageCompleted, result.Reason)
	default:
		a.publish(report.ID, events.StageFailed, fmt.Sprintf("%s: %s", result.Error, result.ErrorDetail))
	}

	if a.deps.Notifier != nil {
		// a timed-out cycle still has to reach the operators
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		if err := a.deps.Notifier.NotifyResult(notifyCtx, report.ID, result); err != nil {
			l.Warn("failed to notify operators", zap.Error(err))
		}
	}
}

func (a *Agent) persistExposure(l *zap.Logger, snapshots Snapshots) {
	if a.deps.Exposures == nil {
		return
	}

	record := domain.NewExposureRecord(a.now(), a.cfg.Pair, a.cfg.Account, snapshots.Exposure, snapshots.Market.Price.String())
	if err := a.deps.Exposures.Save(record); err != nil {
		l.Warn("failed to persist exposure snapshot", zap.Error(err))
	}
}

func (a *Agent) publish(cycleID string, stage events.Stage, message string) {
	a.deps.Progress.Publish(events.ProgressEvent{
		CycleID: cycleID,
		Stage:   stage,
		Message: message,
		Time:    a.now(),
	})
}

func decisionMessage(d domain.Decision) string {
	if !d.ShouldRebalance {
		return "hold: within thresholds"
	}
	return fmt.Sprintf("%s: %s", d.Action, d.Reason)
}
