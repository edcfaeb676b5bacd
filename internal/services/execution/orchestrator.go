// Package execution runs the two-phase oracle update and swap protocol.
package execution

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
)

const defaultPhaseTimeout = 2 * time.Minute

// OracleUpdater publishes a price to the on-chain oracle.
type OracleUpdater interface {
	SubmitOracleUpdate(ctx context.Context, price *big.Int, timestampNs uint64) (string, error)
	AwaitConfirmation(ctx context.Context, txID string) (domain.Receipt, error)
}

// SwapExecutor submits swaps against the configured pool.
type SwapExecutor interface {
	SubmitSwap(ctx context.Context, key domain.PoolKey, params domain.SwapParams) (string, error)
	AwaitConfirmation(ctx context.Context, txID string) (domain.Receipt, error)
}

type journal interface {
	Save(intent domain.ExecutionIntent) error
	Pending() []domain.ExecutionIntent
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithJournal records every state transition in j.
func WithJournal(j journal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

// WithPhaseTimeout bounds each phase (submission plus confirmation).
func WithPhaseTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.phaseTimeout = d
		}
	}
}

// WithClock overrides the wall clock used for oracle timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator executes rebalancing decisions. Phases always run sequentially and are never retried.
type Orchestrator struct {
	l            *zap.Logger
	oracle       OracleUpdater
	swapper      SwapExecutor
	poolKey      domain.PoolKey
	journal      journal
	phaseTimeout time.Duration
	now          func() time.Time
}

// NewOrchestrator creates an orchestrator swapping against poolKey.
func NewOrchestrator(
	l *zap.Logger,
	oracle OracleUpdater,
	swapper SwapExecutor,
	poolKey domain.PoolKey,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		l:            l,
		oracle:       oracle,
		swapper:      swapper,
		poolKey:      poolKey,
		phaseTimeout: defaultPhaseTimeout,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Execute runs the oracle update and, only once it is confirmed, the swap.
// Errors never escape: they are reported through the result's Error kind.
// A failure after the oracle update confirmed keeps OracleUpdateTxID in the result.
func (o *Orchestrator) Execute(ctx context.Context, decision domain.Decision, cfg domain.StrategyConfig) domain.ExecutionResult {
	if !decision.ShouldRebalance {
		return domain.NoopResult(decision)
	}

	now := o.now()
	intent := &domain.ExecutionIntent{
		ID:          uuid.New().String(),
		Action:      decision.Action.String(),
		TargetPrice: decision.TargetPrice.String(),
		TradeSize:   cfg.TradeSize.String(),
		CreatedAt:   now,
	}
	l := o.l.With(zap.String("intent_id", intent.ID), zap.String("action", intent.Action))

	// phase 1: oracle update
	o.transition(l, intent, domain.IntentPhase1Pending, nil)

	oracleTx, err := o.updateOracle(ctx, decision, now)
	if oracleTx != "" {
		intent.OracleUpdateTxID = oracleTx
	}
	if err != nil {
		o.transition(l, intent, domain.IntentPhase1Failed, err)
		l.Error("oracle update failed, swap skipped", zap.Error(err), zap.String("tx", oracleTx))

		return domain.FailedResult(decision, domain.ErrorKindOracleUpdateFailed, err)
	}
	o.transition(l, intent, domain.IntentPhase1Confirmed, nil)
	l.Info("oracle update confirmed", zap.String("tx", oracleTx))

	// phase 2: swap
	o.transition(l, intent, domain.IntentPhase2Pending, nil)

	swapTx, err := o.swap(ctx, cfg, func(submitted string) {
		intent.SwapSubmittedTxID = submitted
		o.transition(l, intent, domain.IntentPhase2Pending, nil)
	})
	if err != nil {
		status := domain.IntentPhase2Failed
		if intent.SwapSubmittedTxID != "" && interrupted(err) {
			// the swap may still be mined, leave it for start-up reconciliation
			status = domain.IntentPhase2Unknown
		}
		o.transition(l, intent, status, err)
		l.Error("swap failed after oracle update",
			zap.Error(err),
			zap.String("oracle_tx", oracleTx),
			zap.String("swap_tx", intent.SwapSubmittedTxID),
			zap.String("status", string(status)))

		result := domain.FailedResult(decision, domain.ErrorKindSwapFailed, err)
		result.OracleUpdateTxID = oracleTx

		return result
	}

	intent.SwapTxID = swapTx
	o.transition(l, intent, domain.IntentPhase2Confirmed, nil)
	l.Info("swap confirmed", zap.String("tx", swapTx))

	return domain.ExecutionResult{
		Success:          true,
		OracleUpdateTxID: oracleTx,
		SwapTxID:         swapTx,
		Decision:         decision,
	}
}

// PendingIntents returns journaled executions that never reached a terminal state,
// e.g. because the process stopped between the oracle update and the swap.
func (o *Orchestrator) PendingIntents() []domain.ExecutionIntent {
	if o.journal == nil {
		return nil
	}

	return o.journal.Pending()
}

func (o *Orchestrator) updateOracle(ctx context.Context, decision domain.Decision, now time.Time) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.phaseTimeout)
	defer cancel()

	price := domain.ToOracleFixed(decision.TargetPrice)
	txID, err := o.oracle.SubmitOracleUpdate(ctx, price, domain.OracleTimestampNs(now))
	if err != nil {
		return "", errors.Wrap(err, "submit oracle update")
	}

	if _, err := o.oracle.AwaitConfirmation(ctx, txID); err != nil {
		return txID, errors.Wrapf(err, "await oracle update %s", txID)
	}

	return txID, nil
}

func (o *Orchestrator) swap(ctx context.Context, cfg domain.StrategyConfig, onSubmitted func(string)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.phaseTimeout)
	defer cancel()

	txID, err := o.swapper.SubmitSwap(ctx, o.poolKey, domain.NewExactInputSwap(cfg.TradeSize))
	if err != nil {
		return "", errors.Wrap(err, "submit swap")
	}
	onSubmitted(txID)

	if _, err := o.swapper.AwaitConfirmation(ctx, txID); err != nil {
		return "", errors.Wrapf(err, "await swap %s", txID)
	}

	return txID, nil
}

// interrupted reports whether err came from cancellation or a timeout rather than a mined result.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (o *Orchestrator) transition(l *zap.Logger, intent *domain.ExecutionIntent, status domain.IntentStatus, cause error) {
	intent.Status = status
	intent.UpdatedAt = o.now()
	if cause != nil {
		intent.Error = cause.Error()
	}

	if o.journal == nil {
		return
	}
	if err := o.journal.Save(*intent); err != nil {
		l.Warn("failed to journal execution intent", zap.Error(err), zap.String("status", string(status)))
	}
}
