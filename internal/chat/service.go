package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/agent"
	"github.com/vadiminshakov/orbit/internal/clients"
	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/services/oracle"
	"github.com/vadiminshakov/orbit/internal/services/promptbuilder"
	"github.com/vadiminshakov/orbit/internal/services/treasury"
)

const (
	oracleMaxAgeSeconds = 3600
	askTimeout          = 45 * time.Second
	noNarratorReply     = "I can answer: rebalance, status, portfolio, price, oracle, rwa, strategy, deposit <amount>."
)

type cycleRunner interface {
	RunCycle(ctx context.Context, trigger domain.CycleTrigger) agent.CycleReport
	Strategy() domain.StrategyConfig
}

type vaultReader interface {
	Stats(ctx context.Context) (treasury.Stats, error)
}

type treasuryPricer interface {
	GetTreasuryPrices(ctx context.Context) (oracle.TreasuryPrices, error)
}

type cycleHistory interface {
	Latest(n int) ([]domain.CycleEventRecord, error)
}

// Dependencies collaborators of the chat service. Treasury, Vault, History and LLM are optional.
type Dependencies struct {
	Runner   cycleRunner
	Market   agent.MarketProvider
	Oracle   agent.OracleReader
	Treasury treasuryPricer
	Exposure agent.ExposureMonitor
	Vault    vaultReader
	History  cycleHistory
	LLM      clients.LLMClient
}

// Reply answer to one chat message.
type Reply struct {
	Intent Intent                  `json:"intent"`
	Text   string                  `json:"text"`
	Cycle  *domain.ExecutionResult `json:"cycle,omitempty"`
}

// Service answers operator chat messages.
type Service struct {
	l       *zap.Logger
	deps    Dependencies
	account string
	prompts *promptbuilder.PromptBuilder
	now     func() time.Time
}

// NewService creates a chat service for the treasury account.
func NewService(l *zap.Logger, account string, deps Dependencies) *Service {
	return &Service{
		l:       l,
		deps:    deps,
		account: account,
		prompts: promptbuilder.NewPromptBuilder(deps.Runner.Strategy(), l),
		now:     time.Now,
	}
}

// Handle routes a message and renders the answer. Upstream failures are reported in the text.
func (s *Service) Handle(ctx context.Context, text string) (Reply, error) {
	cmd := ParseCommand(text)
	if cmd.Text == "" {
		return Reply{}, errors.New("empty message")
	}

	s.l.Debug("chat message", zap.String("intent", string(cmd.Intent)))
	reply := Reply{Intent: cmd.Intent}
	cfg := s.deps.Runner.Strategy()

	switch cmd.Intent {
	case IntentRebalance:
		report := s.deps.Runner.RunCycle(ctx, domain.CycleTriggerChat)
		reply.Text = RenderCycle(report)
		reply.Cycle = &report.Result

	case IntentPrice:
		market, err := s.deps.Market.GetMarketSnapshot(ctx, cfg.BaseAsset)
		if err != nil {
			reply.Text = unavailable("market data", err, s.l)
			break
		}
		reply.Text = RenderMarket(market)

	case IntentOracle:
		oracle, err := s.deps.Oracle.GetOracleSnapshot(ctx)
		if err != nil {
			reply.Text = unavailable("the oracle", err, s.l)
			break
		}
		reply.Text = RenderOracle(oracle, oracleMaxAgeSeconds)

	case IntentRWA:
		if s.deps.Treasury == nil {
			reply.Text = "The treasury oracle is not configured."
			break
		}
		// a failed read still carries fallback prices
		prices, err := s.deps.Treasury.GetTreasuryPrices(ctx)
		if err != nil {
			s.l.Warn("chat read failed", zap.String("source", "treasury oracle"), zap.Error(err))
		}
		reply.Text = RenderTreasuryPrices(prices)

	case IntentPortfolio:
		exposure, err := s.deps.Exposure.GetExposureSnapshot(ctx, s.account)
		if err != nil {
			reply.Text = unavailable("treasury balances", err, s.l)
			break
		}
		reply.Text = RenderPortfolio(exposure, cfg)

	case IntentStatus:
		if s.deps.Vault == nil {
			reply.Text = "Vault statistics are not configured."
			break
		}
		stats, err := s.deps.Vault.Stats(ctx)
		if err != nil {
			reply.Text = unavailable("the vault", err, s.l)
			break
		}
		reply.Text = RenderVault(stats)

	case IntentStrategy:
		reply.Text = RenderStrategy(cfg)

	case IntentDeposit:
		var stats treasury.Stats
		if s.deps.Vault != nil {
			var err error
			if stats, err = s.deps.Vault.Stats(ctx); err != nil {
				s.l.Warn("vault stats unavailable, previewing with defaults", zap.Error(err))
			}
		}
		preview, err := treasury.PreviewDeposit(cmd.Amount, stats)
		if err != nil {
			reply.Text = "Please specify a positive deposit amount, e.g. \"deposit 1000\"."
			break
		}
		reply.Text = RenderDeposit(preview)

	default:
		reply.Text = s.ask(ctx, cmd.Text)
	}

	return reply, nil
}

func (s *Service) ask(ctx context.Context, question string) string {
	if s.deps.LLM == nil {
		return noNarratorReply
	}

	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	prompt := s.prompts.BuildUserPrompt(question, s.gatherContext(ctx))
	answer, err := s.deps.LLM.Complete(ctx, promptbuilder.SystemPrompt, prompt)
	if err != nil {
		s.l.Warn("narrator request failed", zap.Error(err))
		return noNarratorReply
	}

	return answer
}

// gatherContext collects whatever state is readable now; failed reads are left nil.
func (s *Service) gatherContext(ctx context.Context) promptbuilder.TreasuryContext {
	tc := promptbuilder.TreasuryContext{Now: s.now()}
	cfg := s.deps.Runner.Strategy()

	if market, err := s.deps.Market.GetMarketSnapshot(ctx, cfg.BaseAsset); err == nil {
		tc.Market = &market
	}
	if oracle, err := s.deps.Oracle.GetOracleSnapshot(ctx); err == nil {
		tc.Oracle = &oracle
	}
	if exposure, err := s.deps.Exposure.GetExposureSnapshot(ctx, s.account); err == nil {
		tc.Exposure = &exposure
	}
	if s.deps.Vault != nil {
		if stats, err := s.deps.Vault.Stats(ctx); err == nil {
			tc.Vault = &stats
		}
	}
	if s.deps.History != nil {
		if records, err := s.deps.History.Latest(1); err == nil && len(records) > 0 {
			last := records[len(records)-1].Event
			tc.LastCycle = &last
		}
	}

	return tc
}

func unavailable(what string, err error, l *zap.Logger) string {
	l.Warn("chat read failed", zap.String("source", what), zap.Error(err))
	return "Could not read " + what + " right now. Try again shortly."
}
