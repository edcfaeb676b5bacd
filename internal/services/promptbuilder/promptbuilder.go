// Package promptbuilder formats treasury state into compact prompts for the narrator LLM.
package promptbuilder

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/services/treasury"
)

// PromptBuilder constructs prompts for the LLM
type PromptBuilder struct {
	cfg    domain.StrategyConfig
	logger *zap.Logger
}

// NewPromptBuilder creates a new PromptBuilder instance
func NewPromptBuilder(cfg domain.StrategyConfig, logger *zap.Logger) *PromptBuilder {
	return &PromptBuilder{
		cfg:    cfg,
		logger: logger,
	}
}

// TreasuryContext contains the data an answer may draw on. Nil fields were unavailable.
type TreasuryContext struct {
	Market    *domain.MarketSnapshot
	Oracle    *domain.OracleSnapshot
	Exposure  *domain.ExposureSnapshot
	Vault     *treasury.Stats
	LastCycle *domain.CycleEvent
	Now       time.Time
}

// BuildUserPrompt constructs the user prompt for an operator question.
func (pb *PromptBuilder) BuildUserPrompt(question string, ctx TreasuryContext) string {
	var sb strings.Builder

	sb.WriteString("# Treasury state\n\n")
	sb.WriteString(pb.formatStrategy())
	sb.WriteString(formatMarket(ctx.Market))
	sb.WriteString(formatOracle(ctx.Oracle))
	sb.WriteString(formatExposure(ctx.Exposure))
	sb.WriteString(formatVault(ctx.Vault))
	sb.WriteString(formatLastCycle(ctx.LastCycle, ctx.Now))

	sb.WriteString("# Operator question\n\n")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n")

	prompt := sb.String()
	pb.logger.Debug("built narrator prompt", zap.Int("length", len(prompt)))

	return prompt
}

func (pb *PromptBuilder) formatStrategy() string {
	var sb strings.Builder
	sb.WriteString("## Strategy\n")
	sb.WriteString(fmt.Sprintf("- Reference asset: %s\n", pb.cfg.BaseAsset))
	sb.WriteString(fmt.Sprintf("- Assets: A=%s B=%s\n", pb.cfg.AssetA, pb.cfg.AssetB))
	sb.WriteString(fmt.Sprintf("- Drop threshold: %s%%\n", pb.cfg.PriceDropThreshold))
	sb.WriteString(fmt.Sprintf("- Rise threshold: %s%%\n", pb.cfg.PriceRiseThreshold))
	sb.WriteString(fmt.Sprintf("- Max exposure: %s%%\n", pb.cfg.MaxExposurePercent))
	sb.WriteString(fmt.Sprintf("- Target balance: %s%%\n", pb.cfg.TargetBalancePercent))
	sb.WriteString(fmt.Sprintf("- Trade size: %s\n\n", pb.cfg.TradeSize))
	return sb.String()
}

func formatMarket(m *domain.MarketSnapshot) string {
	if m == nil {
		return "## Market\nunavailable\n\n"
	}
	return fmt.Sprintf("## Market\n- %s price: $%s\n- 24h change: %s%%\n\n",
		m.Asset, m.Price.StringFixed(2), m.Change24h.StringFixed(2))
}

func formatOracle(o *domain.OracleSnapshot) string {
	if o == nil || o.Price.IsZero() {
		return "## Oracle\nunavailable\n\n"
	}
	return fmt.Sprintf("## Oracle\n- Price: $%s\n- Published: %s\n- Staleness: %ss\n\n",
		o.Price.StringFixed(2), o.PublishedAt.UTC().Format(time.RFC3339), o.StalenessSeconds)
}

func formatExposure(e *domain.ExposureSnapshot) string {
	if e == nil {
		return "## Exposure\nunavailable\n\n"
	}

	var sb strings.Builder
	sb.WriteString("## Exposure\n")
	for _, symbol := range e.Symbols() {
		sb.WriteString(fmt.Sprintf("- %s: %s (%s%%)\n",
			symbol, e.Balances[symbol].StringFixed(4), e.Exposure(symbol).StringFixed(1)))
	}
	sb.WriteString(fmt.Sprintf("- Total: %s\n\n", e.TotalValue.StringFixed(4)))
	return sb.String()
}

func formatVault(v *treasury.Stats) string {
	if v == nil {
		return "## Vault\nunavailable\n\n"
	}
	return fmt.Sprintf("## Vault\n- TVL: $%s\n- Share price: $%s\n- APY: %s%%\n- Yield earned: $%s\n\n",
		v.TVL.StringFixed(2), v.SharePrice.StringFixed(4), v.APYPercent.StringFixed(2), v.YieldEarned.StringFixed(2))
}

func formatLastCycle(c *domain.CycleEvent, now time.Time) string {
	if c == nil {
		return "## Last cycle\nnone recorded\n\n"
	}

	var sb strings.Builder
	sb.WriteString("## Last cycle\n")
	if !now.IsZero() {
		sb.WriteString(fmt.Sprintf("- When: %s ago\n", formatDuration(now.Sub(c.Timestamp))))
	}
	sb.WriteString(fmt.Sprintf("- Action: %s\n", c.Action))
	if c.Reason != "" {
		sb.WriteString(fmt.Sprintf("- Reason: %s\n", c.Reason))
	}
	if c.TargetPrice != "" && !isZeroString(c.TargetPrice) {
		sb.WriteString(fmt.Sprintf("- Target price: $%s\n", c.TargetPrice))
	}
	sb.WriteString(fmt.Sprintf("- Success: %t\n", c.Success))
	if c.OracleUpdateTxID != "" {
		sb.WriteString(fmt.Sprintf("- Oracle tx: %s\n", c.OracleUpdateTxID))
	}
	if c.SwapTxID != "" {
		sb.WriteString(fmt.Sprintf("- Swap tx: %s\n", c.SwapTxID))
	}
	if c.Error != "" {
		sb.WriteString(fmt.Sprintf("- Error: %s\n", c.Error))
	}
	sb.WriteString("\n")
	return sb.String()
}

func isZeroString(raw string) bool {
	d, err := decimal.NewFromString(raw)
	return err == nil && d.IsZero()
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
