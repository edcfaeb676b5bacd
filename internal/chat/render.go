package chat

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/orbit/internal/agent"
	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/services/oracle"
	"github.com/vadiminshakov/orbit/internal/services/treasury"
)

// RenderCycle describes a cycle outcome. Success is claimed only when the swap confirmed.
func RenderCycle(report agent.CycleReport) string {
	result := report.Result
	d := report.Decision

	switch result.Error {
	case domain.ErrorKindCycleInProgress:
		return "A rebalancing cycle is already running. Try again in a moment."
	case domain.ErrorKindUpstreamDataUnavailable:
		return fmt.Sprintf("Could not read market or treasury data, no action was taken.\nDetail: %s", result.ErrorDetail)
	}

	var sb strings.Builder
	sb.WriteString(renderAnalysis(report.Snapshots))

	switch {
	case result.Error == domain.ErrorKindOracleUpdateFailed:
		sb.WriteString(fmt.Sprintf("Decision: %s (%s)\n", d.Action, d.Reason))
		sb.WriteString("Phase 1 (oracle update) failed, no swap was attempted.\n")
		sb.WriteString(fmt.Sprintf("Detail: %s\n", result.ErrorDetail))
	case result.Error == domain.ErrorKindSwapFailed:
		sb.WriteString(fmt.Sprintf("Decision: %s (%s)\n", d.Action, d.Reason))
		sb.WriteString("Phase 2 (swap) failed. The oracle price was already updated on chain.\n")
		sb.WriteString(fmt.Sprintf("Oracle tx: %s\n", result.OracleUpdateTxID))
		sb.WriteString(fmt.Sprintf("Detail: %s\n", result.ErrorDetail))
	case !d.ShouldRebalance:
		sb.WriteString("Portfolio analysis complete, no rebalancing needed (within thresholds).\n")
	case result.SwapTxID == "":
		sb.WriteString(fmt.Sprintf("Decision: %s (%s)\n", d.Action, d.Reason))
		sb.WriteString(fmt.Sprintf("Execution skipped: %s\n", result.Reason))
	default:
		sb.WriteString(fmt.Sprintf("Decision: %s (%s)\n", d.Action, d.Reason))
		sb.WriteString(fmt.Sprintf("Target price: $%s\n", d.TargetPrice.StringFixed(2)))
		sb.WriteString("Rebalancing executed.\n")
		sb.WriteString(fmt.Sprintf("Oracle tx: %s\n", result.OracleUpdateTxID))
		sb.WriteString(fmt.Sprintf("Swap tx: %s\n", result.SwapTxID))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func renderAnalysis(s agent.Snapshots) string {
	var sb strings.Builder
	sb.WriteString("Market analysis:\n")
	sb.WriteString(fmt.Sprintf("- %s: $%s (%s%% 24h)\n", s.Market.Asset, s.Market.Price.StringFixed(2), s.Market.Change24h.StringFixed(2)))
	if s.OracleAvailable {
		sb.WriteString(fmt.Sprintf("- Oracle: $%s (%ss old)\n", s.Oracle.Price.StringFixed(2), s.Oracle.StalenessSeconds))
	} else {
		sb.WriteString("- Oracle: unavailable\n")
	}
	for _, symbol := range s.Exposure.Symbols() {
		sb.WriteString(fmt.Sprintf("- %s exposure: %s%%\n", symbol, s.Exposure.Exposure(symbol).StringFixed(1)))
	}
	sb.WriteString("\n")
	return sb.String()
}

// RenderMarket describes a market quote.
func RenderMarket(m domain.MarketSnapshot) string {
	return fmt.Sprintf("%s is trading at $%s, %s%% over 24h.", m.Asset, m.Price.StringFixed(2), m.Change24h.StringFixed(2))
}

// RenderOracle describes the published oracle price.
func RenderOracle(o domain.OracleSnapshot, maxAgeSeconds int64) string {
	text := fmt.Sprintf("Oracle price: $%s, published %s (%ss ago).",
		o.Price.StringFixed(2), o.PublishedAt.UTC().Format("2006-01-02 15:04:05 MST"), o.StalenessSeconds)
	if o.StalenessSeconds.IntPart() > maxAgeSeconds {
		text += " The price is stale."
	}
	return text
}

// RenderTreasuryPrices lists the RWA asset quotes of the treasury oracle.
func RenderTreasuryPrices(p oracle.TreasuryPrices) string {
	var sb strings.Builder
	switch p.Source {
	case oracle.TreasurySourceDefault:
		sb.WriteString("Treasury oracle is not deployed yet, showing default RWA prices:\n")
	case oracle.TreasurySourceFallback:
		sb.WriteString("Could not read the treasury oracle, showing fallback RWA prices:\n")
	default:
		sb.WriteString("Treasury oracle RWA prices:\n")
	}

	for _, a := range p.Assets {
		places := int32(4)
		if a.Price.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			places = 2
		}
		line := fmt.Sprintf("- %s: $%s", a.Symbol, a.Price.StringFixed(places))
		if p.Source == oracle.TreasurySourceOracle {
			line += fmt.Sprintf(" (%s%% 24h)", signed(a.Change24h))
		}
		if a.YieldBearing {
			line += fmt.Sprintf(", %s%% APY", a.APYPercent.StringFixed(2))
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString(fmt.Sprintf("Average RWA yield: %s%% APY", p.AverageYield().StringFixed(2)))
	if p.Source == oracle.TreasurySourceOracle {
		sb.WriteString(fmt.Sprintf("\nOracle: %s", p.Oracle.Hex()))
	}

	return sb.String()
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// RenderPortfolio lists balances and exposure.
func RenderPortfolio(e domain.ExposureSnapshot, cfg domain.StrategyConfig) string {
	var sb strings.Builder
	sb.WriteString("Portfolio:\n")
	for _, symbol := range e.Symbols() {
		sb.WriteString(fmt.Sprintf("- %s: %s (%s%%)\n", symbol, e.Balances[symbol].StringFixed(4), e.Exposure(symbol).StringFixed(1)))
	}
	sb.WriteString(fmt.Sprintf("Total: %s\n", e.TotalValue.StringFixed(4)))
	sb.WriteString(fmt.Sprintf("Max exposure per asset: %s%%", cfg.MaxExposurePercent))
	return sb.String()
}

// RenderVault describes vault statistics.
func RenderVault(s treasury.Stats) string {
	return fmt.Sprintf("Treasury status:\n- TVL: $%s\n- Share price: $%s\n- APY: %s%%\n- Yield earned: $%s",
		s.TVL.StringFixed(2), s.SharePrice.StringFixed(4), s.APYPercent.StringFixed(2), s.YieldEarned.StringFixed(2))
}

// RenderStrategy explains the rule table with the configured thresholds.
func RenderStrategy(cfg domain.StrategyConfig) string {
	return fmt.Sprintf("Strategy:\n"+
		"- Buy %[1]s when it drops %[2]s%% or more in 24h.\n"+
		"- Sell %[1]s when it rises %[3]s%% or more in 24h.\n"+
		"- Rebalance when %[4]s or %[5]s exceeds %[6]s%% of the treasury, target %[7]s%%.\n"+
		"- Exposure rules take priority over price rules.\n"+
		"- Each rebalance updates the oracle first, then swaps %[8]s.",
		cfg.BaseAsset, cfg.PriceDropThreshold.Abs(), cfg.PriceRiseThreshold,
		cfg.AssetA, cfg.AssetB, cfg.MaxExposurePercent, cfg.TargetBalancePercent, cfg.TradeSize)
}

// RenderDeposit describes a deposit preview.
func RenderDeposit(p treasury.DepositPreview) string {
	yield := p.ValueAfterYear.Sub(p.Amount)
	return fmt.Sprintf("Deposit preview:\n- Amount: $%s\n- Share price: $%s\n- Shares: %s\n- Value after 1 year at %s%% APY: $%s (yield $%s)",
		p.Amount.StringFixed(2), p.SharePrice.StringFixed(4), p.Shares.StringFixed(4), p.APYPercent, p.ValueAfterYear.StringFixed(2), yield.StringFixed(2))
}
