package chat

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/orbit/internal/agent"
	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/services/oracle"
	"github.com/vadiminshakov/orbit/internal/services/treasury"
)

func rebalanceDecision() domain.Decision {
	return domain.Decision{
		ShouldRebalance: true,
		Reason:          "ETH dropped -5.68% in 24h (below -5% threshold)",
		Action:          domain.ActionBuyBase,
		TargetPrice:     decimal.RequireFromString("2150.45"),
	}
}

func reportWith(result domain.ExecutionResult) agent.CycleReport {
	return agent.CycleReport{
		Decision: result.Decision,
		Result:   result,
		Snapshots: agent.Snapshots{
			Market: domain.MarketSnapshot{
				Asset:     "ETH",
				Price:     decimal.RequireFromString("2150.45"),
				Change24h: decimal.RequireFromString("-5.68"),
			},
			Exposure: domain.NewExposureSnapshot([]domain.AssetBalance{
				{Symbol: "TOKEN0", Balance: decimal.NewFromInt(60)},
				{Symbol: "TOKEN1", Balance: decimal.NewFromInt(40)},
			}),
		},
	}
}

func TestRenderCycle_Success(t *testing.T) {
	text := RenderCycle(reportWith(domain.ExecutionResult{
		Success:          true,
		OracleUpdateTxID: "0xoracle",
		SwapTxID:         "0xswap",
		Decision:         rebalanceDecision(),
	}))

	assert.Contains(t, text, "Rebalancing executed.")
	assert.Contains(t, text, "Swap tx: 0xswap")
	assert.Contains(t, text, "- ETH: $2150.45 (-5.68% 24h)")
	assert.Contains(t, text, "- Oracle: unavailable")
	assert.Contains(t, text, "- TOKEN0 exposure: 60.0%")
}

func TestRenderCycle_NeverClaimsSuccessOnFailure(t *testing.T) {
	oracleFailed := domain.FailedResult(rebalanceDecision(), domain.ErrorKindOracleUpdateFailed, assert.AnError)
	swapFailed := domain.FailedResult(rebalanceDecision(), domain.ErrorKindSwapFailed, assert.AnError)
	swapFailed.OracleUpdateTxID = "0xoracle"

	oracleText := RenderCycle(reportWith(oracleFailed))
	assert.Contains(t, oracleText, "Phase 1 (oracle update) failed, no swap was attempted.")
	assert.NotContains(t, oracleText, "executed")

	swapText := RenderCycle(reportWith(swapFailed))
	assert.Contains(t, swapText, "Phase 2 (swap) failed.")
	assert.Contains(t, swapText, "Oracle tx: 0xoracle")
	assert.NotContains(t, swapText, "executed")
}

func TestRenderCycle_NoopAndSkipped(t *testing.T) {
	noop := RenderCycle(reportWith(domain.NoopResult(domain.HoldDecision())))
	assert.Contains(t, noop, "no rebalancing needed (within thresholds)")

	skipped := domain.NoopResult(rebalanceDecision())
	skipped.Reason = "cooldown active for BUY_BASE, 5m0s remaining"
	text := RenderCycle(reportWith(skipped))
	assert.Contains(t, text, "Execution skipped: cooldown active for BUY_BASE")
	assert.NotContains(t, text, "executed")
}

func TestRenderCycle_Aborted(t *testing.T) {
	busy := RenderCycle(agent.CycleReport{Result: domain.FailedResult(domain.HoldDecision(), domain.ErrorKindCycleInProgress, nil)})
	assert.Contains(t, busy, "already running")

	upstream := RenderCycle(agent.CycleReport{
		Result: domain.FailedResult(domain.HoldDecision(), domain.ErrorKindUpstreamDataUnavailable, assert.AnError),
	})
	assert.Contains(t, upstream, "no action was taken")
}

func TestRenderOracle_Stale(t *testing.T) {
	o := domain.OracleSnapshot{
		Price:            decimal.NewFromInt(2100),
		PublishedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		StalenessSeconds: decimal.NewFromInt(7200),
	}
	assert.Contains(t, RenderOracle(o, 3600), "The price is stale.")

	o.StalenessSeconds = decimal.NewFromInt(60)
	assert.NotContains(t, RenderOracle(o, 3600), "stale")
}

func TestRenderStrategy(t *testing.T) {
	text := RenderStrategy(domain.DefaultStrategyConfig())
	assert.Contains(t, text, "Buy ETH when it drops 5% or more in 24h.")
	assert.Contains(t, text, "Rebalance when TOKEN0 or TOKEN1 exceeds 70% of the treasury, target 50%.")
	assert.Contains(t, text, "swaps 0.01")
}

func TestRenderDeposit(t *testing.T) {
	preview, err := treasury.PreviewDeposit(decimal.NewFromInt(1000), treasury.Stats{})
	assert.NoError(t, err)

	text := RenderDeposit(preview)
	assert.Contains(t, text, "- Shares: 1000.0000")
	assert.Contains(t, text, "- Share price: $1.0000")
	assert.Contains(t, text, "at 4.5% APY: $1045.00 (yield $45.00)")
}

func TestRenderTreasuryPrices(t *testing.T) {
	prices := oracle.TreasuryPrices{
		Source: oracle.TreasurySourceOracle,
		Oracle: common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		Assets: []oracle.TreasuryAsset{
			{Symbol: "USYC", Price: decimal.RequireFromString("1.048"), Change24h: decimal.RequireFromString("0.02"), APYPercent: decimal.RequireFromString("4.8"), YieldBearing: true},
			{Symbol: "WETH", Price: decimal.RequireFromString("2150.45"), Change24h: decimal.RequireFromString("-5.68")},
		},
	}

	text := RenderTreasuryPrices(prices)
	assert.Contains(t, text, "Treasury oracle RWA prices:")
	assert.Contains(t, text, "- USYC: $1.0480 (+0.02% 24h), 4.80% APY")
	assert.Contains(t, text, "- WETH: $2150.45 (-5.68% 24h)")
	assert.Contains(t, text, "Average RWA yield: 4.80% APY")
	assert.Contains(t, text, "Oracle: "+prices.Oracle.Hex())
}
