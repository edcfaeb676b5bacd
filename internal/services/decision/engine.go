// Package decision evaluates the rebalancing rule table.
package decision

import (
	"fmt"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// Engine turns market, oracle and exposure snapshots into a rebalancing decision.
// It holds no state and never performs I/O.
type Engine struct{}

// NewEngine creates a decision engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Decide applies the rules in order: price drop, price rise, exposure of asset A,
// exposure of asset B. Every rule that fires overwrites the previous result, so an
// exposure breach always wins over a price move in the same cycle.
//
// The oracle snapshot is accepted for completeness; staleness does not gate the decision.
func (e *Engine) Decide(
	market domain.MarketSnapshot,
	_ domain.OracleSnapshot,
	exposure domain.ExposureSnapshot,
	cfg domain.StrategyConfig,
) domain.Decision {
	decision := domain.HoldDecision()

	if market.Change24h.LessThanOrEqual(cfg.PriceDropThreshold) {
		decision = domain.Decision{
			ShouldRebalance: true,
			Reason: fmt.Sprintf("%s dropped %s%% in 24h (below %s%% threshold)",
				cfg.BaseAsset, market.Change24h.StringFixed(2), cfg.PriceDropThreshold),
			Action:      domain.ActionBuyBase,
			TargetPrice: market.Price,
		}
	} else if market.Change24h.GreaterThanOrEqual(cfg.PriceRiseThreshold) {
		decision = domain.Decision{
			ShouldRebalance: true,
			Reason: fmt.Sprintf("%s rose %s%% in 24h (above %s%% threshold)",
				cfg.BaseAsset, market.Change24h.StringFixed(2), cfg.PriceRiseThreshold),
			Action:      domain.ActionSellBase,
			TargetPrice: market.Price,
		}
	}

	exposureA := exposure.Exposure(cfg.AssetA)
	exposureB := exposure.Exposure(cfg.AssetB)

	if exposureA.GreaterThan(cfg.MaxExposurePercent) {
		decision = domain.Decision{
			ShouldRebalance: true,
			Reason:          exposureReason(cfg.AssetA, exposureA.StringFixed(1), cfg),
			Action:          domain.ActionRebalanceToB,
			TargetPrice:     market.Price,
		}
	} else if exposureB.GreaterThan(cfg.MaxExposurePercent) {
		decision = domain.Decision{
			ShouldRebalance: true,
			Reason:          exposureReason(cfg.AssetB, exposureB.StringFixed(1), cfg),
			Action:          domain.ActionRebalanceToA,
			TargetPrice:     market.Price,
		}
	}

	return decision
}

func exposureReason(asset, percent string, cfg domain.StrategyConfig) string {
	return fmt.Sprintf("%s exposure %s%% exceeds max %s%%", asset, percent, cfg.MaxExposurePercent)
}
