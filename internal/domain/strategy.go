package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const percentageMultiplier = 100

// StrategyConfig static rebalancing thresholds, loaded once at start-up.
type StrategyConfig struct {
	// BaseAsset reference asset whose 24h change drives the price rules (e.g. ETH).
	BaseAsset string
	// AssetA first monitored asset (pool currency0).
	AssetA string
	// AssetB second monitored asset (pool currency1).
	AssetB string
	// PriceDropThreshold negative percent, e.g. -5.
	PriceDropThreshold decimal.Decimal
	// PriceRiseThreshold positive percent, e.g. 5.
	PriceRiseThreshold decimal.Decimal
	// MaxExposurePercent max share of a single asset, e.g. 70.
	MaxExposurePercent decimal.Decimal
	// TargetBalancePercent target split, e.g. 50.
	TargetBalancePercent decimal.Decimal
	// TradeSize exact-input swap size in asset0 units, e.g. 0.01.
	TradeSize decimal.Decimal
}

// DefaultStrategyConfig returns the thresholds the agent ships with.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		BaseAsset:            "ETH",
		AssetA:               "TOKEN0",
		AssetB:               "TOKEN1",
		PriceDropThreshold:   decimal.NewFromInt(-5),
		PriceRiseThreshold:   decimal.NewFromInt(5),
		MaxExposurePercent:   decimal.NewFromInt(70),
		TargetBalancePercent: decimal.NewFromInt(50),
		TradeSize:            decimal.RequireFromString("0.01"),
	}
}

// Validate checks thresholds for consistency.
func (c StrategyConfig) Validate() error {
	if c.BaseAsset == "" {
		return errors.New("base asset is required")
	}
	if c.AssetA == "" || c.AssetB == "" {
		return errors.New("asset A and asset B are required")
	}
	if c.AssetA == c.AssetB {
		return fmt.Errorf("asset A and asset B must differ, both are %s", c.AssetA)
	}
	if !c.PriceDropThreshold.IsNegative() {
		return fmt.Errorf("price drop threshold must be negative, got %s", c.PriceDropThreshold)
	}
	if !c.PriceRiseThreshold.IsPositive() {
		return fmt.Errorf("price rise threshold must be positive, got %s", c.PriceRiseThreshold)
	}
	hundred := decimal.NewFromInt(percentageMultiplier)
	if !c.MaxExposurePercent.IsPositive() || c.MaxExposurePercent.GreaterThan(hundred) {
		return fmt.Errorf("max exposure must be in (0, 100], got %s", c.MaxExposurePercent)
	}
	if c.TargetBalancePercent.IsNegative() || c.TargetBalancePercent.GreaterThan(hundred) {
		return fmt.Errorf("target balance must be in [0, 100], got %s", c.TargetBalancePercent)
	}
	if !c.TradeSize.IsPositive() {
		return fmt.Errorf("trade size must be positive, got %s", c.TradeSize)
	}
	return nil
}
