package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AssetBalance balance of a single monitored asset.
type AssetBalance struct {
	Symbol  string          `json:"symbol"`
	Balance decimal.Decimal `json:"balance"`
}

// ExposureSnapshot per-asset balances and exposure percentages read in one cycle.
type ExposureSnapshot struct {
	Balances        map[string]decimal.Decimal `json:"balances"`
	ExposurePercent map[string]decimal.Decimal `json:"exposure_percent"`
	TotalValue      decimal.Decimal            `json:"total_value"`
}

// NewExposureSnapshot computes exposure percentages from the balances present now.
// Percentages are rounded to one decimal place; a zero total yields 0% for every asset.
func NewExposureSnapshot(assets []AssetBalance) ExposureSnapshot {
	snapshot := ExposureSnapshot{
		Balances:        make(map[string]decimal.Decimal, len(assets)),
		ExposurePercent: make(map[string]decimal.Decimal, len(assets)),
		TotalValue:      decimal.Zero,
	}

	for _, a := range assets {
		snapshot.Balances[a.Symbol] = a.Balance
		snapshot.TotalValue = snapshot.TotalValue.Add(a.Balance)
	}

	for _, a := range assets {
		if snapshot.TotalValue.IsZero() {
			snapshot.ExposurePercent[a.Symbol] = decimal.Zero
			continue
		}
		snapshot.ExposurePercent[a.Symbol] = a.Balance.
			Div(snapshot.TotalValue).
			Mul(decimal.NewFromInt(percentageMultiplier)).
			Round(1)
	}

	return snapshot
}

// Exposure returns the exposure percent of symbol, zero when the asset is not held.
func (s ExposureSnapshot) Exposure(symbol string) decimal.Decimal {
	if s.ExposurePercent == nil {
		return decimal.Zero
	}
	if v, ok := s.ExposurePercent[symbol]; ok {
		return v
	}
	return decimal.Zero
}

// Symbols returns the held symbols in a stable order.
func (s ExposureSnapshot) Symbols() []string {
	symbols := make([]string, 0, len(s.Balances))
	for symbol := range s.Balances {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
