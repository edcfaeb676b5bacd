package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot reference asset quote for a single decision cycle.
type MarketSnapshot struct {
	// Asset symbol the quote refers to (e.g. ETH).
	Asset string `json:"asset"`
	// Price latest price in USD.
	Price decimal.Decimal `json:"price"`
	// Change24h 24h change in percent, e.g. -5.68.
	Change24h decimal.Decimal `json:"change_24h"`
	// ObservedAt when the quote was fetched.
	ObservedAt time.Time `json:"observed_at"`
}

// NeutralMarketSnapshot returns a snapshot that cannot trigger price rules.
func NeutralMarketSnapshot(asset string, now time.Time) MarketSnapshot {
	return MarketSnapshot{Asset: asset, Price: decimal.Zero, Change24h: decimal.Zero, ObservedAt: now}
}

// OracleSnapshot price currently published by the on-chain oracle.
type OracleSnapshot struct {
	Price decimal.Decimal `json:"price"`
	// PublishedAt publish time normalized from nanoseconds to milliseconds.
	PublishedAt time.Time `json:"published_at"`
	// StalenessSeconds seconds elapsed between PublishedAt and the read.
	StalenessSeconds decimal.Decimal `json:"staleness_seconds"`
}

// NewOracleSnapshot converts the raw oracle values (18-decimals fixed point price,
// nanosecond timestamp) into a snapshot relative to now.
func NewOracleSnapshot(rawPrice *big.Int, timestampNs uint64, now time.Time) OracleSnapshot {
	price := decimal.Zero
	if rawPrice != nil {
		price = decimal.NewFromBigInt(rawPrice, -OracleDecimals)
	}

	publishedAt := time.UnixMilli(int64(timestampNs / uint64(time.Millisecond)))
	staleness := decimal.NewFromInt(now.Sub(publishedAt).Milliseconds()).
		Div(decimal.NewFromInt(1000)).
		Round(1)

	return OracleSnapshot{
		Price:            price,
		PublishedAt:      publishedAt,
		StalenessSeconds: staleness,
	}
}

// IsStale reports whether the published price is older than maxAge.
// Informational only: the decision engine does not gate on it.
func (s OracleSnapshot) IsStale(maxAge time.Duration) bool {
	return s.StalenessSeconds.GreaterThan(decimal.NewFromFloat(maxAge.Seconds()))
}
