package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// OracleDecimals fixed-point precision of oracle prices.
const OracleDecimals = 18

// ToOracleFixed converts price to the oracle's integer representation
// (price × 10^18, rounded half away from zero).
func ToOracleFixed(price decimal.Decimal) *big.Int {
	return price.Shift(OracleDecimals).Round(0).BigInt()
}

// OracleTimestampNs converts wall-clock time to the oracle's nanosecond unit at
// millisecond resolution.
func OracleTimestampNs(t time.Time) uint64 {
	return uint64(t.UnixMilli()) * uint64(time.Millisecond)
}

// ToBaseUnits converts a token amount to integer base units.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Round(0).BigInt()
}

// FromBaseUnits converts integer base units to a token amount.
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}
