package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MinSqrtPrice is the AMM's protocol-minimum sqrt price (TickMath.MIN_SQRT_PRICE).
var MinSqrtPrice = big.NewInt(4295128739)

// PoolKey identifies the pool the swap runs against.
type PoolKey struct {
	Currency0   string `json:"currency0"`
	Currency1   string `json:"currency1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	Hooks       string `json:"hooks"`
}

// SwapParams swap instruction in AMM conventions.
type SwapParams struct {
	ZeroForOne bool `json:"zero_for_one"`
	// AmountSpecified negative for exact-input swaps.
	AmountSpecified *big.Int `json:"amount_specified"`
	// SqrtPriceLimitX96 price bound the swap may not cross.
	SqrtPriceLimitX96 *big.Int `json:"sqrt_price_limit_x96"`
}

// NewExactInputSwap builds the fixed-direction asset0 → asset1 exact-input swap
// of tradeSize (18 decimals) with the permissive minimum price bound plus one.
func NewExactInputSwap(tradeSize decimal.Decimal) SwapParams {
	amount := ToBaseUnits(tradeSize, OracleDecimals)
	return SwapParams{
		ZeroForOne:        true,
		AmountSpecified:   new(big.Int).Neg(amount),
		SqrtPriceLimitX96: new(big.Int).Add(MinSqrtPrice, big.NewInt(1)),
	}
}
