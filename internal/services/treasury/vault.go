// Package treasury reads the yield vault the agent manages.
package treasury

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/orbit/internal/chain"
	"github.com/vadiminshakov/orbit/internal/domain"
)

const (
	usdcDecimals  = 6
	shareDecimals = 18
	bpsPerPercent = 100
)

// DefaultTargetAPY is used for deposit previews when the vault reports no APY.
var DefaultTargetAPY = decimal.RequireFromString("4.5")

// Stats vault state in human units.
type Stats struct {
	TVL        decimal.Decimal `json:"tvl"`
	TotalShare decimal.Decimal `json:"total_shares"`
	SharePrice decimal.Decimal `json:"share_price"`
	// APYPercent e.g. 4.5.
	APYPercent  decimal.Decimal `json:"apy_percent"`
	YieldEarned decimal.Decimal `json:"yield_earned"`
}

// DepositPreview expected outcome of a deposit.
type DepositPreview struct {
	Amount         decimal.Decimal `json:"amount"`
	SharePrice     decimal.Decimal `json:"share_price"`
	Shares         decimal.Decimal `json:"shares"`
	ValueAfterYear decimal.Decimal `json:"value_after_year"`
	APYPercent     decimal.Decimal `json:"apy_percent"`
}

// Vault reads vault statistics.
type Vault struct {
	caller  chain.Caller
	address common.Address
}

// NewVault creates a reader for the vault at address.
func NewVault(caller chain.Caller, address common.Address) *Vault {
	return &Vault{caller: caller, address: address}
}

// Stats reads getVaultStats().
func (v *Vault) Stats(ctx context.Context) (Stats, error) {
	raw, err := chain.ReadVaultStats(ctx, v.caller, v.address)
	if err != nil {
		return Stats{}, errors.Wrap(err, "read vault stats")
	}

	return Stats{
		TVL:         domain.FromBaseUnits(raw.TVL, usdcDecimals),
		TotalShare:  domain.FromBaseUnits(raw.TotalShares, shareDecimals),
		SharePrice:  domain.FromBaseUnits(raw.CurrentSharePrice, usdcDecimals),
		APYPercent:  decimal.NewFromBigInt(raw.APYBps, 0).Div(decimal.NewFromInt(bpsPerPercent)),
		YieldEarned: domain.FromBaseUnits(raw.YieldEarned, usdcDecimals),
	}, nil
}

// PreviewDeposit estimates shares received for amount USDC and its value after one year.
func PreviewDeposit(amount decimal.Decimal, stats Stats) (DepositPreview, error) {
	if !amount.IsPositive() {
		return DepositPreview{}, errors.Errorf("deposit amount must be positive, got %s", amount)
	}

	sharePrice := stats.SharePrice
	if !sharePrice.IsPositive() {
		sharePrice = decimal.NewFromInt(1)
	}
	apy := stats.APYPercent
	if !apy.IsPositive() {
		apy = DefaultTargetAPY
	}

	growth := decimal.NewFromInt(1).Add(apy.Div(decimal.NewFromInt(100)))

	return DepositPreview{
		Amount:         amount,
		SharePrice:     sharePrice,
		Shares:         amount.Div(sharePrice).Round(6),
		ValueAfterYear: amount.Mul(growth).Round(2),
		APYPercent:     apy,
	}, nil
}
