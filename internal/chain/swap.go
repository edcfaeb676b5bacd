package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// SwapExecutor routes swaps through the pool's swap test router.
type SwapExecutor struct {
	sender *TxSender
	router common.Address
}

// NewSwapExecutor creates an executor for the router at address.
func NewSwapExecutor(sender *TxSender, router common.Address) *SwapExecutor {
	return &SwapExecutor{sender: sender, router: router}
}

// SubmitSwap sends swap(key, params, settings, hookData) and returns the tx hash.
func (e *SwapExecutor) SubmitSwap(ctx context.Context, key domain.PoolKey, params domain.SwapParams) (string, error) {
	data, err := PackSwap(key, params)
	if err != nil {
		return "", err
	}

	return e.sender.Send(ctx, e.router, data)
}

func (e *SwapExecutor) AwaitConfirmation(ctx context.Context, txID string) (domain.Receipt, error) {
	return e.sender.AwaitConfirmation(ctx, txID)
}

// PackSwap encodes the swap call with claims and burn settlement disabled and empty hook data.
func PackSwap(key domain.PoolKey, params domain.SwapParams) ([]byte, error) {
	if !common.IsHexAddress(key.Currency0) || !common.IsHexAddress(key.Currency1) {
		return nil, errors.New("pool currencies must be hex addresses")
	}
	if key.Hooks != "" && !common.IsHexAddress(key.Hooks) {
		return nil, errors.Errorf("invalid hooks address %q", key.Hooks)
	}
	if params.AmountSpecified == nil || params.SqrtPriceLimitX96 == nil {
		return nil, errors.New("swap amount and price limit are required")
	}

	data, err := swapTestABI.Pack("swap",
		poolKeyTuple{
			Currency0:   common.HexToAddress(key.Currency0),
			Currency1:   common.HexToAddress(key.Currency1),
			Fee:         big.NewInt(int64(key.Fee)),
			TickSpacing: big.NewInt(int64(key.TickSpacing)),
			Hooks:       common.HexToAddress(key.Hooks),
		},
		swapParamsTuple{
			ZeroForOne:        params.ZeroForOne,
			AmountSpecified:   params.AmountSpecified,
			SqrtPriceLimitX96: params.SqrtPriceLimitX96,
		},
		testSettingsTuple{TakeClaims: false, SettleUsingBurn: false},
		[]byte{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "pack swap calldata")
	}

	return data, nil
}
