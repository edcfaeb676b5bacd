package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Caller performs read-only contract calls. *Client satisfies it.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// VaultStats raw getVaultStats() values.
type VaultStats struct {
	TVL               *big.Int
	TotalShares       *big.Int
	CurrentSharePrice *big.Int
	APYBps            *big.Int
	YieldEarned       *big.Int
}

// ReadERC20Balance calls balanceOf(account) on token.
func ReadERC20Balance(ctx context.Context, client Caller, token, account common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, errors.Wrap(err, "pack balanceOf calldata")
	}

	out, err := client.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}

	decoded, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, errors.Wrapf(err, "decode balanceOf result of %s", token.Hex())
	}
	if len(decoded) != 1 {
		return nil, errors.Errorf("balanceOf of %s returned %d values", token.Hex(), len(decoded))
	}

	balance, ok := decoded[0].(*big.Int)
	if !ok || balance == nil {
		return nil, errors.Errorf("balanceOf of %s returned invalid value", token.Hex())
	}

	return balance, nil
}

// ReadERC20Decimals calls decimals() on token.
func ReadERC20Decimals(ctx context.Context, client Caller, token common.Address) (uint8, error) {
	data, err := erc20ABI.Pack("decimals")
	if err != nil {
		return 0, errors.Wrap(err, "pack decimals calldata")
	}

	out, err := client.Call(ctx, token, data)
	if err != nil {
		return 0, err
	}

	decoded, err := erc20ABI.Unpack("decimals", out)
	if err != nil {
		return 0, errors.Wrapf(err, "decode decimals result of %s", token.Hex())
	}
	if len(decoded) != 1 {
		return 0, errors.Errorf("decimals of %s returned %d values", token.Hex(), len(decoded))
	}

	decimals, ok := decoded[0].(uint8)
	if !ok {
		return 0, errors.Errorf("decimals of %s returned invalid value", token.Hex())
	}

	return decimals, nil
}

// ReadVaultStats calls getVaultStats() on the vault.
func ReadVaultStats(ctx context.Context, client Caller, vault common.Address) (VaultStats, error) {
	data, err := vaultABI.Pack("getVaultStats")
	if err != nil {
		return VaultStats{}, errors.Wrap(err, "pack getVaultStats calldata")
	}

	out, err := client.Call(ctx, vault, data)
	if err != nil {
		return VaultStats{}, err
	}

	decoded, err := vaultABI.Unpack("getVaultStats", out)
	if err != nil {
		return VaultStats{}, errors.Wrap(err, "decode getVaultStats result")
	}
	if len(decoded) != 5 {
		return VaultStats{}, errors.Errorf("getVaultStats returned %d values, expected 5", len(decoded))
	}

	values := make([]*big.Int, 0, len(decoded))
	for i, v := range decoded {
		n, ok := v.(*big.Int)
		if !ok || n == nil {
			return VaultStats{}, errors.Errorf("getVaultStats value %d is not an integer", i)
		}
		values = append(values, n)
	}

	return VaultStats{
		TVL:               values[0],
		TotalShares:       values[1],
		CurrentSharePrice: values[2],
		APYBps:            values[3],
		YieldEarned:       values[4],
	}, nil
}

// PackERC20BalanceResult encodes a balanceOf result, used by fakes.
func PackERC20BalanceResult(balance *big.Int) ([]byte, error) {
	return erc20ABI.Methods["balanceOf"].Outputs.Pack(balance)
}

// PackERC20DecimalsResult encodes a decimals result, used by fakes.
func PackERC20DecimalsResult(decimals uint8) ([]byte, error) {
	return erc20ABI.Methods["decimals"].Outputs.Pack(decimals)
}

// PackVaultStatsResult encodes a getVaultStats result, used by fakes.
func PackVaultStatsResult(stats VaultStats) ([]byte, error) {
	return vaultABI.Methods["getVaultStats"].Outputs.Pack(
		stats.TVL, stats.TotalShares, stats.CurrentSharePrice, stats.APYBps, stats.YieldEarned)
}

// MethodID returns the 4-byte selector of a known read method, e.g. "balanceOf".
func MethodID(name string) []byte {
	for _, parsed := range []abi.ABI{oracleABI, erc20ABI, vaultABI, swapTestABI, treasuryOracleABI} {
		if m, ok := parsed.Methods[name]; ok {
			return m.ID
		}
	}
	return nil
}
