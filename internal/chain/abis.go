package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// OracleABI price feed that accepts pushed updates (MockStork) and exposes the latest value.
	OracleABI = `[
		{"name":"set","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_val","type":"int192"},{"name":"_ts","type":"uint64"}],"outputs":[]},
		{"name":"getPrice","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"price","type":"int192"},{"name":"timestamp","type":"uint64"}]}
	]`

	ERC20ABI = `[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
	]`

	PoolSwapTestABI = `[
		{"name":"swap","type":"function","stateMutability":"payable","inputs":[
			{"name":"key","type":"tuple","components":[{"name":"currency0","type":"address"},{"name":"currency1","type":"address"},{"name":"fee","type":"uint24"},{"name":"tickSpacing","type":"int24"},{"name":"hooks","type":"address"}]},
			{"name":"params","type":"tuple","components":[{"name":"zeroForOne","type":"bool"},{"name":"amountSpecified","type":"int256"},{"name":"sqrtPriceLimitX96","type":"uint160"}]},
			{"name":"testSettings","type":"tuple","components":[{"name":"takeClaims","type":"bool"},{"name":"settleUsingBurn","type":"bool"}]},
			{"name":"hookData","type":"bytes"}
		],"outputs":[{"name":"delta","type":"int256"}]}
	]`

	// TreasuryOracleABI multi-asset RWA feed keyed by keccak256(symbol).
	TreasuryOracleABI = `[
		{"name":"getPriceData","type":"function","stateMutability":"view","inputs":[{"name":"feedId","type":"bytes32"}],"outputs":[{"name":"price","type":"int192"},{"name":"timestampNs","type":"uint64"},{"name":"change24h","type":"int192"},{"name":"apy","type":"uint256"}]}
	]`

	VaultABI = `[
		{"name":"getVaultStats","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"tvl","type":"uint256"},{"name":"totalShares","type":"uint256"},{"name":"currentSharePrice","type":"uint256"},{"name":"apy","type":"uint256"},{"name":"yieldEarned","type":"uint256"}]}
	]`
)

var (
	oracleABI   = mustABI(OracleABI)
	erc20ABI    = mustABI(ERC20ABI)
	swapTestABI = mustABI(PoolSwapTestABI)
	vaultABI    = mustABI(VaultABI)

	treasuryOracleABI = mustABI(TreasuryOracleABI)
)

type poolKeyTuple struct {
	Currency0   common.Address `abi:"currency0"`
	Currency1   common.Address `abi:"currency1"`
	Fee         *big.Int       `abi:"fee"`
	TickSpacing *big.Int       `abi:"tickSpacing"`
	Hooks       common.Address `abi:"hooks"`
}

type swapParamsTuple struct {
	ZeroForOne        bool     `abi:"zeroForOne"`
	AmountSpecified   *big.Int `abi:"amountSpecified"`
	SqrtPriceLimitX96 *big.Int `abi:"sqrtPriceLimitX96"`
}

type testSettingsTuple struct {
	TakeClaims      bool `abi:"takeClaims"`
	SettleUsingBurn bool `abi:"settleUsingBurn"`
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
