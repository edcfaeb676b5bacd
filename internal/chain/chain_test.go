package chain

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/storage/simstate"
)

// well-known hardhat test key #0
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeBackend struct {
	mu         sync.Mutex
	chainCalls int
	sent       []*types.Transaction
	receipts   map[common.Hash]*types.Receipt
	pollsLeft  int
	estimated  uint64
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainCalls++
	return big.NewInt(5042002), nil
}

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not used")
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.estimated, nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return nil, errors.New("method not found")
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(10)}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pollsLeft > 0 {
		b.pollsLeft--
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func newTestSender(t *testing.T, backend *fakeBackend) *TxSender {
	t.Helper()

	signer, err := NewLocalSigner("0x" + testKey)
	require.NoError(t, err)

	return NewTxSender(zap.NewNop(), NewClient(backend), signer, time.Millisecond)
}

func TestLocalSigner(t *testing.T) {
	signer, err := NewLocalSigner(testKey)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", signer.Address().Hex())

	_, err = NewLocalSigner("")
	assert.Error(t, err)

	_, err = NewLocalSigner("zz")
	assert.Error(t, err)
}

func TestTxSender_Send(t *testing.T) {
	backend := &fakeBackend{estimated: 100_000}
	sender := newTestSender(t, backend)
	oracle := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	updater := NewOracleUpdater(sender, oracle)
	hash, err := updater.SubmitOracleUpdate(context.Background(), big.NewInt(42), 1_700_000_000_000_000_000)
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash().Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(120_000), tx.Gas())
	assert.Equal(t, oracle, *tx.To())
	// tip cap falls back to 2 gwei, fee cap = 2*base + tip
	assert.Equal(t, "2000000000", tx.GasTipCap().String())
	assert.Equal(t, "2000000020", tx.GasFeeCap().String())
	assert.Equal(t, MethodID("set"), tx.Data()[:4])

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(5042002)), tx)
	require.NoError(t, err)
	assert.Equal(t, sender.Address(), from)

	// chain id is cached
	_, err = updater.SubmitOracleUpdate(context.Background(), big.NewInt(43), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.chainCalls)
}

func TestTxSender_AwaitConfirmation(t *testing.T) {
	hash := common.HexToHash("0x01")

	t.Run("mined after polling", func(t *testing.T) {
		backend := &fakeBackend{
			pollsLeft: 2,
			receipts: map[common.Hash]*types.Receipt{
				hash: {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(12), GasUsed: 21000},
			},
		}
		receipt, err := newTestSender(t, backend).AwaitConfirmation(context.Background(), hash.Hex())
		require.NoError(t, err)
		assert.Equal(t, uint64(12), receipt.BlockNumber)
		assert.Equal(t, uint64(21000), receipt.GasUsed)
	})

	t.Run("reverted", func(t *testing.T) {
		backend := &fakeBackend{
			receipts: map[common.Hash]*types.Receipt{hash: {Status: types.ReceiptStatusFailed}},
		}
		_, err := newTestSender(t, backend).AwaitConfirmation(context.Background(), hash.Hex())
		assert.ErrorIs(t, err, ErrReverted)
	})

	t.Run("context deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := newTestSender(t, &fakeBackend{}).AwaitConfirmation(ctx, hash.Hex())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("invalid hash", func(t *testing.T) {
		_, err := newTestSender(t, &fakeBackend{}).AwaitConfirmation(context.Background(), "0xnothex")
		assert.Error(t, err)
	})
}

func TestPackSwap(t *testing.T) {
	key := domain.PoolKey{
		Currency0:   "0x0000000000000000000000000000000000000a00",
		Currency1:   "0x0000000000000000000000000000000000000b00",
		Fee:         3000,
		TickSpacing: 60,
		Hooks:       "0x0000000000000000000000000000000000000c00",
	}
	params := domain.NewExactInputSwap(decimal.RequireFromString("0.01"))

	data, err := PackSwap(key, params)
	require.NoError(t, err)
	assert.Equal(t, MethodID("swap"), data[:4])

	args, err := swapTestABI.Methods["swap"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)

	_, err = PackSwap(domain.PoolKey{Currency0: "nope", Currency1: key.Currency1}, params)
	assert.Error(t, err)
}

func newTestSimulator(t *testing.T, dir string) (*Simulator, SimulatorConfig) {
	t.Helper()

	store, err := simstate.NewStore(dir, "test")
	require.NoError(t, err)

	cfg := SimulatorConfig{
		Oracle:         common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Vault:          common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		TreasuryOracle: common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		InitialBalances: map[common.Address]decimal.Decimal{
			common.HexToAddress("0x0000000000000000000000000000000000000a00"): decimal.NewFromInt(75),
			common.HexToAddress("0x0000000000000000000000000000000000000b00"): decimal.NewFromInt(25),
		},
		InitialOraclePrice: decimal.NewFromInt(2000),
	}

	sim, err := NewSimulator(zap.NewNop(), store, cfg)
	require.NoError(t, err)

	return sim, cfg
}

func TestSimulator_OracleRoundTrip(t *testing.T) {
	ctx := context.Background()
	sim, cfg := newTestSimulator(t, t.TempDir())

	price, _, err := ReadOraclePrice(ctx, sim, cfg.Oracle)
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000000", price.String())

	hash, err := sim.SubmitOracleUpdate(ctx, big.NewInt(123), 1_700_000_000_000_000_000)
	require.NoError(t, err)
	receipt, err := sim.AwaitConfirmation(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.BlockNumber)

	price, ts, err := ReadOraclePrice(ctx, sim, cfg.Oracle)
	require.NoError(t, err)
	assert.Equal(t, "123", price.String())
	assert.Equal(t, uint64(1_700_000_000_000_000_000), ts)
}

func TestSimulator_Swap(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	sim, _ := newTestSimulator(t, dir)

	token0 := common.HexToAddress("0x0000000000000000000000000000000000000a00")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000b00")
	key := domain.PoolKey{Currency0: token0.Hex(), Currency1: token1.Hex(), Fee: 3000, TickSpacing: 60}

	hash, err := sim.SubmitSwap(ctx, key, domain.NewExactInputSwap(decimal.NewFromInt(10)))
	require.NoError(t, err)
	_, err = sim.AwaitConfirmation(ctx, hash)
	require.NoError(t, err)

	balance0, err := ReadERC20Balance(ctx, sim, token0, SimulatedAccount)
	require.NoError(t, err)
	balance1, err := ReadERC20Balance(ctx, sim, token1, SimulatedAccount)
	require.NoError(t, err)
	assert.Equal(t, "65", domain.FromBaseUnits(balance0, 18).String())
	assert.Equal(t, "34.97", domain.FromBaseUnits(balance1, 18).String())

	// state survives restart
	restored, _ := newTestSimulator(t, dir)
	balance0, err = ReadERC20Balance(ctx, restored, token0, SimulatedAccount)
	require.NoError(t, err)
	assert.Equal(t, "65", domain.FromBaseUnits(balance0, 18).String())

	// oversized swap is mined but reverted
	hash, err = restored.SubmitSwap(ctx, key, domain.NewExactInputSwap(decimal.NewFromInt(1000)))
	require.NoError(t, err)
	_, err = restored.AwaitConfirmation(ctx, hash)
	assert.ErrorIs(t, err, ErrReverted)
}

func TestSimulator_VaultAndDecimals(t *testing.T) {
	ctx := context.Background()
	sim, cfg := newTestSimulator(t, t.TempDir())

	stats, err := ReadVaultStats(ctx, sim, cfg.Vault)
	require.NoError(t, err)
	assert.Equal(t, "100000000", stats.TVL.String())
	assert.Equal(t, "450", stats.APYBps.String())

	decimals, err := ReadERC20Decimals(ctx, sim, common.HexToAddress("0x0000000000000000000000000000000000000a00"))
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)

	_, err = sim.Call(ctx, cfg.Vault, []byte{0x01})
	assert.Error(t, err)
}

func TestSimulator_CancelledContext(t *testing.T) {
	sim, _ := newTestSimulator(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.SubmitOracleUpdate(ctx, big.NewInt(1), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimulator_TreasuryOracle(t *testing.T) {
	ctx := context.Background()
	sim, cfg := newTestSimulator(t, t.TempDir())

	usyc, err := ReadTreasuryPriceData(ctx, sim, cfg.TreasuryOracle, FeedID("USYC"))
	require.NoError(t, err)
	assert.Equal(t, "1047000000000000000", usyc.Price.String())
	assert.Equal(t, "470", usyc.APYBps.String())
	assert.Equal(t, "0", usyc.Change24hBps.String())

	// WETH follows the simulated oracle
	_, err = sim.SubmitOracleUpdate(ctx, big.NewInt(2100), 42)
	require.NoError(t, err)
	weth, err := ReadTreasuryPriceData(ctx, sim, cfg.TreasuryOracle, FeedID("weth"))
	require.NoError(t, err)
	assert.Equal(t, "2100", weth.Price.String())
	assert.Equal(t, uint64(42), weth.TimestampNs)

	_, err = ReadTreasuryPriceData(ctx, sim, cfg.TreasuryOracle, FeedID("DOGE"))
	assert.ErrorContains(t, err, "unknown feed")

	// only the configured treasury oracle answers
	_, err = ReadTreasuryPriceData(ctx, sim, cfg.Oracle, FeedID("USDC"))
	assert.Error(t, err)
}

func TestSimulator_PrunesOldReceipts(t *testing.T) {
	ctx := context.Background()
	sim, _ := newTestSimulator(t, t.TempDir())

	first, err := sim.SubmitOracleUpdate(ctx, big.NewInt(1), 1)
	require.NoError(t, err)

	var last string
	for i := 0; i < maxSimReceipts+10; i++ {
		last, err = sim.SubmitOracleUpdate(ctx, big.NewInt(int64(i+2)), uint64(i+2))
		require.NoError(t, err)
	}

	assert.Len(t, sim.state.Receipts, maxSimReceipts)
	_, err = sim.AwaitConfirmation(ctx, first)
	assert.ErrorContains(t, err, "unknown transaction")

	receipt, err := sim.AwaitConfirmation(ctx, last)
	require.NoError(t, err)
	assert.Equal(t, uint64(maxSimReceipts+11), receipt.BlockNumber)
}
