package chain

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/internal/storage/simstate"
)

const (
	simTokenDecimals = 18
	feeDenominator   = 1_000_000

	simKindOracle = "oracle_update"
	simKindSwap   = "swap"

	// maxSimReceipts receipts older than this many blocks are pruned.
	maxSimReceipts = 256
)

// SimulatedAccount is the treasury account used in dry-run mode.
var SimulatedAccount = common.HexToAddress("0x00000000000000000000000000000000000051a7")

type simFeed struct {
	price  decimal.Decimal
	apyBps int64
	// followsOracle quotes the simulated oracle price instead of price.
	followsOracle bool
}

// simTreasuryFeeds quotes of the simulated treasury oracle.
var simTreasuryFeeds = map[[32]byte]simFeed{
	FeedID("USDC"):  {price: decimal.NewFromInt(1)},
	FeedID("USYC"):  {price: decimal.RequireFromString("1.047"), apyBps: 470},
	FeedID("WETH"):  {followsOracle: true},
	FeedID("BUIDL"): {price: decimal.RequireFromString("1.045"), apyBps: 450},
}

// SimulatorConfig seeds a fresh simulator state.
type SimulatorConfig struct {
	Oracle         common.Address
	Vault          common.Address
	TreasuryOracle common.Address
	// InitialBalances token address -> whole-token balance of SimulatedAccount.
	InitialBalances map[common.Address]decimal.Decimal
	// InitialOraclePrice published price at start.
	InitialOraclePrice decimal.Decimal
}

// Simulator is an in-process chain: it mines every transaction immediately, answers the
// contract reads the agent performs and persists its state between restarts.
// Swaps execute at 1:1 minus the pool fee.
type Simulator struct {
	l              *zap.Logger
	store          *simstate.Store
	oracle         common.Address
	vault          common.Address
	treasuryOracle common.Address

	mu    sync.Mutex
	state simstate.State
}

// NewSimulator restores state from store or seeds it from cfg.
func NewSimulator(l *zap.Logger, store *simstate.Store, cfg SimulatorConfig) (*Simulator, error) {
	s := &Simulator{l: l, store: store, oracle: cfg.Oracle, vault: cfg.Vault, treasuryOracle: cfg.TreasuryOracle}

	saved, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load simulator state")
	}

	if saved != nil {
		s.state = *saved
		if s.state.Balances == nil {
			s.state.Balances = make(map[string]string)
		}
		if s.state.Receipts == nil {
			s.state.Receipts = make(map[string]simstate.StoredReceipt)
		}
		l.Info("simulator state restored", zap.String("path", store.Path()), zap.Uint64("nonce", s.state.Nonce))

		return s, nil
	}

	s.state = simstate.State{
		Balances:    make(map[string]string, len(cfg.InitialBalances)),
		OraclePrice: domain.ToOracleFixed(cfg.InitialOraclePrice).String(),
		Receipts:    make(map[string]simstate.StoredReceipt),
	}
	for token, amount := range cfg.InitialBalances {
		s.state.Balances[tokenKey(token)] = domain.ToBaseUnits(amount, simTokenDecimals).String()
	}

	if err := store.Save(s.state); err != nil {
		return nil, errors.Wrap(err, "save simulator state")
	}

	return s, nil
}

// Address returns the simulated treasury account.
func (s *Simulator) Address() common.Address {
	return SimulatedAccount
}

// SubmitOracleUpdate records the new price and returns a deterministic tx hash.
func (s *Simulator) SubmitOracleUpdate(ctx context.Context, price *big.Int, timestampNs uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if price == nil || price.Sign() < 0 {
		return "", errors.New("oracle price must be non-negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.OraclePrice = price.String()
	s.state.OracleTimestampNs = timestampNs

	hash := s.mine(simKindOracle, price.Bytes(), false)
	if err := s.store.Save(s.state); err != nil {
		return "", errors.Wrap(err, "persist simulator state")
	}

	s.l.Info("simulated oracle update", zap.String("tx", hash), zap.String("price", price.String()))

	return hash, nil
}

// SubmitSwap applies an exact-input swap. A swap exceeding the input balance is mined as reverted.
func (s *Simulator) SubmitSwap(ctx context.Context, key domain.PoolKey, params domain.SwapParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() >= 0 {
		return "", errors.New("simulator supports exact-input swaps only")
	}

	in, out := key.Currency0, key.Currency1
	if !params.ZeroForOne {
		in, out = key.Currency1, key.Currency0
	}

	amountIn := new(big.Int).Neg(params.AmountSpecified)
	amountOut := new(big.Int).Mul(amountIn, big.NewInt(int64(feeDenominator-key.Fee)))
	amountOut.Quo(amountOut, big.NewInt(feeDenominator))

	s.mu.Lock()
	defer s.mu.Unlock()

	balanceIn := s.balance(in)
	reverted := balanceIn.Cmp(amountIn) < 0
	if !reverted {
		s.setBalance(in, new(big.Int).Sub(balanceIn, amountIn))
		s.setBalance(out, new(big.Int).Add(s.balance(out), amountOut))
	}

	payload, err := PackSwap(key, params)
	if err != nil {
		return "", err
	}

	hash := s.mine(simKindSwap, payload, reverted)
	if err := s.store.Save(s.state); err != nil {
		return "", errors.Wrap(err, "persist simulator state")
	}

	s.l.Info("simulated swap",
		zap.String("tx", hash),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
		zap.Bool("reverted", reverted))

	return hash, nil
}

// AwaitConfirmation returns the receipt of a mined simulator transaction.
func (s *Simulator) AwaitConfirmation(ctx context.Context, txID string) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.state.Receipts[strings.ToLower(txID)]
	if !ok {
		return domain.Receipt{}, errors.Errorf("unknown transaction %s", txID)
	}
	if receipt.Reverted {
		return domain.Receipt{}, errors.Wrapf(ErrReverted, "tx %s", txID)
	}

	return domain.Receipt{TxID: txID, BlockNumber: receipt.BlockNumber}, nil
}

// Call answers getPrice, balanceOf, decimals, getVaultStats and getPriceData.
func (s *Simulator) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, errors.New("calldata too short")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	selector := data[:4]

	switch {
	case bytes.Equal(selector, MethodID("getPrice")) && to == s.oracle:
		price, _ := new(big.Int).SetString(s.state.OraclePrice, 10)
		if price == nil {
			price = big.NewInt(0)
		}
		return PackOraclePriceResult(price, s.state.OracleTimestampNs)

	case bytes.Equal(selector, MethodID("decimals")):
		return PackERC20DecimalsResult(simTokenDecimals)

	case bytes.Equal(selector, MethodID("balanceOf")):
		args, err := erc20ABI.Methods["balanceOf"].Inputs.Unpack(data[4:])
		if err != nil || len(args) != 1 {
			return nil, errors.New("decode balanceOf arguments")
		}
		account, ok := args[0].(common.Address)
		if !ok {
			return nil, errors.New("balanceOf argument is not an address")
		}
		if account != SimulatedAccount {
			return PackERC20BalanceResult(big.NewInt(0))
		}
		return PackERC20BalanceResult(s.balance(to.Hex()))

	case bytes.Equal(selector, MethodID("getVaultStats")) && to == s.vault:
		return PackVaultStatsResult(s.vaultStats())

	case bytes.Equal(selector, MethodID("getPriceData")) && to == s.treasuryOracle && to != (common.Address{}):
		feedID, err := unpackFeedID(data[4:])
		if err != nil {
			return nil, err
		}
		feed, ok := simTreasuryFeeds[feedID]
		if !ok {
			return nil, errors.Errorf("unknown feed %x", feedID)
		}
		return PackTreasuryPriceDataResult(s.treasuryPriceData(feed))
	}

	return nil, errors.Errorf("simulator does not support call %x on %s", selector, to.Hex())
}

// vaultStats reports a vault holding the simulated treasury at a fixed share price of 1 USDC
// and 4.5% APY. Values use the vault's unit conventions (USDC 6 decimals, shares 18).
func (s *Simulator) vaultStats() VaultStats {
	total := big.NewInt(0)
	for _, raw := range s.state.Balances {
		if v, ok := new(big.Int).SetString(raw, 10); ok {
			total.Add(total, v)
		}
	}

	tvl := new(big.Int).Quo(total, big.NewInt(1_000_000_000_000))

	return VaultStats{
		TVL:               tvl,
		TotalShares:       total,
		CurrentSharePrice: big.NewInt(1_000_000),
		APYBps:            big.NewInt(450),
		YieldEarned:       big.NewInt(0),
	}
}

func (s *Simulator) treasuryPriceData(feed simFeed) TreasuryPriceData {
	price := domain.ToOracleFixed(feed.price)
	if feed.followsOracle {
		if v, ok := new(big.Int).SetString(s.state.OraclePrice, 10); ok {
			price = v
		}
	}

	return TreasuryPriceData{
		Price:        price,
		TimestampNs:  s.state.OracleTimestampNs,
		Change24hBps: big.NewInt(0),
		APYBps:       big.NewInt(feed.apyBps),
	}
}

func (s *Simulator) mine(kind string, payload []byte, reverted bool) string {
	s.state.Nonce++

	nonce := make([]byte, 8)
	binary.BigEndian.PutUint64(nonce, s.state.Nonce)
	hash := strings.ToLower(crypto.Keccak256Hash(nonce, []byte(kind), payload).Hex())

	s.state.Receipts[hash] = simstate.StoredReceipt{
		Kind:        kind,
		BlockNumber: s.state.Nonce,
		Reverted:    reverted,
	}
	s.pruneReceipts()

	return hash
}

// pruneReceipts keeps the receipts of the last maxSimReceipts blocks.
func (s *Simulator) pruneReceipts() {
	if s.state.Nonce <= maxSimReceipts {
		return
	}

	oldest := s.state.Nonce - maxSimReceipts
	for hash, r := range s.state.Receipts {
		if r.BlockNumber <= oldest {
			delete(s.state.Receipts, hash)
		}
	}
}

func (s *Simulator) balance(token string) *big.Int {
	raw, ok := s.state.Balances[strings.ToLower(token)]
	if !ok {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func (s *Simulator) setBalance(token string, v *big.Int) {
	s.state.Balances[strings.ToLower(token)] = v.String()
}

func tokenKey(token common.Address) string {
	return strings.ToLower(token.Hex())
}
