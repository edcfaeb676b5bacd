package chain

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	// gas estimate headroom, in percent
	defaultGasHeadroom = 120
)

var (
	// ErrReverted is returned when a transaction was mined with a failed status.
	ErrReverted = errors.New("transaction reverted on-chain")

	fallbackBaseFee = big.NewInt(1_000_000_000)
	fallbackTipCap  = big.NewInt(2_000_000_000)
)

// TxSender builds, signs and broadcasts EIP-1559 transactions and waits for their receipts.
type TxSender struct {
	l            *zap.Logger
	client       *Client
	signer       Signer
	pollInterval time.Duration
	gasHeadroom  uint64
}

// NewTxSender creates a sender. Non-positive pollInterval falls back to 2s.
func NewTxSender(l *zap.Logger, client *Client, signer Signer, pollInterval time.Duration) *TxSender {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &TxSender{
		l:            l,
		client:       client,
		signer:       signer,
		pollInterval: pollInterval,
		gasHeadroom:  defaultGasHeadroom,
	}
}

// Address returns the sending account.
func (s *TxSender) Address() common.Address {
	return s.signer.Address()
}

// Send signs a call to `to` with calldata and broadcasts it. Returns the tx hash.
func (s *TxSender) Send(ctx context.Context, to common.Address, data []byte) (string, error) {
	backend := s.client.Backend()

	chainID, err := s.client.ChainID(ctx)
	if err != nil {
		return "", err
	}

	from := s.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &to, Value: big.NewInt(0), Data: data}

	gasLimit, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		return "", errors.Wrap(err, "estimate gas")
	}
	gasLimit = gasLimit * s.gasHeadroom / 100

	tipCap, err := backend.SuggestGasTipCap(ctx)
	if err != nil {
		s.l.Warn("tip cap suggestion failed, using fallback", zap.Error(err))
		tipCap = new(big.Int).Set(fallbackTipCap)
	}

	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "fetch latest header")
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = fallbackBaseFee
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", errors.Wrap(err, "fetch nonce")
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signed, err := s.signer.SignTx(chainID, tx)
	if err != nil {
		return "", errors.Wrap(err, "sign transaction")
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrap(err, "broadcast transaction")
	}

	hash := signed.Hash().Hex()
	s.l.Debug("transaction broadcast",
		zap.String("tx", hash),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gasLimit))

	return hash, nil
}

// AwaitConfirmation polls for the receipt until it is mined or ctx is done.
// Transient RPC errors are ignored until the deadline.
func (s *TxSender) AwaitConfirmation(ctx context.Context, txID string) (domain.Receipt, error) {
	if !isTxHash(txID) {
		return domain.Receipt{}, errors.Errorf("invalid transaction hash %q", txID)
	}
	hash := common.HexToHash(txID)
	backend := s.client.Backend()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return domain.Receipt{}, errors.Wrapf(ErrReverted, "tx %s", txID)
			}

			var block uint64
			if receipt.BlockNumber != nil {
				block = receipt.BlockNumber.Uint64()
			}

			return domain.Receipt{TxID: txID, BlockNumber: block, GasUsed: receipt.GasUsed}, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.l.Debug("receipt poll failed", zap.String("tx", txID), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return domain.Receipt{}, errors.Wrapf(ctx.Err(), "waiting for receipt of %s", txID)
		case <-ticker.C:
		}
	}
}

func isTxHash(v string) bool {
	clean := strings.TrimPrefix(v, "0x")
	if len(clean) != 2*common.HashLength {
		return false
	}
	for _, r := range clean {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
