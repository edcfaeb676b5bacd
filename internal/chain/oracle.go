package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// OracleUpdater pushes prices to the oracle contract.
type OracleUpdater struct {
	sender *TxSender
	oracle common.Address
}

// NewOracleUpdater creates an updater for the oracle at address.
func NewOracleUpdater(sender *TxSender, oracle common.Address) *OracleUpdater {
	return &OracleUpdater{sender: sender, oracle: oracle}
}

// SubmitOracleUpdate sends set(price, timestampNs) and returns the tx hash.
func (u *OracleUpdater) SubmitOracleUpdate(ctx context.Context, price *big.Int, timestampNs uint64) (string, error) {
	data, err := oracleABI.Pack("set", price, timestampNs)
	if err != nil {
		return "", errors.Wrap(err, "pack oracle set calldata")
	}

	return u.sender.Send(ctx, u.oracle, data)
}

func (u *OracleUpdater) AwaitConfirmation(ctx context.Context, txID string) (domain.Receipt, error) {
	return u.sender.AwaitConfirmation(ctx, txID)
}

// PackOraclePriceResult encodes getPrice() output, used by fakes and the simulator.
func PackOraclePriceResult(price *big.Int, timestampNs uint64) ([]byte, error) {
	return oracleABI.Methods["getPrice"].Outputs.Pack(price, timestampNs)
}

// ReadOraclePrice calls getPrice() on the oracle and returns the raw values.
func ReadOraclePrice(ctx context.Context, client Caller, oracle common.Address) (*big.Int, uint64, error) {
	data, err := oracleABI.Pack("getPrice")
	if err != nil {
		return nil, 0, errors.Wrap(err, "pack getPrice calldata")
	}

	out, err := client.Call(ctx, oracle, data)
	if err != nil {
		return nil, 0, err
	}

	decoded, err := oracleABI.Unpack("getPrice", out)
	if err != nil {
		return nil, 0, errors.Wrap(err, "decode getPrice result")
	}
	if len(decoded) != 2 {
		return nil, 0, errors.Errorf("getPrice returned %d values, expected 2", len(decoded))
	}

	price, ok := decoded[0].(*big.Int)
	if !ok || price == nil {
		return nil, 0, errors.New("getPrice returned invalid price")
	}
	ts, ok := decoded[1].(uint64)
	if !ok {
		return nil, 0, errors.New("getPrice returned invalid timestamp")
	}

	return price, ts, nil
}
