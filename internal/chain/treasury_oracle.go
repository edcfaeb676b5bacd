package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// TreasuryPriceData raw getPriceData(feedId) values. Price is 18-decimals fixed point,
// Change24hBps and APYBps are basis points.
type TreasuryPriceData struct {
	Price        *big.Int
	TimestampNs  uint64
	Change24hBps *big.Int
	APYBps       *big.Int
}

// FeedID returns the treasury oracle feed id of symbol, keccak256 of the upper-case symbol.
func FeedID(symbol string) [32]byte {
	return crypto.Keccak256Hash([]byte(strings.ToUpper(symbol)))
}

// ReadTreasuryPriceData calls getPriceData(feedId) on the treasury oracle.
func ReadTreasuryPriceData(ctx context.Context, client Caller, oracle common.Address, feedID [32]byte) (TreasuryPriceData, error) {
	data, err := treasuryOracleABI.Pack("getPriceData", feedID)
	if err != nil {
		return TreasuryPriceData{}, errors.Wrap(err, "pack getPriceData calldata")
	}

	out, err := client.Call(ctx, oracle, data)
	if err != nil {
		return TreasuryPriceData{}, err
	}

	decoded, err := treasuryOracleABI.Unpack("getPriceData", out)
	if err != nil {
		return TreasuryPriceData{}, errors.Wrap(err, "decode getPriceData result")
	}
	if len(decoded) != 4 {
		return TreasuryPriceData{}, errors.Errorf("getPriceData returned %d values, expected 4", len(decoded))
	}

	price, ok := decoded[0].(*big.Int)
	if !ok || price == nil {
		return TreasuryPriceData{}, errors.New("getPriceData returned invalid price")
	}
	ts, ok := decoded[1].(uint64)
	if !ok {
		return TreasuryPriceData{}, errors.New("getPriceData returned invalid timestamp")
	}
	change, ok := decoded[2].(*big.Int)
	if !ok || change == nil {
		return TreasuryPriceData{}, errors.New("getPriceData returned invalid 24h change")
	}
	apy, ok := decoded[3].(*big.Int)
	if !ok || apy == nil {
		return TreasuryPriceData{}, errors.New("getPriceData returned invalid apy")
	}

	return TreasuryPriceData{Price: price, TimestampNs: ts, Change24hBps: change, APYBps: apy}, nil
}

// PackTreasuryPriceDataResult encodes a getPriceData result, used by fakes and the simulator.
func PackTreasuryPriceDataResult(d TreasuryPriceData) ([]byte, error) {
	return treasuryOracleABI.Methods["getPriceData"].Outputs.Pack(d.Price, d.TimestampNs, d.Change24hBps, d.APYBps)
}

// unpackFeedID decodes the feedId argument of getPriceData calldata without the selector.
func unpackFeedID(args []byte) ([32]byte, error) {
	values, err := treasuryOracleABI.Methods["getPriceData"].Inputs.Unpack(args)
	if err != nil || len(values) != 1 {
		return [32]byte{}, errors.New("decode getPriceData arguments")
	}
	id, ok := values[0].([32]byte)
	if !ok {
		return [32]byte{}, errors.New("getPriceData argument is not bytes32")
	}
	return id, nil
}
