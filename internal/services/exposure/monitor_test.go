package exposure

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/chain"
)

var (
	token0  = common.HexToAddress("0x0000000000000000000000000000000000000a00")
	token1  = common.HexToAddress("0x0000000000000000000000000000000000000b00")
	account = "0x00000000000000000000000000000000000000ff"
)

type fakeCaller struct {
	balances      map[common.Address]*big.Int
	decimals      map[common.Address]uint8
	decimalsCalls int
	err           error
}

func (c *fakeCaller) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if bytes.Equal(data[:4], chain.MethodID("decimals")) {
		c.decimalsCalls++
		return chain.PackERC20DecimalsResult(c.decimals[to])
	}
	return chain.PackERC20BalanceResult(c.balances[to])
}

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func TestMonitor_GetExposureSnapshot(t *testing.T) {
	caller := &fakeCaller{
		balances: map[common.Address]*big.Int{token0: eth(75), token1: big.NewInt(25_000_000)},
		decimals: map[common.Address]uint8{token1: 6},
	}

	m, err := NewMonitor(zap.NewNop(), caller, []Asset{
		{Symbol: "TOKEN0", Address: token0, Decimals: 18},
		{Symbol: "TOKEN1", Address: token1},
	})
	require.NoError(t, err)

	snapshot, err := m.GetExposureSnapshot(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, "75", snapshot.Exposure("TOKEN0").String())
	assert.Equal(t, "25", snapshot.Exposure("TOKEN1").String())
	assert.Equal(t, "100", snapshot.TotalValue.String())

	// decimals are cached after the first read
	_, err = m.GetExposureSnapshot(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, caller.decimalsCalls)
}

func TestMonitor_Errors(t *testing.T) {
	_, err := NewMonitor(zap.NewNop(), &fakeCaller{}, []Asset{{Symbol: "A"}})
	assert.Error(t, err)

	_, err = NewMonitor(zap.NewNop(), &fakeCaller{}, []Asset{{Symbol: "A"}, {Symbol: "A"}})
	assert.Error(t, err)

	m, err := NewMonitor(zap.NewNop(), &fakeCaller{err: errors.New("rpc down")}, []Asset{
		{Symbol: "A", Address: token0, Decimals: 18},
		{Symbol: "B", Address: token1, Decimals: 18},
	})
	require.NoError(t, err)

	_, err = m.GetExposureSnapshot(context.Background(), account)
	assert.ErrorContains(t, err, "rpc down")

	_, err = m.GetExposureSnapshot(context.Background(), "not-an-address")
	assert.Error(t, err)
}
