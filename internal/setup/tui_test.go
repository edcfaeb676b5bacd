package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/orbit/config"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, validatePair("ETH_USDT"))
	assert.Error(t, validatePair("ETHUSDT"))
	assert.Error(t, validatePair(""))

	assert.NoError(t, validateSchedule("@every 5m"))
	assert.NoError(t, validateSchedule("*/15 * * * *"))
	assert.Error(t, validateSchedule("every five minutes"))

	assert.NoError(t, validateNegative("-5"))
	assert.Error(t, validateNegative("5"))
	assert.NoError(t, validatePositive("0.01"))
	assert.Error(t, validatePositive("0"))
	assert.Error(t, validatePositive("abc"))

	assert.NoError(t, validatePercent("70"))
	assert.Error(t, validatePercent("0.5"))
	assert.Error(t, validatePercent("101"))

	assert.NoError(t, validateAddress("0x9e2851a6E9fFA4433a38B74f6bD08e519A782940"))
	assert.Error(t, validateAddress("0x9e28"))
	assert.NoError(t, validateOptionalAddress(""))
}

func TestWriteConfig_LoadsBack(t *testing.T) {
	a := defaultAnswers()
	a.pair = "btc_usdc"
	a.market = config.MarketCoinGecko
	a.schedule = "@every 15m"
	a.dropThreshold = "-3"
	a.tradeSize = "0.2"

	path := filepath.Join(t.TempDir(), "orbit.yaml")
	require.NoError(t, writeConfig(path, a.toConfig()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "private_key")

	var tmp config.ConfigTmp
	require.NoError(t, yaml.Unmarshal(raw, &tmp))

	cfg, err := tmp.Build()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "BTC", cfg.Strategy.BaseAsset)
	assert.Equal(t, config.MarketCoinGecko, cfg.Market.Provider)
	assert.Equal(t, "@every 15m", cfg.Schedule)
	assert.True(t, cfg.Strategy.PriceDropThreshold.Equal(decimal.NewFromInt(-3)))
	assert.True(t, cfg.Strategy.TradeSize.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, config.Default().CycleTimeout, cfg.CycleTimeout)
}
