package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--env", ""})
	require.NoError(t, err)

	assert.Equal(t, PlatformSimulate, cfg.Platform)
	assert.Equal(t, "ETH", cfg.Pair.From)
	assert.Equal(t, "USDT", cfg.Pair.To)
	assert.Equal(t, "ETH", cfg.Strategy.BaseAsset)
	assert.Equal(t, "TOKEN0", cfg.Strategy.AssetA)
	assert.Equal(t, "TOKEN1", cfg.Strategy.AssetB)
	assert.True(t, cfg.Strategy.PriceDropThreshold.Equal(decimal.NewFromInt(-5)))
	assert.True(t, cfg.Strategy.TradeSize.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, "@every 5m", cfg.Schedule)
	assert.Equal(t, 2*time.Minute, cfg.PhaseTimeout)
	assert.Equal(t, uint32(3000), cfg.Pool().Fee)
	assert.Equal(t, int32(60), cfg.Pool().TickSpacing)
	assert.Equal(t, cfg.Assets[0].Address.Hex(), cfg.Pool().Currency0)
	require.Len(t, cfg.Assets, 2)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load([]string{
		"--env", "",
		"--pair", "btc_usdc",
		"--market", "coingecko",
		"--schedule", "@every 1m",
		"--cooldown", "30m",
		"--run-on-start=false",
	})
	require.NoError(t, err)

	assert.Equal(t, "BTC", cfg.Strategy.BaseAsset)
	assert.Equal(t, MarketCoinGecko, cfg.Market.Provider)
	assert.Equal(t, "@every 1m", cfg.Schedule)
	assert.Equal(t, 30*time.Minute, cfg.Cooldown)
	assert.False(t, cfg.RunOnStart)
}

func TestLoad_HyperliquidWithTLS(t *testing.T) {
	cfg, err := Load([]string{
		"--env", "",
		"--market", "hyperliquid",
		"--tls-domains", "orbit.example.com, www.orbit.example.com,",
	})
	require.NoError(t, err)

	assert.Equal(t, MarketHyperliquid, cfg.Market.Provider)
	assert.Equal(t, []string{"orbit.example.com", "www.orbit.example.com"}, cfg.TLSDomains)
	assert.Equal(t, "cert-cache", cfg.TLSCacheDir)
	// no treasury oracle by default
	assert.Equal(t, common.Address{}, cfg.Chain.TreasuryOracle)
}

func TestLoad_YamlTreasuryOracle(t *testing.T) {
	path := writeFile(t, "orbit.yaml", `
platform: simulate
pair: ETH_USDC
schedule: "@every 5m"
http_addr: ":8443"
tls_domains: ["orbit.example.com"]
tls_cache_dir: /var/cache/orbit
chain:
  treasury_oracle_address: "0x00000000000000000000000000000000000000cc"
assets:
  - symbol: usdc
    address: "0x01BB3A79deFc363d2316c8c395F2FAF20B3697D5"
  - symbol: weth
    address: "0xFC92d1864F6Fa41059c793935A295d29b63d9E46"
`)

	cfg, err := Load([]string{"--env", "", "--config", path})
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000cc"), cfg.Chain.TreasuryOracle)
	assert.Equal(t, []string{"orbit.example.com"}, cfg.TLSDomains)
	assert.Equal(t, "/var/cache/orbit", cfg.TLSCacheDir)

	bad := writeFile(t, "bad.yaml", `
chain:
  treasury_oracle_address: "0x12"
`)
	_, err = Load([]string{"--env", "", "--config", bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "treasury_oracle_address")
}

func TestLoad_Yaml(t *testing.T) {
	path := writeFile(t, "orbit.yaml", `
platform: simulate
pair: ETH_USDC
schedule: "@every 10m"
cycle_timeout: 4m
strategy:
  price_drop_threshold: "-3"
  max_exposure_percent: "65"
  trade_size: "0.5"
market:
  provider: bybit
chain:
  oracle_address: "0x9e2851a6E9fFA4433a38B74f6bD08e519A782940"
  router_address: "0xd008402c0ff6ca1f2e60e8df12324540e402ac5e"
  pool_fee: 500
assets:
  - symbol: usdc
    address: "0x01BB3A79deFc363d2316c8c395F2FAF20B3697D5"
    decimals: 6
  - symbol: weth
    address: "0xFC92d1864F6Fa41059c793935A295d29b63d9E46"
`)

	cfg, err := Load([]string{"--env", "", "--config", path})
	require.NoError(t, err)

	assert.Equal(t, "@every 10m", cfg.Schedule)
	assert.Equal(t, 4*time.Minute, cfg.CycleTimeout)
	// omitted keys keep defaults
	assert.Equal(t, 20*time.Second, cfg.SnapshotTimeout)
	assert.True(t, cfg.Strategy.PriceDropThreshold.Equal(decimal.NewFromInt(-3)))
	assert.True(t, cfg.Strategy.PriceRiseThreshold.Equal(decimal.NewFromInt(5)))
	assert.True(t, cfg.Strategy.MaxExposurePercent.Equal(decimal.NewFromInt(65)))
	assert.Equal(t, "USDC", cfg.Strategy.AssetA)
	assert.Equal(t, "WETH", cfg.Strategy.AssetB)
	assert.Equal(t, uint8(6), cfg.Assets[0].Decimals)
	assert.Equal(t, MarketBybit, cfg.Market.Provider)
	assert.Equal(t, uint32(500), cfg.Pool().Fee)
	assert.Equal(t, cfg.Assets[0].Address.Hex(), cfg.Pool().Currency0)
}

func TestLoad_SecretsFromEnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "ORBIT_LLM_API_KEY=from-file\nORBIT_TELEGRAM_TOKEN=tg-token\n")
	t.Setenv(EnvTelegramToken, "from-process")

	cfg, err := Load([]string{"--env", envPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Unsetenv(EnvLLMAPIKey) })

	assert.Equal(t, "from-file", cfg.Secrets.LLMAPIKey)
	// the process environment wins over the file
	assert.Equal(t, "from-process", cfg.Secrets.TelegramToken)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load([]string{"--env", filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)
}

func TestLoad_ChainRequiresPrivateKey(t *testing.T) {
	t.Setenv(EnvPrivateKey, "")

	_, err := Load([]string{"--env", "", "--platform", "chain"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvPrivateKey)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{name: "platform", args: []string{"--platform", "hyperliquid"}, msg: "unsupported platform"},
		{name: "market", args: []string{"--market", "kraken"}, msg: "unsupported market provider"},
		{name: "pair", args: []string{"--pair", "ETHUSDT"}, msg: "pair"},
		{name: "schedule", args: []string{"--schedule", " "}, msg: "schedule is required"},
		{name: "tls without http", args: []string{"--http", "", "--tls-domains", "orbit.example.com"}, msg: "tls domains require an HTTP listen address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(append([]string{"--env", ""}, tt.args...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestBuild_InvalidValues(t *testing.T) {
	tmp := Default()
	tmp.Strategy.PriceRiseThreshold = "five"
	_, err := tmp.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price_rise_threshold")

	tmp = Default()
	tmp.Assets[1].Address = "0x123"
	_, err = tmp.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assets[1].address")

	tmp = Default()
	tmp.Assets = tmp.Assets[:1]
	_, err = tmp.Build()
	require.Error(t, err)
}

func TestValidate_StrategyAssetsMustBeMonitored(t *testing.T) {
	tmp := Default()
	tmp.Strategy.AssetB = "WBTC"
	cfg, err := tmp.Build()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be monitored")
}

func TestValidate_StrategyThresholds(t *testing.T) {
	tmp := Default()
	tmp.Strategy.PriceDropThreshold = "5"
	cfg, err := tmp.Build()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")
}
