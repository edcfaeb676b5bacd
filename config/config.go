package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/orbit/internal/domain"
)

const (
	PlatformSimulate = "simulate"
	PlatformChain    = "chain"

	MarketBinance     = "binance"
	MarketBybit       = "bybit"
	MarketCoinGecko   = "coingecko"
	MarketHyperliquid = "hyperliquid"
)

// Environment variables holding secrets. Secrets are never read from yaml or flags.
const (
	EnvPrivateKey       = "ORBIT_PRIVATE_KEY"
	EnvLLMAPIKey        = "ORBIT_LLM_API_KEY"
	EnvTelegramToken    = "ORBIT_TELEGRAM_TOKEN"
	EnvTelegramChatID   = "ORBIT_TELEGRAM_CHAT_ID"
	EnvRedisPassword    = "ORBIT_REDIS_PASSWORD"
	EnvBinanceAPIKey    = "BINANCE_API_KEY"
	EnvBinanceAPISecret = "BINANCE_API_SECRET"
	EnvBybitAPIKey      = "BYBIT_API_KEY"
	EnvBybitAPISecret   = "BYBIT_API_SECRET"
	EnvCoinGeckoAPIKey  = "COINGECKO_API_KEY"
)

// Config is the immutable agent configuration, built once at start-up.
type Config struct {
	Platform        string
	Pair            domain.Pair
	Strategy        domain.StrategyConfig
	Schedule        string
	RunOnStart      bool
	CycleTimeout    time.Duration
	PhaseTimeout    time.Duration
	SnapshotTimeout time.Duration
	// Cooldown minimum time between two successful rebalances of the same action, 0 disables it.
	Cooldown time.Duration
	HTTPAddr string
	// TLSDomains enables automatic ACME certificates for the web surface when set.
	TLSDomains  []string
	TLSCacheDir string
	DataDir     string
	Market      MarketConfig
	Chain       ChainConfig
	Assets      []AssetConfig
	LLM         LLMConfig
	Redis       RedisConfig
	Secrets     Secrets
}

type MarketConfig struct {
	Provider   string
	BaseURL    string
	MaxRetries int
}

type ChainConfig struct {
	RPCURL  string
	Oracle  common.Address
	Router  common.Address
	Vault   common.Address
	Account common.Address
	// TreasuryOracle multi-asset RWA price feed, zero when not deployed.
	TreasuryOracle common.Address
	Pool           domain.PoolKey
	// ConfirmPollInterval receipt polling period.
	ConfirmPollInterval time.Duration
	// InitialOraclePrice seeds the simulator oracle.
	InitialOraclePrice decimal.Decimal
}

type AssetConfig struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	// InitialBalance seeds the simulator treasury.
	InitialBalance decimal.Decimal
}

type LLMConfig struct {
	APIURL string
	Model  string
}

type RedisConfig struct {
	Addr   string
	DB     int
	Prefix string
}

type Secrets struct {
	PrivateKey       string
	LLMAPIKey        string
	TelegramToken    string
	TelegramChatID   string
	RedisPassword    string
	BinanceAPIKey    string
	BinanceAPISecret string
	BybitAPIKey      string
	BybitAPISecret   string
	CoinGeckoAPIKey  string
}

// ConfigTmp is the yaml representation of Config. Decimals are kept as strings.
type ConfigTmp struct {
	Platform        string        `yaml:"platform"`
	Pair            string        `yaml:"pair"`
	Schedule        string        `yaml:"schedule"`
	RunOnStart      bool          `yaml:"run_on_start"`
	CycleTimeout    time.Duration `yaml:"cycle_timeout,omitempty"`
	PhaseTimeout    time.Duration `yaml:"phase_timeout,omitempty"`
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout,omitempty"`
	Cooldown        time.Duration `yaml:"cooldown,omitempty"`
	HTTPAddr        string        `yaml:"http_addr"`
	TLSDomains      []string      `yaml:"tls_domains,omitempty"`
	TLSCacheDir     string        `yaml:"tls_cache_dir,omitempty"`
	DataDir         string        `yaml:"data_dir"`
	Strategy        StrategyTmp   `yaml:"strategy"`
	Market          MarketTmp     `yaml:"market"`
	Chain           ChainTmp      `yaml:"chain"`
	Assets          []AssetTmp    `yaml:"assets"`
	LLM             LLMTmp        `yaml:"llm,omitempty"`
	Redis           RedisTmp      `yaml:"redis,omitempty"`
}

type StrategyTmp struct {
	AssetA               string `yaml:"asset_a,omitempty"`
	AssetB               string `yaml:"asset_b,omitempty"`
	PriceDropThreshold   string `yaml:"price_drop_threshold,omitempty"`
	PriceRiseThreshold   string `yaml:"price_rise_threshold,omitempty"`
	MaxExposurePercent   string `yaml:"max_exposure_percent,omitempty"`
	TargetBalancePercent string `yaml:"target_balance_percent,omitempty"`
	TradeSize            string `yaml:"trade_size,omitempty"`
}

type MarketTmp struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

type ChainTmp struct {
	RPCURL              string        `yaml:"rpc_url,omitempty"`
	OracleAddress       string        `yaml:"oracle_address,omitempty"`
	RouterAddress       string        `yaml:"router_address,omitempty"`
	VaultAddress        string        `yaml:"vault_address,omitempty"`
	Account             string        `yaml:"account,omitempty"`
	TreasuryOracle      string        `yaml:"treasury_oracle_address,omitempty"`
	PoolCurrency0       string        `yaml:"pool_currency0,omitempty"`
	PoolCurrency1       string        `yaml:"pool_currency1,omitempty"`
	PoolFee             uint32        `yaml:"pool_fee,omitempty"`
	PoolTickSpacing     int32         `yaml:"pool_tick_spacing,omitempty"`
	HookAddress         string        `yaml:"hook_address,omitempty"`
	ConfirmPollInterval time.Duration `yaml:"confirm_poll_interval,omitempty"`
	InitialOraclePrice  string        `yaml:"initial_oracle_price,omitempty"`
}

type AssetTmp struct {
	Symbol         string `yaml:"symbol"`
	Address        string `yaml:"address"`
	Decimals       uint8  `yaml:"decimals,omitempty"`
	InitialBalance string `yaml:"initial_balance,omitempty"`
}

type LLMTmp struct {
	APIURL string `yaml:"api_url,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

type RedisTmp struct {
	Addr   string `yaml:"addr,omitempty"`
	DB     int    `yaml:"db,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
}

// Default returns the configuration the agent starts with when nothing is overridden.
func Default() ConfigTmp {
	return ConfigTmp{
		Platform:        PlatformSimulate,
		Pair:            "ETH_USDT",
		Schedule:        "@every 5m",
		RunOnStart:      true,
		CycleTimeout:    6 * time.Minute,
		PhaseTimeout:    2 * time.Minute,
		SnapshotTimeout: 20 * time.Second,
		HTTPAddr:        ":8080",
		TLSCacheDir:     "cert-cache",
		DataDir:         "./wal",
		Market: MarketTmp{
			Provider:   MarketBinance,
			MaxRetries: 3,
		},
		Chain: ChainTmp{
			RPCURL:              "https://rpc.testnet.arc.network",
			OracleAddress:       "0x9e2851a6E9fFA4433a38B74f6bD08e519A782940",
			RouterAddress:       "0xd008402c0ff6ca1f2e60e8df12324540e402ac5e",
			VaultAddress:        "0x9370dDf91b63cF5b2aa0c89BdC9D41209f24615F",
			PoolFee:             3000,
			PoolTickSpacing:     60,
			HookAddress:         "0x61646A74c7eEEFCf870eBd0a9c239249FF4cC080",
			ConfirmPollInterval: 2 * time.Second,
			InitialOraclePrice:  "2000",
		},
		Assets: []AssetTmp{
			{Symbol: "TOKEN0", Address: "0x8Ad8467aDb93F705ADB008f2719c16a2733Df758", Decimals: 18, InitialBalance: "100"},
			{Symbol: "TOKEN1", Address: "0xb16cadd174034aBAB6af36DC8320714e35a15f25", Decimals: 18, InitialBalance: "100"},
		},
		LLM: LLMTmp{
			APIURL: "https://api.openai.com/v1/chat/completions",
			Model:  "gpt-4o-mini",
		},
		Redis: RedisTmp{Prefix: "orbit:"},
	}
}

// Get reads the configuration from os.Args.
func Get() (Config, error) {
	return Load(os.Args[1:])
}

// Load parses args: --config path.yaml, or CLI flags on top of the defaults.
// Variables from the --env file are loaded first and never override the process environment.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("orbit", flag.ContinueOnError)
	path := fs.String("config", "", "path to yaml config")
	envFile := fs.String("env", ".env", "path to env file with secrets")

	def := Default()
	platform := fs.String("platform", def.Platform, "execution platform: simulate or chain")
	pair := fs.String("pair", def.Pair, "reference pair, example: ETH_USDT")
	market := fs.String("market", def.Market.Provider, "market data provider: binance, bybit, coingecko or hyperliquid")
	schedule := fs.String("schedule", def.Schedule, "cron spec of autonomous cycles, example: @every 5m")
	runOnStart := fs.Bool("run-on-start", def.RunOnStart, "run one cycle at start-up")
	rpcURL := fs.String("rpc", def.Chain.RPCURL, "chain RPC endpoint")
	httpAddr := fs.String("http", def.HTTPAddr, "HTTP listen address, empty disables the web surface")
	tlsDomains := fs.String("tls-domains", "", "comma-separated domains served over HTTPS with ACME certificates")
	dataDir := fs.String("data-dir", def.DataDir, "directory of the journals")
	cooldown := fs.Duration("cooldown", def.Cooldown, "minimum time between rebalances of the same kind")
	redisAddr := fs.String("redis", def.Redis.Addr, "redis address of the distributed cycle lock")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if *path != "" {
		parsed, err := readYaml(*path)
		if err != nil {
			return Config{}, err
		}
		tmp = parsed
	} else {
		tmp = def
		tmp.Platform = *platform
		tmp.Pair = *pair
		tmp.Market.Provider = *market
		tmp.Schedule = *schedule
		tmp.RunOnStart = *runOnStart
		tmp.Chain.RPCURL = *rpcURL
		tmp.HTTPAddr = *httpAddr
		tmp.TLSDomains = splitList(*tlsDomains)
		tmp.DataDir = *dataDir
		tmp.Cooldown = *cooldown
		tmp.Redis.Addr = *redisAddr
	}

	cfg, err := tmp.Build()
	if err != nil {
		return Config{}, err
	}
	cfg.Secrets = secretsFromEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// readYaml decodes path on top of the defaults, so omitted keys keep their default values.
func readYaml(path string) (ConfigTmp, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return ConfigTmp{}, errors.Wrapf(err, "read config %s", path)
	}

	tmp := Default()
	tmp.Assets = nil
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return ConfigTmp{}, errors.Wrapf(err, "parse config %s", path)
	}
	if len(tmp.Assets) == 0 {
		tmp.Assets = Default().Assets
	}

	return tmp, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "load env file %s", path)
	}

	return nil
}

func secretsFromEnv() Secrets {
	return Secrets{
		PrivateKey:       strings.TrimSpace(os.Getenv(EnvPrivateKey)),
		LLMAPIKey:        os.Getenv(EnvLLMAPIKey),
		TelegramToken:    os.Getenv(EnvTelegramToken),
		TelegramChatID:   os.Getenv(EnvTelegramChatID),
		RedisPassword:    os.Getenv(EnvRedisPassword),
		BinanceAPIKey:    os.Getenv(EnvBinanceAPIKey),
		BinanceAPISecret: os.Getenv(EnvBinanceAPISecret),
		BybitAPIKey:      os.Getenv(EnvBybitAPIKey),
		BybitAPISecret:   os.Getenv(EnvBybitAPISecret),
		CoinGeckoAPIKey:  os.Getenv(EnvCoinGeckoAPIKey),
	}
}

// Build converts the yaml representation into Config. Empty strategy values fall back to the defaults.
func (c ConfigTmp) Build() (Config, error) {
	pair, err := domain.ParsePair(c.Pair)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pair' param in config: %w", err)
	}

	assets := make([]AssetConfig, 0, len(c.Assets))
	for i, a := range c.Assets {
		addr, err := parseAddress(fmt.Sprintf("assets[%d].address", i), a.Address)
		if err != nil {
			return Config{}, err
		}
		balance, err := parseDecimal(fmt.Sprintf("assets[%d].initial_balance", i), a.InitialBalance, decimal.Zero)
		if err != nil {
			return Config{}, err
		}
		assets = append(assets, AssetConfig{
			Symbol:         strings.ToUpper(strings.TrimSpace(a.Symbol)),
			Address:        addr,
			Decimals:       a.Decimals,
			InitialBalance: balance,
		})
	}
	if len(assets) < 2 {
		return Config{}, errors.New("at least two assets are required")
	}

	strategy, err := c.Strategy.build(pair, assets)
	if err != nil {
		return Config{}, err
	}

	chain, err := c.Chain.build(assets)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Platform:        strings.ToLower(strings.TrimSpace(c.Platform)),
		Pair:            pair,
		Strategy:        strategy,
		Schedule:        strings.TrimSpace(c.Schedule),
		RunOnStart:      c.RunOnStart,
		CycleTimeout:    c.CycleTimeout,
		PhaseTimeout:    c.PhaseTimeout,
		SnapshotTimeout: c.SnapshotTimeout,
		Cooldown:        c.Cooldown,
		HTTPAddr:        c.HTTPAddr,
		TLSDomains:      splitList(strings.Join(c.TLSDomains, ",")),
		TLSCacheDir:     c.TLSCacheDir,
		DataDir:         c.DataDir,
		Market: MarketConfig{
			Provider:   strings.ToLower(strings.TrimSpace(c.Market.Provider)),
			BaseURL:    c.Market.BaseURL,
			MaxRetries: c.Market.MaxRetries,
		},
		Chain:  chain,
		Assets: assets,
		LLM:    LLMConfig{APIURL: c.LLM.APIURL, Model: c.LLM.Model},
		Redis:  RedisConfig{Addr: c.Redis.Addr, DB: c.Redis.DB, Prefix: c.Redis.Prefix},
	}, nil
}

func (s StrategyTmp) build(pair domain.Pair, assets []AssetConfig) (domain.StrategyConfig, error) {
	def := domain.DefaultStrategyConfig()

	cfg := domain.StrategyConfig{
		BaseAsset: pair.From,
		AssetA:    strings.ToUpper(strings.TrimSpace(s.AssetA)),
		AssetB:    strings.ToUpper(strings.TrimSpace(s.AssetB)),
	}
	if cfg.AssetA == "" {
		cfg.AssetA = assets[0].Symbol
	}
	if cfg.AssetB == "" {
		cfg.AssetB = assets[1].Symbol
	}

	var err error
	if cfg.PriceDropThreshold, err = parseDecimal("price_drop_threshold", s.PriceDropThreshold, def.PriceDropThreshold); err != nil {
		return domain.StrategyConfig{}, err
	}
	if cfg.PriceRiseThreshold, err = parseDecimal("price_rise_threshold", s.PriceRiseThreshold, def.PriceRiseThreshold); err != nil {
		return domain.StrategyConfig{}, err
	}
	if cfg.MaxExposurePercent, err = parseDecimal("max_exposure_percent", s.MaxExposurePercent, def.MaxExposurePercent); err != nil {
		return domain.StrategyConfig{}, err
	}
	if cfg.TargetBalancePercent, err = parseDecimal("target_balance_percent", s.TargetBalancePercent, def.TargetBalancePercent); err != nil {
		return domain.StrategyConfig{}, err
	}
	if cfg.TradeSize, err = parseDecimal("trade_size", s.TradeSize, def.TradeSize); err != nil {
		return domain.StrategyConfig{}, err
	}

	return cfg, nil
}

func (c ChainTmp) build(assets []AssetConfig) (ChainConfig, error) {
	oracle, err := parseAddress("chain.oracle_address", c.OracleAddress)
	if err != nil {
		return ChainConfig{}, err
	}
	router, err := parseAddress("chain.router_address", c.RouterAddress)
	if err != nil {
		return ChainConfig{}, err
	}
	vault, err := parseOptionalAddress("chain.vault_address", c.VaultAddress)
	if err != nil {
		return ChainConfig{}, err
	}
	account, err := parseOptionalAddress("chain.account", c.Account)
	if err != nil {
		return ChainConfig{}, err
	}
	hooks, err := parseOptionalAddress("chain.hook_address", c.HookAddress)
	if err != nil {
		return ChainConfig{}, err
	}
	treasuryOracle, err := parseOptionalAddress("chain.treasury_oracle_address", c.TreasuryOracle)
	if err != nil {
		return ChainConfig{}, err
	}

	currency0, currency1 := assets[0].Address, assets[1].Address
	if c.PoolCurrency0 != "" {
		if currency0, err = parseAddress("chain.pool_currency0", c.PoolCurrency0); err != nil {
			return ChainConfig{}, err
		}
	}
	if c.PoolCurrency1 != "" {
		if currency1, err = parseAddress("chain.pool_currency1", c.PoolCurrency1); err != nil {
			return ChainConfig{}, err
		}
	}

	price, err := parseDecimal("chain.initial_oracle_price", c.InitialOraclePrice, decimal.Zero)
	if err != nil {
		return ChainConfig{}, err
	}

	return ChainConfig{
		RPCURL:         strings.TrimSpace(c.RPCURL),
		Oracle:         oracle,
		Router:         router,
		Vault:          vault,
		Account:        account,
		TreasuryOracle: treasuryOracle,
		Pool: domain.PoolKey{
			Currency0:   currency0.Hex(),
			Currency1:   currency1.Hex(),
			Fee:         c.PoolFee,
			TickSpacing: c.PoolTickSpacing,
			Hooks:       hooks.Hex(),
		},
		ConfirmPollInterval: c.ConfirmPollInterval,
		InitialOraclePrice:  price,
	}, nil
}

// Validate checks cross-field constraints, including the secrets the platform needs.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformSimulate:
	case PlatformChain:
		if c.Chain.RPCURL == "" {
			return errors.New("chain platform requires an RPC URL")
		}
		if c.Secrets.PrivateKey == "" {
			return fmt.Errorf("chain platform requires %s to be set", EnvPrivateKey)
		}
	default:
		return fmt.Errorf("unsupported platform %q, expected %s or %s", c.Platform, PlatformSimulate, PlatformChain)
	}

	switch c.Market.Provider {
	case MarketBinance, MarketBybit, MarketCoinGecko, MarketHyperliquid:
	default:
		return fmt.Errorf("unsupported market provider %q", c.Market.Provider)
	}

	if c.Schedule == "" {
		return errors.New("schedule is required")
	}
	if len(c.TLSDomains) > 0 && c.HTTPAddr == "" {
		return errors.New("tls domains require an HTTP listen address")
	}
	if c.Pool().Fee >= 1_000_000 {
		return fmt.Errorf("pool fee %d must be below 1000000", c.Pool().Fee)
	}

	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return errors.New("asset symbol is required")
		}
		if seen[a.Symbol] {
			return fmt.Errorf("duplicate asset %s", a.Symbol)
		}
		seen[a.Symbol] = true
	}
	if !seen[c.Strategy.AssetA] || !seen[c.Strategy.AssetB] {
		return fmt.Errorf("strategy assets %s and %s must be monitored", c.Strategy.AssetA, c.Strategy.AssetB)
	}

	return errors.Wrap(c.Strategy.Validate(), "invalid strategy")
}

// Pool returns the key of the pool swaps run against.
func (c Config) Pool() domain.PoolKey {
	return c.Chain.Pool
}

func parseDecimal(field, raw string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param in config (must be a decimal), error: %w", field, err)
	}

	return d, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("incorrect '%s' param in config: %q is not a hex address", field, raw)
	}

	return common.HexToAddress(raw), nil
}

func parseOptionalAddress(field, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, nil
	}

	return parseAddress(field, raw)
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
