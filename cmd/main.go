// Command orbit runs the autonomous treasury rebalancing agent.
// Each cycle reads the reference market, the on-chain oracle and the treasury balances,
// decides whether to rebalance and executes the oracle update followed by the swap.
//
// Usage:
//
//	orbit --config orbit.yaml
//	orbit --platform simulate --pair ETH_USDT (uses CLI arguments)
//	orbit setup (interactive wizard, then starts with the generated config)
//
// Secrets are read from the environment or a .env file:
//
//	ORBIT_PRIVATE_KEY (chain platform), ORBIT_LLM_API_KEY, ORBIT_TELEGRAM_TOKEN,
//	ORBIT_TELEGRAM_CHAT_ID, ORBIT_REDIS_PASSWORD
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/orbit/config"
	"github.com/vadiminshakov/orbit/internal/agent"
	"github.com/vadiminshakov/orbit/internal/chain"
	"github.com/vadiminshakov/orbit/internal/chat"
	"github.com/vadiminshakov/orbit/internal/clients"
	"github.com/vadiminshakov/orbit/internal/events"
	"github.com/vadiminshakov/orbit/internal/notify"
	"github.com/vadiminshakov/orbit/internal/services/decision"
	"github.com/vadiminshakov/orbit/internal/services/execution"
	"github.com/vadiminshakov/orbit/internal/services/exposure"
	"github.com/vadiminshakov/orbit/internal/services/guard"
	"github.com/vadiminshakov/orbit/internal/services/market"
	"github.com/vadiminshakov/orbit/internal/services/oracle"
	"github.com/vadiminshakov/orbit/internal/services/treasury"
	"github.com/vadiminshakov/orbit/internal/setup"
	"github.com/vadiminshakov/orbit/internal/storage/cycles"
	"github.com/vadiminshakov/orbit/internal/storage/exposures"
	"github.com/vadiminshakov/orbit/internal/storage/intents"
	"github.com/vadiminshakov/orbit/internal/storage/simstate"
	"github.com/vadiminshakov/orbit/internal/web"
)

const progressBuffer = 32

func main() {
	var (
		cfg config.Config
		err error
	)
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		path, tuiErr := setup.RunTUI("")
		if tuiErr != nil {
			log.Fatal(tuiErr)
		}
		cfg, err = config.Load([]string{"--config", path})
	} else {
		cfg, err = config.Get()
	}
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Fatal("agent stopped", zap.Error(err))
	}
	logger.Info("agent stopped")
}

// chainStack is what the agent needs from the chain, real or simulated.
type chainStack struct {
	caller  chain.Caller
	oracle  execution.OracleUpdater
	swapper execution.SwapExecutor
	account common.Address
	close   func()
}

func run(ctx context.Context, l *zap.Logger, cfg config.Config) error {
	l = l.With(zap.String("platform", cfg.Platform))

	stack, err := buildChain(ctx, l, cfg)
	if err != nil {
		return err
	}
	defer stack.close()

	// the simulator only holds balances for its own account
	account := stack.account
	if cfg.Platform == config.PlatformChain && cfg.Chain.Account != (common.Address{}) {
		account = cfg.Chain.Account
	}

	marketProvider, err := buildMarket(ctx, l, cfg)
	if err != nil {
		return err
	}

	assets := make([]exposure.Asset, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		assets = append(assets, exposure.Asset{Symbol: a.Symbol, Address: a.Address, Decimals: a.Decimals})
	}
	monitor, err := exposure.NewMonitor(l.Named("exposure"), stack.caller, assets)
	if err != nil {
		return errors.Wrap(err, "create exposure monitor")
	}
	oracleReader := oracle.NewReader(l.Named("oracle"), stack.caller, cfg.Chain.Oracle)
	treasuryReader := oracle.NewTreasuryReader(l.Named("treasury_oracle"), stack.caller, cfg.Chain.TreasuryOracle, oracle.DefaultTreasuryFeeds)

	cycleStore, err := cycles.NewWALStore(filepath.Join(cfg.DataDir, "cycles"))
	if err != nil {
		return err
	}
	defer cycleStore.Close()

	exposureStore, err := exposures.NewWALStore(filepath.Join(cfg.DataDir, "exposures"))
	if err != nil {
		return err
	}
	defer exposureStore.Close()

	intentStore, err := intents.NewWALStore(filepath.Join(cfg.DataDir, "intents"))
	if err != nil {
		return err
	}
	defer intentStore.Close()

	orchestrator := execution.NewOrchestrator(l.Named("execution"), stack.oracle, stack.swapper, cfg.Pool(),
		execution.WithJournal(intentStore),
		execution.WithPhaseTimeout(cfg.PhaseTimeout),
	)

	locker, closeLocker, err := buildLocker(ctx, l, cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	progress := events.NewBroadcaster(progressBuffer)

	var senders []notify.Sender
	if cfg.Secrets.TelegramToken != "" && cfg.Secrets.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Secrets.TelegramToken, cfg.Secrets.TelegramChatID))
	} else {
		l.Info("telegram alerts disabled, token or chat id not set")
	}

	a, err := agent.NewAgent(l.Named("agent"), agent.Config{
		Pair:            cfg.Pair,
		Strategy:        cfg.Strategy,
		Account:         account.Hex(),
		Schedule:        cfg.Schedule,
		RunOnStart:      cfg.RunOnStart,
		SnapshotTimeout: cfg.SnapshotTimeout,
		CycleTimeout:    cfg.CycleTimeout,
	}, agent.Dependencies{
		Market:    marketProvider,
		Oracle:    oracleReader,
		Exposure:  monitor,
		Decider:   decision.NewEngine(),
		Executor:  orchestrator,
		Locker:    locker,
		Cooldown:  guard.NewCooldown(cfg.Cooldown),
		Cycles:    cycleStore,
		Exposures: exposureStore,
		Notifier:  notify.NewNotifier(l.Named("notify"), senders...),
		Progress:  progress,
	})
	if err != nil {
		return err
	}

	chatDeps := chat.Dependencies{
		Runner:   a,
		Market:   marketProvider,
		Oracle:   oracleReader,
		Treasury: treasuryReader,
		Exposure: monitor,
		History:  cycleStore,
	}
	if cfg.Chain.Vault != (common.Address{}) {
		chatDeps.Vault = treasury.NewVault(stack.caller, cfg.Chain.Vault)
	}
	if cfg.Secrets.LLMAPIKey != "" {
		chatDeps.LLM = clients.NewOpenAICompatibleClient(cfg.LLM.APIURL, cfg.Secrets.LLMAPIKey, cfg.LLM.Model)
	} else {
		l.Info("narrator disabled, LLM API key not set")
	}
	chatService := chat.NewService(l.Named("chat"), account.Hex(), chatDeps)

	l.Info("starting agent",
		zap.String("pair", cfg.Pair.String()),
		zap.String("account", account.Hex()),
		zap.String("market", cfg.Market.Provider),
		zap.String("schedule", cfg.Schedule))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Run(gctx)
	})
	if cfg.HTTPAddr != "" {
		server := web.NewServer(l, cfg.HTTPAddr, cfg.CycleTimeout, web.Dependencies{
			Chat:      chatService,
			Runner:    a,
			Cycles:    cycleStore,
			Exposures: exposureStore,
			Progress:  progress,
		})
		g.Go(func() error {
			if len(cfg.TLSDomains) > 0 {
				return server.StartWithAutoTLS(gctx, cfg.TLSDomains, cfg.TLSCacheDir)
			}
			return server.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func buildChain(ctx context.Context, l *zap.Logger, cfg config.Config) (chainStack, error) {
	switch cfg.Platform {
	case config.PlatformSimulate:
		store, err := simstate.NewStore(filepath.Join(cfg.DataDir, "simulate"), cfg.Pair.String())
		if err != nil {
			return chainStack{}, err
		}

		balances := make(map[common.Address]decimal.Decimal, len(cfg.Assets))
		for _, a := range cfg.Assets {
			balances[a.Address] = a.InitialBalance
		}
		sim, err := chain.NewSimulator(l.Named("simulator"), store, chain.SimulatorConfig{
			Oracle:             cfg.Chain.Oracle,
			Vault:              cfg.Chain.Vault,
			TreasuryOracle:     cfg.Chain.TreasuryOracle,
			InitialBalances:    balances,
			InitialOraclePrice: cfg.Chain.InitialOraclePrice,
		})
		if err != nil {
			return chainStack{}, err
		}

		return chainStack{
			caller:  sim,
			oracle:  sim,
			swapper: sim,
			account: sim.Address(),
			close:   func() {},
		}, nil

	case config.PlatformChain:
		signer, err := chain.NewLocalSigner(cfg.Secrets.PrivateKey)
		if err != nil {
			return chainStack{}, err
		}

		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		client, err := chain.Dial(dialCtx, cfg.Chain.RPCURL)
		if err != nil {
			return chainStack{}, err
		}
		if _, err := client.ChainID(dialCtx); err != nil {
			client.Close()
			return chainStack{}, errors.Wrap(err, "read chain id")
		}

		sender := chain.NewTxSender(l.Named("tx"), client, signer, cfg.Chain.ConfirmPollInterval)

		return chainStack{
			caller:  client,
			oracle:  chain.NewOracleUpdater(sender, cfg.Chain.Oracle),
			swapper: chain.NewSwapExecutor(sender, cfg.Chain.Router),
			account: signer.Address(),
			close:   client.Close,
		}, nil
	}

	return chainStack{}, errors.Errorf("unsupported platform %q", cfg.Platform)
}

func buildMarket(ctx context.Context, l *zap.Logger, cfg config.Config) (*market.Retrying, error) {
	var provider market.Provider
	switch cfg.Market.Provider {
	case config.MarketBinance:
		client := clients.NewBinanceClient(cfg.Secrets.BinanceAPIKey, cfg.Secrets.BinanceAPISecret, cfg.Market.BaseURL)
		provider = market.NewBinanceProvider(client, cfg.Pair.To)
	case config.MarketBybit:
		client := clients.NewBybitClient(cfg.Secrets.BybitAPIKey, cfg.Secrets.BybitAPISecret, cfg.Market.BaseURL)
		provider = market.NewBybitProvider(client, cfg.Pair.To)
	case config.MarketCoinGecko:
		provider = market.NewCoinGeckoProvider(cfg.Market.BaseURL, cfg.Secrets.CoinGeckoAPIKey)
	case config.MarketHyperliquid:
		provider = market.NewHyperliquidProvider(clients.NewHyperliquidInfo(ctx, cfg.Market.BaseURL), cfg.Pair.To)
	default:
		return nil, errors.Errorf("unsupported market provider %q", cfg.Market.Provider)
	}

	return market.NewRetrying(l.Named("market"), provider, cfg.Market.MaxRetries, time.Second), nil
}

func buildLocker(ctx context.Context, l *zap.Logger, cfg config.Config) (guard.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		return guard.NewLocalLocker(), func() {}, nil
	}

	locker, err := guard.NewRedisLocker(ctx, l.Named("guard"), cfg.Redis.Addr, cfg.Secrets.RedisPassword, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect redis")
	}

	return locker, func() { _ = locker.Close() }, nil
}
