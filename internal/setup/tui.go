// Package setup is the terminal wizard that writes the agent yaml config.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/orbit/config"
	"github.com/vadiminshakov/orbit/internal/domain"
)

// DefaultPath is where the wizard writes the config when no path is given.
const DefaultPath = "orbit.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers collects the wizard inputs as typed by the operator.
type answers struct {
	platform      string
	pair          string
	market        string
	schedule      string
	dropThreshold string
	riseThreshold string
	maxExposure   string
	targetBalance string
	tradeSize     string
	rpcURL        string
	oracle        string
	router        string
	vault         string
	llmModel      string
}

func defaultAnswers() answers {
	def := config.Default()
	strategy := domain.DefaultStrategyConfig()

	return answers{
		platform:      def.Platform,
		pair:          def.Pair,
		market:        def.Market.Provider,
		schedule:      def.Schedule,
		dropThreshold: strategy.PriceDropThreshold.String(),
		riseThreshold: strategy.PriceRiseThreshold.String(),
		maxExposure:   strategy.MaxExposurePercent.String(),
		targetBalance: strategy.TargetBalancePercent.String(),
		tradeSize:     strategy.TradeSize.String(),
		rpcURL:        def.Chain.RPCURL,
		oracle:        def.Chain.OracleAddress,
		router:        def.Chain.RouterAddress,
		vault:         def.Chain.VaultAddress,
		llmModel:      def.LLM.Model,
	}
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) (string, error) {
	if path == "" {
		path = DefaultPath
	}
	a := defaultAnswers()
	var confirm bool

	// step 1: welcome
	header()
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's put the treasury on autopilot.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the agent execute?").
				Options(
					huh.NewOption("Simulation (local chain state)", config.PlatformSimulate),
					huh.NewOption("On-chain (requires ORBIT_PRIVATE_KEY)", config.PlatformChain),
				).
				Value(&a.platform),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// market
	header()
	fmt.Println(stepStyle.Render("STEP 2: MARKET"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Reference Pair").
				Description("Must contain underscore (e.g. ETH_USDT)").
				Value(&a.pair).
				Validate(validatePair),
			huh.NewSelect[string]().
				Title("Market Data Provider").
				Options(
					huh.NewOption("Binance", config.MarketBinance),
					huh.NewOption("Bybit", config.MarketBybit),
					huh.NewOption("CoinGecko", config.MarketCoinGecko),
					huh.NewOption("Hyperliquid", config.MarketHyperliquid),
				).
				Value(&a.market),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// schedule
	header()
	fmt.Println(stepStyle.Render("STEP 3: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cycle Schedule").
				Description("Cron spec (e.g. @every 5m, */15 * * * *)").
				Value(&a.schedule).
				Validate(validateSchedule),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// thresholds
	header()
	fmt.Println(stepStyle.Render("STEP 4: REBALANCING RULES"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Price Drop Threshold %").
				Description("Negative 24h change that triggers a move to the stable asset (e.g. -5)").
				Value(&a.dropThreshold).
				Validate(validateNegative),
			huh.NewInput().
				Title("Price Rise Threshold %").
				Description("Positive 24h change that triggers a move to the volatile asset (e.g. 5)").
				Value(&a.riseThreshold).
				Validate(validatePositive),
			huh.NewInput().
				Title("Max Exposure %").
				Description("Largest share a single asset may hold (1-100)").
				Value(&a.maxExposure).
				Validate(validatePercent),
			huh.NewInput().
				Title("Target Balance %").
				Value(&a.targetBalance).
				Validate(validatePercent),
			huh.NewInput().
				Title("Trade Size").
				Description("Exact-input swap amount in asset0 units (e.g. 0.01)").
				Value(&a.tradeSize).
				Validate(validatePositive),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// chain
	header()
	fmt.Println(stepStyle.Render("STEP 5: CONTRACTS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("RPC URL").
				Value(&a.rpcURL),
			huh.NewInput().
				Title("Oracle Address").
				Value(&a.oracle).
				Validate(validateAddress),
			huh.NewInput().
				Title("Swap Router Address").
				Value(&a.router).
				Validate(validateAddress),
			huh.NewInput().
				Title("Vault Address").
				Description("Leave empty to disable vault stats").
				Value(&a.vault).
				Validate(validateOptionalAddress),
			huh.NewInput().
				Title("Narrator Model").
				Description("Used only when ORBIT_LLM_API_KEY is set").
				Value(&a.llmModel),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// confirmation
	header()
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s\nPair: %s\nMarket: %s\nSchedule: %s\nDrop/Rise: %s%% / %s%%\nMax exposure: %s%%\nTrade size: %s\n",
		a.platform, a.pair, a.market, a.schedule, a.dropThreshold, a.riseThreshold, a.maxExposure, a.tradeSize,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	if err := writeConfig(path, a.toConfig()); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("\n✓ Configuration saved to %s\nSecrets are read from the environment (%s, %s, %s).\nStarting agent...",
		path, config.EnvPrivateKey, config.EnvLLMAPIKey, config.EnvTelegramToken)
	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(msg))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message

	return path, nil
}

func header() {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("ORBIT TREASURY WIZARD"))
}

func (a answers) toConfig() config.ConfigTmp {
	cfg := config.Default()
	cfg.Platform = a.platform
	cfg.Pair = strings.ToUpper(strings.TrimSpace(a.pair))
	cfg.Market.Provider = a.market
	cfg.Schedule = strings.TrimSpace(a.schedule)
	cfg.Strategy = config.StrategyTmp{
		PriceDropThreshold:   strings.TrimSpace(a.dropThreshold),
		PriceRiseThreshold:   strings.TrimSpace(a.riseThreshold),
		MaxExposurePercent:   strings.TrimSpace(a.maxExposure),
		TargetBalancePercent: strings.TrimSpace(a.targetBalance),
		TradeSize:            strings.TrimSpace(a.tradeSize),
	}
	cfg.Chain.RPCURL = strings.TrimSpace(a.rpcURL)
	cfg.Chain.OracleAddress = strings.TrimSpace(a.oracle)
	cfg.Chain.RouterAddress = strings.TrimSpace(a.router)
	cfg.Chain.VaultAddress = strings.TrimSpace(a.vault)
	cfg.LLM.Model = strings.TrimSpace(a.llmModel)

	return cfg
}

func writeConfig(path string, cfg config.ConfigTmp) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

func validatePair(s string) error {
	if s == "" {
		return fmt.Errorf("pair cannot be empty")
	}
	if !strings.Contains(s, "_") {
		return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. ETH_USDT)")
	}
	_, err := domain.ParsePair(s)
	return err
}

func validateSchedule(s string) error {
	if _, err := cron.ParseStandard(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	return nil
}

func parseNumber(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("must be a valid number")
	}
	return d, nil
}

func validateNegative(s string) error {
	d, err := parseNumber(s)
	if err != nil {
		return err
	}
	if !d.IsNegative() {
		return fmt.Errorf("must be negative")
	}
	return nil
}

func validatePositive(s string) error {
	d, err := parseNumber(s)
	if err != nil {
		return err
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validatePercent(s string) error {
	d, err := parseNumber(s)
	if err != nil {
		return err
	}
	if d.LessThan(decimal.NewFromInt(1)) || d.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("must be between 1 and 100")
	}
	return nil
}

func validateAddress(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("must be a 0x-prefixed 20-byte hex address")
	}
	return nil
}

func validateOptionalAddress(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validateAddress(s)
}
