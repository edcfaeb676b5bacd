package market

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// hyperliquidTokens maps common symbols to the wrapped spot tokens listed on Hyperliquid.
var hyperliquidTokens = map[string]string{
	"ETH":  "UETH",
	"BTC":  "UBTC",
	"SOL":  "USOL",
	"USDT": "USDC",
	"USD":  "USDC",
}

type spotContextReader interface {
	SpotMetaAndAssetCtxs(ctx context.Context) (*hyperliquid.SpotMetaAndAssetCtxs, error)
}

// HyperliquidProvider reads spot mark prices and the previous day price from the Info API.
type HyperliquidProvider struct {
	info  spotContextReader
	quote string
	now   func() time.Time
}

// NewHyperliquidProvider quotes assets against quote. USD stablecoins resolve to USDC,
// the only quote token of the Hyperliquid spot book.
func NewHyperliquidProvider(info *hyperliquid.Info, quote string) *HyperliquidProvider {
	return newHyperliquidProvider(info, quote)
}

func newHyperliquidProvider(info spotContextReader, quote string) *HyperliquidProvider {
	return &HyperliquidProvider{info: info, quote: hyperliquidToken(quote), now: time.Now}
}

func (p *HyperliquidProvider) GetMarketSnapshot(ctx context.Context, asset string) (domain.MarketSnapshot, error) {
	symbol := strings.ToUpper(asset)
	base := hyperliquidToken(symbol)

	res, err := p.info.SpotMetaAndAssetCtxs(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrapf(err, "hyperliquid spot contexts for %s", symbol)
	}
	if res == nil {
		return domain.MarketSnapshot{}, errors.Wrapf(ErrNoData, "hyperliquid returned no spot contexts")
	}

	coin, ok := spotCoin(res.Meta, base, p.quote)
	if !ok {
		return domain.MarketSnapshot{}, errors.Wrapf(ErrNoData, "hyperliquid has no %s/%s spot market", base, p.quote)
	}

	for _, c := range res.Ctxs {
		if c.Coin != coin {
			continue
		}

		price, err := parseDecimal("mark price", c.MarkPx)
		if err != nil {
			return domain.MarketSnapshot{}, err
		}
		prev, err := parseDecimal("previous day price", c.PrevDayPx)
		if err != nil {
			return domain.MarketSnapshot{}, err
		}

		change := decimal.Zero
		if prev.IsPositive() {
			change = price.Div(prev).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Round(4)
		}

		return domain.MarketSnapshot{
			Asset:      symbol,
			Price:      price,
			Change24h:  change,
			ObservedAt: p.now(),
		}, nil
	}

	return domain.MarketSnapshot{}, errors.Wrapf(ErrNoData, "hyperliquid returned no context for %s", coin)
}

// spotCoin resolves the coin name ("PURR/USDC" or "@151") of the base/quote spot market.
func spotCoin(meta hyperliquid.SpotMeta, base, quote string) (string, bool) {
	names := make(map[int]string, len(meta.Tokens))
	for _, t := range meta.Tokens {
		names[t.Index] = strings.ToUpper(t.Name)
	}

	for _, u := range meta.Universe {
		if len(u.Tokens) != 2 {
			continue
		}
		if names[u.Tokens[0]] == base && names[u.Tokens[1]] == quote {
			return u.Name, true
		}
	}

	return "", false
}

func hyperliquidToken(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if t, ok := hyperliquidTokens[symbol]; ok {
		return t
	}
	return symbol
}
