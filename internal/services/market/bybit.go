package market

import (
	"context"
	"strings"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// BybitProvider reads V5 spot tickers.
type BybitProvider struct {
	client *bybit.Client
	quote  string
}

// NewBybitProvider quotes assets against quote, e.g. USDT.
func NewBybitProvider(client *bybit.Client, quote string) *BybitProvider {
	return &BybitProvider{client: client, quote: strings.ToUpper(quote)}
}

// GetMarketSnapshot fetches the ticker. The bybit client has no context support, so ctx
// is only checked before the request.
func (p *BybitProvider) GetMarketSnapshot(ctx context.Context, asset string) (domain.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.MarketSnapshot{}, err
	}

	pair := domain.Pair{From: strings.ToUpper(asset), To: p.quote}
	symbol := bybit.SymbolV5(pair.Symbol())

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrapf(err, "bybit tickers for %s", pair.String())
	}
	if len(result.Result.Spot.List) == 0 {
		return domain.MarketSnapshot{}, errors.Wrapf(ErrNoData, "bybit returned no ticker for %s", pair.String())
	}

	item := result.Result.Spot.List[0]

	price, err := parseDecimal("last price", item.LastPrice)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	// bybit reports the change as a fraction, e.g. -0.0568
	fraction, err := parseDecimal("24h change", item.Price24HPcnt)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	return domain.MarketSnapshot{
		Asset:      pair.From,
		Price:      price,
		Change24h:  fraction.Mul(decimal.NewFromInt(100)),
		ObservedAt: time.Now(),
	}, nil
}
