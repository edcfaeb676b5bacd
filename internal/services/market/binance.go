package market

import (
	"context"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// BinanceProvider reads the spot 24h rolling ticker.
type BinanceProvider struct {
	client *binance.Client
	quote  string
}

// NewBinanceProvider quotes assets against quote, e.g. USDT.
func NewBinanceProvider(client *binance.Client, quote string) *BinanceProvider {
	return &BinanceProvider{client: client, quote: strings.ToUpper(quote)}
}

func (p *BinanceProvider) GetMarketSnapshot(ctx context.Context, asset string) (domain.MarketSnapshot, error) {
	pair := domain.Pair{From: strings.ToUpper(asset), To: p.quote}

	stats, err := p.client.NewListPriceChangeStatsService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrapf(err, "binance 24h ticker for %s", pair.String())
	}
	if len(stats) == 0 || stats[0] == nil {
		return domain.MarketSnapshot{}, errors.Wrapf(ErrNoData, "binance returned no ticker for %s", pair.String())
	}

	price, err := parseDecimal("last price", stats[0].LastPrice)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	change, err := parseDecimal("price change percent", stats[0].PriceChangePercent)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	observedAt := time.Now()
	if stats[0].CloseTime > 0 {
		observedAt = time.UnixMilli(stats[0].CloseTime)
	}

	return domain.MarketSnapshot{
		Asset:      pair.From,
		Price:      price,
		Change24h:  change,
		ObservedAt: observedAt,
	}, nil
}
