package oracle

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/orbit/internal/chain"
	"github.com/vadiminshakov/orbit/internal/domain"
)

// TreasurySource tells where treasury prices came from.
type TreasurySource string

const (
	TreasurySourceOracle TreasurySource = "oracle"
	// TreasurySourceDefault the treasury oracle is not deployed.
	TreasurySourceDefault TreasurySource = "default"
	// TreasurySourceFallback the treasury oracle could not be read.
	TreasurySourceFallback TreasurySource = "fallback"
)

// TreasuryFeed one asset published by the treasury oracle, with the value used when it is unreadable.
type TreasuryFeed struct {
	Symbol       string
	YieldBearing bool
	DefaultPrice decimal.Decimal
	DefaultAPY   decimal.Decimal
}

// DefaultTreasuryFeeds assets of the RWA treasury portfolio.
var DefaultTreasuryFeeds = []TreasuryFeed{
	{Symbol: "USDC", DefaultPrice: decimal.NewFromInt(1)},
	{Symbol: "USYC", YieldBearing: true, DefaultPrice: decimal.RequireFromString("1.047"), DefaultAPY: decimal.RequireFromString("4.70")},
	{Symbol: "WETH", DefaultPrice: decimal.NewFromInt(2200)},
	{Symbol: "BUIDL", YieldBearing: true, DefaultPrice: decimal.RequireFromString("1.045"), DefaultAPY: decimal.RequireFromString("4.50")},
}

// TreasuryAsset normalized quote of one feed. Change24h and APYPercent are percentages.
type TreasuryAsset struct {
	Symbol           string          `json:"symbol"`
	Price            decimal.Decimal `json:"price"`
	Change24h        decimal.Decimal `json:"change_24h"`
	APYPercent       decimal.Decimal `json:"apy_percent"`
	StalenessSeconds decimal.Decimal `json:"staleness_seconds"`
	YieldBearing     bool            `json:"yield_bearing"`
}

// TreasuryPrices snapshot of every treasury feed.
type TreasuryPrices struct {
	Source TreasurySource  `json:"source"`
	Oracle common.Address  `json:"oracle"`
	Assets []TreasuryAsset `json:"assets"`
}

// AverageYield mean APY of the yield-bearing assets, zero when there are none.
func (p TreasuryPrices) AverageYield() decimal.Decimal {
	sum, n := decimal.Zero, int64(0)
	for _, a := range p.Assets {
		if a.YieldBearing {
			sum = sum.Add(a.APYPercent)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(n))
}

// TreasuryReader reads RWA asset prices from the treasury oracle.
type TreasuryReader struct {
	l      *zap.Logger
	caller chain.Caller
	oracle common.Address
	feeds  []TreasuryFeed
	now    func() time.Time
}

// NewTreasuryReader creates a reader of feeds. A zero oracle address reports the default prices.
func NewTreasuryReader(l *zap.Logger, caller chain.Caller, oracle common.Address, feeds []TreasuryFeed) *TreasuryReader {
	return &TreasuryReader{l: l, caller: caller, oracle: oracle, feeds: feeds, now: time.Now}
}

// GetTreasuryPrices reads every feed in parallel. On failure it returns the default
// prices marked as fallback together with the error.
func (r *TreasuryReader) GetTreasuryPrices(ctx context.Context) (TreasuryPrices, error) {
	if r.oracle == (common.Address{}) {
		return r.defaults(TreasurySourceDefault), nil
	}

	raw := make([]chain.TreasuryPriceData, len(r.feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range r.feeds {
		g.Go(func() error {
			data, err := chain.ReadTreasuryPriceData(gctx, r.caller, r.oracle, chain.FeedID(feed.Symbol))
			if err != nil {
				return errors.Wrapf(err, "read %s price data", feed.Symbol)
			}
			raw[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.l.Warn("treasury oracle unreadable, using fallback prices", zap.Error(err))
		return r.defaults(TreasurySourceFallback), err
	}

	now := r.now()
	prices := TreasuryPrices{Source: TreasurySourceOracle, Oracle: r.oracle, Assets: make([]TreasuryAsset, 0, len(r.feeds))}
	for i, feed := range r.feeds {
		snapshot := domain.NewOracleSnapshot(raw[i].Price, raw[i].TimestampNs, now)
		prices.Assets = append(prices.Assets, TreasuryAsset{
			Symbol:           feed.Symbol,
			Price:            snapshot.Price,
			Change24h:        fromBps(raw[i].Change24hBps),
			APYPercent:       fromBps(raw[i].APYBps),
			StalenessSeconds: snapshot.StalenessSeconds,
			YieldBearing:     feed.YieldBearing,
		})
	}

	r.l.Debug("treasury prices read", zap.Int("assets", len(prices.Assets)))

	return prices, nil
}

func (r *TreasuryReader) defaults(source TreasurySource) TreasuryPrices {
	prices := TreasuryPrices{Source: source, Oracle: r.oracle, Assets: make([]TreasuryAsset, 0, len(r.feeds))}
	for _, feed := range r.feeds {
		prices.Assets = append(prices.Assets, TreasuryAsset{
			Symbol:       feed.Symbol,
			Price:        feed.DefaultPrice,
			APYPercent:   feed.DefaultAPY,
			YieldBearing: feed.YieldBearing,
		})
	}
	return prices
}

// fromBps converts basis points to a percentage.
func fromBps(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -2)
}
