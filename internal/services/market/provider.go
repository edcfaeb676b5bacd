// Package market fetches the reference asset's price and 24h change.
package market

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
	"github.com/vadiminshakov/orbit/pkg/retrier"
)

// ErrNoData is returned when the upstream answered without a quote for the asset.
var ErrNoData = errors.New("no market data")

// Provider returns the latest quote for an asset.
type Provider interface {
	GetMarketSnapshot(ctx context.Context, asset string) (domain.MarketSnapshot, error)
}

// Retrying retries read-only snapshot requests with exponential backoff.
type Retrying struct {
	provider Provider
	retrier  *retrier.Retrier
}

// NewRetrying wraps provider with up to maxRetries retries.
func NewRetrying(l *zap.Logger, provider Provider, maxRetries int, initialInterval time.Duration) *Retrying {
	r := retrier.New(
		retrier.WithMaxRetries(maxRetries),
		retrier.WithInitialInterval(initialInterval),
		retrier.WithMaxInterval(10*time.Second),
		retrier.WithOnRetry(func(attempt int, err error) {
			l.Warn("market snapshot request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)

	return &Retrying{provider: provider, retrier: r}
}

func (p *Retrying) GetMarketSnapshot(ctx context.Context, asset string) (domain.MarketSnapshot, error) {
	return retrier.DoWithData(p.retrier, ctx, func(ctx context.Context) (domain.MarketSnapshot, error) {
		snapshot, err := p.provider.GetMarketSnapshot(ctx, asset)
		if errors.Is(err, ErrNoData) {
			return snapshot, retrier.Permanent(err)
		}
		return snapshot, err
	})
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %s %q", field, raw)
	}
	return v, nil
}
