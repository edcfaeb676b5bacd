// Package oracle reads the price currently published by the on-chain oracle.
package oracle

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/chain"
	"github.com/vadiminshakov/orbit/internal/domain"
)

// DefaultMaxAge is the age after which a published price is reported as stale.
const DefaultMaxAge = time.Hour

// Reader fetches oracle snapshots.
type Reader struct {
	l      *zap.Logger
	caller chain.Caller
	oracle common.Address
	maxAge time.Duration
	now    func() time.Time
}

// NewReader creates a reader for the oracle (or hook exposing getPrice) at address.
func NewReader(l *zap.Logger, caller chain.Caller, oracle common.Address) *Reader {
	return &Reader{l: l, caller: caller, oracle: oracle, maxAge: DefaultMaxAge, now: time.Now}
}

// GetOracleSnapshot reads getPrice() and normalizes the result.
func (r *Reader) GetOracleSnapshot(ctx context.Context) (domain.OracleSnapshot, error) {
	price, ts, err := chain.ReadOraclePrice(ctx, r.caller, r.oracle)
	if err != nil {
		return domain.OracleSnapshot{}, errors.Wrap(err, "read oracle price")
	}

	snapshot := domain.NewOracleSnapshot(price, ts, r.now())
	if snapshot.IsStale(r.maxAge) {
		r.l.Warn("oracle price is stale",
			zap.String("price", snapshot.Price.String()),
			zap.String("staleness_s", snapshot.StalenessSeconds.String()))
	}

	return snapshot, nil
}
