// Package exposure computes how the treasury is split across the monitored assets.
package exposure

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/chain"
	"github.com/vadiminshakov/orbit/internal/domain"
)

// Asset monitored ERC-20 token.
type Asset struct {
	Symbol  string
	Address common.Address
	// Decimals token precision; 0 means read decimals() from the token once.
	Decimals uint8
}

// Monitor reads balances of the configured asset set.
type Monitor struct {
	l      *zap.Logger
	caller chain.Caller
	assets []Asset

	mu       sync.Mutex
	decimals map[common.Address]uint8
}

// NewMonitor creates a monitor for assets.
func NewMonitor(l *zap.Logger, caller chain.Caller, assets []Asset) (*Monitor, error) {
	if len(assets) < 2 {
		return nil, errors.New("at least two assets are required")
	}

	decimals := make(map[common.Address]uint8, len(assets))
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		if a.Symbol == "" {
			return nil, errors.New("asset symbol is required")
		}
		if seen[a.Symbol] {
			return nil, errors.Errorf("duplicate asset %s", a.Symbol)
		}
		seen[a.Symbol] = true
		if a.Decimals > 0 {
			decimals[a.Address] = a.Decimals
		}
	}

	return &Monitor{l: l, caller: caller, assets: assets, decimals: decimals}, nil
}

// GetExposureSnapshot reads balanceOf(account) for every asset.
func (m *Monitor) GetExposureSnapshot(ctx context.Context, account string) (domain.ExposureSnapshot, error) {
	if !common.IsHexAddress(account) {
		return domain.ExposureSnapshot{}, errors.Errorf("invalid account %q", account)
	}
	owner := common.HexToAddress(account)

	balances := make([]domain.AssetBalance, 0, len(m.assets))
	for _, a := range m.assets {
		decimals, err := m.tokenDecimals(ctx, a)
		if err != nil {
			return domain.ExposureSnapshot{}, err
		}

		raw, err := chain.ReadERC20Balance(ctx, m.caller, a.Address, owner)
		if err != nil {
			return domain.ExposureSnapshot{}, errors.Wrapf(err, "read %s balance", a.Symbol)
		}

		balances = append(balances, domain.AssetBalance{
			Symbol:  a.Symbol,
			Balance: domain.FromBaseUnits(raw, int32(decimals)),
		})
	}

	snapshot := domain.NewExposureSnapshot(balances)
	m.l.Debug("exposure snapshot", zap.String("account", account), zap.String("total", snapshot.TotalValue.String()))

	return snapshot, nil
}

func (m *Monitor) tokenDecimals(ctx context.Context, a Asset) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.decimals[a.Address]; ok {
		return d, nil
	}

	d, err := chain.ReadERC20Decimals(ctx, m.caller, a.Address)
	if err != nil {
		return 0, errors.Wrapf(err, "read %s decimals", a.Symbol)
	}
	m.decimals[a.Address] = d

	return d, nil
}
