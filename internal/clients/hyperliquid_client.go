package clients

import (
	"context"

	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// NewHyperliquidInfo creates a read-only client for the Hyperliquid Info API.
// Empty metadata is passed so construction does not hit the network, the market
// provider fetches spot metadata together with asset contexts on every read.
func NewHyperliquidInfo(ctx context.Context, baseURL string) *hyperliquid.Info {
	if baseURL == "" {
		baseURL = hyperliquid.MainnetAPIURL
	}

	return hyperliquid.NewInfo(ctx, baseURL, true, &hyperliquid.Meta{}, &hyperliquid.SpotMeta{})
}
