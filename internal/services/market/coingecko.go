package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/orbit/internal/domain"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	coinGeckoTimeout    = 10 * time.Second
)

// DefaultCoinIDs maps asset symbols to CoinGecko coin ids.
var DefaultCoinIDs = map[string]string{
	"ETH":  "ethereum",
	"BTC":  "bitcoin",
	"USDC": "usd-coin",
	"USDT": "tether",
}

// CoinGeckoProvider reads simple/price with the 24h change, no API key required.
type CoinGeckoProvider struct {
	baseURL    string
	apiKey     string
	coinIDs    map[string]string
	httpClient *http.Client
}

// NewCoinGeckoProvider creates a provider. Empty baseURL uses the public API; apiKey is optional.
func NewCoinGeckoProvider(baseURL, apiKey string) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}

	return &CoinGeckoProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		coinIDs:    DefaultCoinIDs,
		httpClient: &http.Client{Timeout: coinGeckoTimeout},
	}
}

type coinGeckoQuote struct {
	USD          *decimal.Decimal `json:"usd"`
	USD24hChange *decimal.Decimal `json:"usd_24h_change"`
}

func (p *CoinGeckoProvider) GetMarketSnapshot(ctx context.Context, asset string) (domain.MarketSnapshot, error) {
	symbol := strings.ToUpper(asset)
	coinID, ok := p.coinIDs[symbol]
	if !ok {
		coinID = strings.ToLower(asset)
	}

	query := url.Values{}
	query.Set("ids", coinID)
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")
	endpoint := fmt.Sprintf("%s/simple/price?%s", p.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrap(err, "create coingecko request")
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.MarketSnapshot{}, errors.Wrap(err, "coingecko request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.MarketSnapshot{}, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var payload map[string]coinGeckoQuote
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.MarketSnapshot{}, errors.Wrap(err, "decode coingecko response")
	}

	quote, ok := payload[coinID]
	if !ok || quote.USD == nil {
		return domain.MarketSnapshot{}, errors.Wrapf(ErrNoData, "coingecko returned no price for %s", coinID)
	}

	change := decimal.Zero
	if quote.USD24hChange != nil {
		change = *quote.USD24hChange
	}

	return domain.MarketSnapshot{
		Asset:      symbol,
		Price:      *quote.USD,
		Change24h:  change,
		ObservedAt: time.Now(),
	}, nil
}
