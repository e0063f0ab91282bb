package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/metrics"
	"signal-pipeline/internal/ratelimit"

	"github.com/rs/zerolog"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

	defaultRetryAfter = 60 * time.Second
	maxRetryAfter     = 120 * time.Second
)

// CoinGeckoClient reads global market data and top movers.
type CoinGeckoClient struct {
	baseURL string
	apiKey  string
	fetch   fetcher
	gate    Gate
	sleep   func(ctx context.Context, d time.Duration) error
}

type coinGeckoGlobal struct {
	Data struct {
		TotalMarketCap      map[string]float64 `json:"total_market_cap"`
		TotalVolume         map[string]float64 `json:"total_volume"`
		MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
		MarketCapChange24h  float64            `json:"market_cap_change_percentage_24h_usd"`
	} `json:"data"`
}

type coinGeckoMarket struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	CurrentPrice float64  `json:"current_price"`
	Change24h    *float64 `json:"price_change_percentage_24h"`
}

func NewCoinGeckoClient(baseURL, apiKey string, client *http.Client, limiter *ratelimit.Controller, log zerolog.Logger, rec *metrics.Recorder) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	return &CoinGeckoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		fetch:   newFetcher(ratelimit.SourceCoinGecko, client, log, rec),
		gate:    gateFor(limiter, ratelimit.SourceCoinGecko, ratelimit.PriorityMedium),
		sleep:   sleepContext,
	}
}

// get issues one request and, on a 429, waits Retry-After and tries once more.
func (c *CoinGeckoClient) get(ctx context.Context, endpoint string, q url.Values, dst any) error {
	u := c.baseURL + "/" + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var header http.Header
	if c.apiKey != "" {
		header = http.Header{"X-Cg-Pro-Api-Key": []string{c.apiKey}}
	}

	err := c.fetch.getJSON(ctx, c.gate, u, header, dst)
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusTooManyRequests {
		return err
	}

	wait := status.RetryAfter
	if wait < 0 {
		wait = defaultRetryAfter
	}
	wait = min(wait, maxRetryAfter)
	c.fetch.log.Warn().
		Str("operation", endpoint).
		Dur("retry_after", wait).
		Msg("coingecko rate limited, retrying once")
	if err := c.sleep(ctx, wait); err != nil {
		return err
	}
	return c.fetch.getJSON(ctx, c.gate, u, header, dst)
}

func (c *CoinGeckoClient) Global(ctx context.Context) (domain.GlobalMarket, error) {
	ctx, span := tracer.Start(ctx, "coingecko.global")
	defer span.End()

	var raw coinGeckoGlobal
	if err := c.get(ctx, "global", nil, &raw); err != nil {
		span.RecordError(err)
		return domain.GlobalMarket{}, fmt.Errorf("coingecko global: %w", err)
	}
	return domain.GlobalMarket{
		TotalMarketCapUSD:  raw.Data.TotalMarketCap["usd"],
		TotalVolume24hUSD:  raw.Data.TotalVolume["usd"],
		BTCDominance:       raw.Data.MarketCapPercentage["btc"],
		ETHDominance:       raw.Data.MarketCapPercentage["eth"],
		MarketCapChange24h: raw.Data.MarketCapChange24h,
	}, nil
}

// Movers returns the limit best and worst 24h performers among the top 100
// coins by market cap.
func (c *CoinGeckoClient) Movers(ctx context.Context, limit int) (gainers, losers []domain.MarketMover, err error) {
	ctx, span := tracer.Start(ctx, "coingecko.movers")
	defer span.End()

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", "100")
	q.Set("page", "1")
	q.Set("sparkline", "false")
	var raw []coinGeckoMarket
	if err := c.get(ctx, "coins/markets", q, &raw); err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("coingecko markets: %w", err)
	}

	movers := make([]domain.MarketMover, 0, len(raw))
	for _, m := range raw {
		change := 0.0
		if m.Change24h != nil {
			change = *m.Change24h
		}
		movers = append(movers, domain.MarketMover{
			Symbol:    strings.ToUpper(m.Symbol),
			Name:      m.Name,
			Change24h: change,
			Price:     m.CurrentPrice,
		})
	}
	sort.SliceStable(movers, func(i, j int) bool { return movers[i].Change24h > movers[j].Change24h })

	n := max(0, min(limit, len(movers)))
	gainers = append([]domain.MarketMover{}, movers[:n]...)
	losers = make([]domain.MarketMover, 0, n)
	for i := len(movers) - 1; i >= len(movers)-n; i-- {
		losers = append(losers, movers[i])
	}
	return gainers, losers, nil
}
