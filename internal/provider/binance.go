package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/metrics"
	"signal-pipeline/internal/ratelimit"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBinanceURL = "https://api.binance.com"
	quoteAsset        = "USDT"
)

// BinanceClient reads spot market data from the Binance REST API.
type BinanceClient struct {
	baseURL    string
	fetch      fetcher
	tickerGate Gate
	klinesGate Gate
	now        func() time.Time
}

type binanceTicker struct {
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
}

// NewBinanceClient gates ticker reads at high priority and klines at medium.
// A nil limiter disables admission control.
func NewBinanceClient(baseURL string, client *http.Client, limiter *ratelimit.Controller, log zerolog.Logger, rec *metrics.Recorder) *BinanceClient {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &BinanceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		fetch:      newFetcher(ratelimit.SourceBinance, client, log, rec),
		tickerGate: gateFor(limiter, ratelimit.SourceBinance, ratelimit.PriorityHigh),
		klinesGate: gateFor(limiter, ratelimit.SourceBinance, ratelimit.PriorityMedium),
		now:        time.Now,
	}
}

func pairFor(symbol string) string {
	return domain.NormalizeSymbol(symbol) + quoteAsset
}

// Ticker24h returns the rolling 24 hour statistics for symbol against USDT.
func (c *BinanceClient) Ticker24h(ctx context.Context, symbol string) (domain.Ticker, error) {
	ctx, span := tracer.Start(ctx, "binance.ticker-24h")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	q := url.Values{}
	q.Set("symbol", pairFor(symbol))
	var raw binanceTicker
	if err := c.fetch.getJSON(ctx, c.tickerGate, c.baseURL+"/api/v3/ticker/24hr?"+q.Encode(), nil, &raw); err != nil {
		span.RecordError(err)
		return domain.Ticker{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}

	price, err := parseFloat("lastPrice", raw.LastPrice)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	change, err := parseFloat("priceChangePercent", raw.PriceChangePercent)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	volume, err := parseFloat("volume", raw.Volume)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	high, err := parseFloat("highPrice", raw.HighPrice)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}
	low, err := parseFloat("lowPrice", raw.LowPrice)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("binance ticker %s: %w", symbol, err)
	}

	t := domain.Ticker{
		Symbol:    domain.NormalizeSymbol(symbol),
		Price:     price,
		Change24h: change,
		Volume24h: volume,
		High24h:   high,
		Low24h:    low,
		Timestamp: c.now().UTC(),
	}
	return t, nil
}

// Klines returns up to limit candles, oldest first.
func (c *BinanceClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	ctx, span := tracer.Start(ctx, "binance.klines")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("interval", interval),
		attribute.Int("limit", limit),
	)

	q := url.Values{}
	q.Set("symbol", pairFor(symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	var rows [][]any
	if err := c.fetch.getJSON(ctx, c.klinesGate, c.baseURL+"/api/v3/klines?"+q.Encode(), nil, &rows); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s row %d: %w", symbol, i, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(row []any) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("%w: kline has %d fields", ErrUpstream, len(row))
	}
	openMs, ok := row[0].(float64)
	if !ok {
		return domain.Candle{}, fmt.Errorf("%w: kline open time %v", ErrUpstream, row[0])
	}

	var values [5]float64
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := range values {
		s, ok := row[i+1].(string)
		if !ok {
			return domain.Candle{}, fmt.Errorf("%w: kline %s %v", ErrUpstream, names[i], row[i+1])
		}
		v, err := parseFloat(names[i], s)
		if err != nil {
			return domain.Candle{}, err
		}
		values[i] = v
	}

	return domain.Candle{
		OpenTime: time.UnixMilli(int64(openMs)).UTC(),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}
