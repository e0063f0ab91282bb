package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signal-pipeline/internal/config"
	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"
	"signal-pipeline/internal/sentiment"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type fakeLLM struct{ reply string }

func (f fakeLLM) Complete(context.Context, string) (string, error) { return f.reply, nil }

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"lastPrice":"310.5","priceChangePercent":"2.5","volume":"1000","highPrice":"312","lowPrice":"290"}`)
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		rows := make([][]any, 0, 120)
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range 120 {
			c := 100 + float64(i)*1.7
			rows = append(rows, []any{
				start.Add(time.Duration(i) * time.Hour).UnixMilli(),
				fmt.Sprintf("%.2f", c-1), fmt.Sprintf("%.2f", c+2), fmt.Sprintf("%.2f", c-2),
				fmt.Sprintf("%.2f", c), "50",
			})
		}
		_ = json.NewEncoder(w).Encode(rows)
	})
	mux.HandleFunc("/cg/global", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"total_market_cap":{"usd":2.5e12},"total_volume":{"usd":9e10},"market_cap_percentage":{"btc":51.2},"market_cap_change_percentage_24h_usd":1.1}}`)
	})
	mux.HandleFunc("/cg/coins/markets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol":"sol","name":"Solana","current_price":150,"price_change_percentage_24h":8},{"symbol":"ada","name":"Cardano","current_price":0.4,"price_change_percentage_24h":-3}]`)
	})
	mux.HandleFunc("/fng", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"value":"62","value_classification":"Greed","timestamp":"1767225600"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(base string) *config.Config {
	return &config.Config{
		TrackedCoins:        []string{"SOL", "ETH"},
		KlineInterval:       "1h",
		KlineLimit:          120,
		AnalysisTimeoutSecs: 5,
		StreamEnabled:       true,
		SentimentProvider:   config.SentimentNone,
		BinanceURL:          base,
		CoinGeckoURL:        base + "/cg",
		FearGreedURL:        base + "/fng",
		MacroDXY:            domain.Some(101),
		MacroDXYTrend:       "falling",
		Quotas:              ratelimit.DefaultQuotas(),
	}
}

func TestBuildRunsPipelineEndToEnd(t *testing.T) {
	srv := upstream(t)
	ctx := context.Background()

	a := Build(ctx, testConfig(srv.URL), trace.NewNoopTracerProvider().Tracer("test"), zerolog.Nop(), false)
	defer a.Close()

	assert.Nil(t, a.Stream)
	assert.Equal(t, []string{"SOL", "ETH"}, a.Analysis.Symbols())

	analysis, err := a.Analysis.Analyze(ctx, "sol")
	require.NoError(t, err)
	assert.Equal(t, "SOL", analysis.Symbol)
	assert.Equal(t, 310.5, analysis.Ticker.Price)
	require.NotNil(t, analysis.Macro)
	assert.Equal(t, domain.Some(62), analysis.Macro.FearGreed)
	assert.Nil(t, analysis.Sentiment)
	assert.True(t, analysis.Signal.Class.IsValid())

	cached := a.Analysis.CachedSignals(ctx)
	require.Len(t, cached, 1)
	assert.Equal(t, "SOL", cached[0].Symbol)

	status := a.Analysis.RateLimits()
	assert.Less(t, status[ratelimit.SourceBinance].AvailableTokens, status[ratelimit.SourceBinance].Capacity)

	overview, err := a.Market.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.5e12, overview.TotalMarketCap)
	assert.Equal(t, domain.Some(62), overview.FearGreedIndex)
	require.NotEmpty(t, overview.TopGainers)
	assert.Equal(t, "SOL", overview.TopGainers[0].Symbol)

	brief, err := a.Market.MorningBrief(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BULLISH", brief.MarketStatus)
	assert.Equal(t, "MEDIUM", brief.RiskLevel)
	require.Len(t, brief.TopOpportunities, 2)
	assert.Equal(t, "ETH", brief.TopOpportunities[0].Coin)
	assert.Equal(t, "SOL", brief.TopOpportunities[1].Coin)

	img, err := a.Analysis.Chart(ctx, "SOL")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, []byte("\x89PNG"), img.Bytes[:4])
}

func TestBuildCreatesStreamWhenEnabled(t *testing.T) {
	srv := upstream(t)
	cfg := testConfig(srv.URL)

	a := Build(context.Background(), cfg, trace.NewNoopTracerProvider().Tracer("test"), zerolog.Nop(), true)
	require.NotNil(t, a.Stream)
	assert.False(t, a.Analysis.Health(context.Background()).StreamConnected)

	cfg.StreamEnabled = false
	a = Build(context.Background(), cfg, trace.NewNoopTracerProvider().Tracer("test"), zerolog.Nop(), true)
	assert.Nil(t, a.Stream)
}

func TestNewSentimentSelectsProvider(t *testing.T) {
	origOpenAI, origGemini := newOpenAIClientFunc, newGeminiClientFunc
	t.Cleanup(func() { newOpenAIClientFunc, newGeminiClientFunc = origOpenAI, origGemini })

	var openAICalls, geminiCalls int
	newOpenAIClientFunc = func(apiKey, model string) (sentiment.LLMClient, error) {
		openAICalls++
		return fakeLLM{}, nil
	}
	newGeminiClientFunc = func(ctx context.Context, apiKey, model string) (sentiment.LLMClient, error) {
		geminiCalls++
		return nil, errors.New("bad key")
	}

	limiter := ratelimit.New(ratelimit.DefaultQuotas(), zerolog.Nop(), nil)
	ctx := context.Background()

	assert.NotNil(t, newSentiment(ctx, &config.Config{SentimentProvider: config.SentimentOpenAI}, limiter, zerolog.Nop()))
	assert.Nil(t, newSentiment(ctx, &config.Config{SentimentProvider: config.SentimentGemini}, limiter, zerolog.Nop()))
	assert.Nil(t, newSentiment(ctx, &config.Config{SentimentProvider: config.SentimentNone}, limiter, zerolog.Nop()))
	assert.Equal(t, 1, openAICalls)
	assert.Equal(t, 1, geminiCalls)
}

func TestBuildWithSentimentLayer(t *testing.T) {
	origOpenAI := newOpenAIClientFunc
	t.Cleanup(func() { newOpenAIClientFunc = origOpenAI })
	newOpenAIClientFunc = func(string, string) (sentiment.LLMClient, error) {
		return fakeLLM{reply: `{"rating":"BUY","confidence":70,"sentiment_score":65,"reasoning":"steady inflows","key_factors":["etf"],"risks":["macro"],"price_outlook":"higher"}`}, nil
	}

	srv := upstream(t)
	cfg := testConfig(srv.URL)
	cfg.SentimentProvider = config.SentimentOpenAI

	a := Build(context.Background(), cfg, trace.NewNoopTracerProvider().Tracer("test"), zerolog.Nop(), false)
	analysis, err := a.Analysis.Analyze(context.Background(), "ETH")
	require.NoError(t, err)
	require.NotNil(t, analysis.Sentiment)
	assert.Equal(t, domain.Buy, analysis.Sentiment.Rating)
}

func TestAnalysisTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, AnalysisTimeout(&config.Config{AnalysisTimeoutSecs: 30}))
}
