// Package app wires the signal pipeline from configuration. Both binaries
// share it.
package app

import (
	"context"
	"fmt"
	"time"

	"signal-pipeline/internal/cache"
	"signal-pipeline/internal/chart"
	"signal-pipeline/internal/config"
	"signal-pipeline/internal/fusion"
	"signal-pipeline/internal/indicator"
	"signal-pipeline/internal/metrics"
	"signal-pipeline/internal/provider"
	"signal-pipeline/internal/ratelimit"
	"signal-pipeline/internal/sentiment"
	"signal-pipeline/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// App holds the long lived pipeline components.
type App struct {
	Metrics  *metrics.Recorder
	Limiter  *ratelimit.Controller
	Cache    *cache.Tiered
	Stream   *provider.BinanceStream
	Analysis *service.AnalysisService
	Market   *service.MarketService
}

var (
	newOpenAIClientFunc = func(apiKey, model string) (sentiment.LLMClient, error) {
		return sentiment.NewOpenAIClient(apiKey, model)
	}
	newGeminiClientFunc = func(ctx context.Context, apiKey, model string) (sentiment.LLMClient, error) {
		return sentiment.NewGeminiClient(ctx, apiKey, model)
	}
)

// Build connects the cache and constructs every pipeline component. withStream
// controls whether a live price stream is created; it is never started here.
func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer, log zerolog.Logger, withStream bool) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)
	limiter := ratelimit.New(cfg.Quotas, log, rec)
	store := cache.Connect(ctx, cfg.RedisURL, log, rec)

	binance := provider.NewBinanceClient(cfg.BinanceURL, nil, limiter, log, rec)
	coinGecko := provider.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, nil, limiter, log, rec)
	fearGreed := provider.NewFearGreedClient(cfg.FearGreedURL, nil, limiter, log, rec)
	macro := provider.NewMacroSupplier(provider.StaticMacro{
		DXY:          cfg.MacroDXY,
		DXYTrend:     cfg.MacroDXYTrend,
		VIX:          cfg.MacroVIX,
		FedFundsRate: cfg.MacroFedFundsRate,
		MarketPhase:  cfg.MacroMarketPhase,
	}, fearGreed, store, log)

	deps := service.AnalysisDeps{
		Market:     binance,
		Cache:      store,
		Indicators: indicator.NewEngine(log),
		Fusion:     fusion.NewEngine(log),
		Limits:     limiter,
		Macro:      macro,
		Metrics:    rec,
		Charts:     chart.NewRenderer(),
	}
	if analyzer := newSentiment(ctx, cfg, limiter, log); analyzer != nil {
		deps.Sentiment = analyzer
	}

	a := &App{Metrics: rec, Limiter: limiter, Cache: store}
	if withStream && cfg.StreamEnabled {
		a.Stream = provider.NewBinanceStream(cfg.BinanceStreamURL, cfg.TrackedCoins, store, log)
		deps.Stream = a.Stream
	}

	a.Analysis = service.NewAnalysisService(tracer, deps, service.AnalysisOptions{
		Symbols:       cfg.TrackedCoins,
		KlineInterval: cfg.KlineInterval,
		KlineLimit:    cfg.KlineLimit,
	}, log)
	a.Market = service.NewMarketService(tracer, coinGecko, macro, store)
	a.Market.SetAnalysis(a.Analysis)
	return a
}

// AnalysisTimeout is the per request pipeline budget.
func AnalysisTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.AnalysisTimeoutSecs) * time.Second
}

func (a *App) Close() error {
	if err := a.Cache.Close(); err != nil {
		return fmt.Errorf("close cache: %w", err)
	}
	return nil
}

func newSentiment(ctx context.Context, cfg *config.Config, limiter *ratelimit.Controller, log zerolog.Logger) *sentiment.Analyzer {
	var (
		client sentiment.LLMClient
		err    error
	)
	switch cfg.SentimentProvider {
	case config.SentimentOpenAI:
		client, err = newOpenAIClientFunc(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case config.SentimentGemini:
		client, err = newGeminiClientFunc(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		log.Info().Msg("sentiment layer disabled")
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("provider", cfg.SentimentProvider).Msg("sentiment client unavailable, layer disabled")
		return nil
	}
	log.Info().Str("provider", cfg.SentimentProvider).Msg("sentiment layer enabled")
	return sentiment.NewAnalyzer(client, limiter.Gate(ratelimit.SourceSentiment, ratelimit.PriorityMedium), log)
}
