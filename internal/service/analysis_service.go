package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-pipeline/internal/cache"
	"signal-pipeline/internal/chart"
	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/fusion"
	"signal-pipeline/internal/metrics"
	"signal-pipeline/internal/ratelimit"
	"signal-pipeline/internal/sentiment"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultKlineInterval = "1h"
	defaultKlineLimit    = 200
)

var (
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	ErrChartUnavailable  = errors.New("chart rendering not configured")
	ErrBriefUnavailable  = errors.New("morning brief not configured")
)

type MarketSource interface {
	Ticker24h(ctx context.Context, symbol string) (domain.Ticker, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

type MacroSupplier interface {
	Macro(ctx context.Context) (*domain.MacroContext, error)
}

type SentimentProvider interface {
	Analyze(ctx context.Context, req sentiment.Request) domain.SentimentResult
}

type IndicatorEngine interface {
	Analyze(series []domain.Candle) (domain.IndicatorBundle, error)
}

type SignalFuser interface {
	Fuse(in fusion.Input) domain.FusedSignal
}

type AnalysisCache interface {
	GetSignal(ctx context.Context, symbol string) (domain.Analysis, bool)
	SetSignal(ctx context.Context, symbol string, a domain.Analysis)
	SetPrice(ctx context.Context, symbol string, t domain.Ticker)
	SetTechnical(ctx context.Context, symbol string, b domain.IndicatorBundle)
	GetSentiment(ctx context.Context, symbol string) (domain.SentimentResult, bool)
	SetSentiment(ctx context.Context, symbol string, r domain.SentimentResult)
	Stats(ctx context.Context) cache.Stats
}

type ChartRenderer interface {
	RenderAnalysisChart(candles []domain.Candle, signal domain.FusedSignal) (*chart.Image, error)
}

type RateLimitReporter interface {
	Status() map[string]ratelimit.SourceStatus
}

type StreamStatus interface {
	Connected() bool
}

// AnalysisDeps wires the pipeline. Macro, Sentiment, Stream, Charts and
// Metrics are optional.
type AnalysisDeps struct {
	Market     MarketSource
	Cache      AnalysisCache
	Indicators IndicatorEngine
	Fusion     SignalFuser
	Limits     RateLimitReporter
	Macro      MacroSupplier
	Sentiment  SentimentProvider
	Stream     StreamStatus
	Charts     ChartRenderer
	Metrics    *metrics.Recorder
}

type AnalysisOptions struct {
	Symbols       []string
	KlineInterval string
	KlineLimit    int
}

type HealthStatus struct {
	Status          string      `json:"status"`
	CacheStats      cache.Stats `json:"cache_stats"`
	StreamConnected bool        `json:"stream_connected"`
}

// AnalysisService runs the cache-first signal pipeline for tracked symbols.
type AnalysisService struct {
	tracer  trace.Tracer
	deps    AnalysisDeps
	symbols []string
	tracked map[string]struct{}
	opts    AnalysisOptions
	log     zerolog.Logger
	now     func() time.Time
}

func NewAnalysisService(tracer trace.Tracer, deps AnalysisDeps, opts AnalysisOptions, log zerolog.Logger) *AnalysisService {
	if opts.KlineInterval == "" {
		opts.KlineInterval = defaultKlineInterval
	}
	if opts.KlineLimit <= 0 {
		opts.KlineLimit = defaultKlineLimit
	}
	if len(opts.Symbols) == 0 {
		opts.Symbols = domain.TrackedSymbols
	}

	symbols := make([]string, 0, len(opts.Symbols))
	tracked := make(map[string]struct{}, len(opts.Symbols))
	for _, sym := range opts.Symbols {
		sym = domain.NormalizeSymbol(sym)
		if _, dup := tracked[sym]; sym == "" || dup {
			continue
		}
		tracked[sym] = struct{}{}
		symbols = append(symbols, sym)
	}

	return &AnalysisService{
		tracer:  tracer,
		deps:    deps,
		symbols: symbols,
		tracked: tracked,
		opts:    opts,
		log:     log.With().Str("component", "analysis-service").Logger(),
		now:     time.Now,
	}
}

// Symbols returns the tracked symbols in configured order.
func (s *AnalysisService) Symbols() []string {
	return append([]string(nil), s.symbols...)
}

func (s *AnalysisService) IsTracked(symbol string) bool {
	_, ok := s.tracked[domain.NormalizeSymbol(symbol)]
	return ok
}

// Analyze returns the cached signal document for symbol or runs the pipeline
// on a miss. Only upstream faults are returned.
func (s *AnalysisService) Analyze(ctx context.Context, symbol string) (domain.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.analyze")
	defer span.End()

	sym, err := s.validate(symbol)
	if err != nil {
		return domain.Analysis{}, err
	}
	span.SetAttributes(attribute.String("symbol", sym))

	if cached, ok := s.deps.Cache.GetSignal(ctx, sym); ok {
		s.log.Debug().Str("symbol", sym).Msg("signal cache hit")
		s.deps.Metrics.RecordPipeline("cache_hit")
		return cached, nil
	}
	return s.run(ctx, sym)
}

// Refresh recomputes symbol without reading the signal cache.
func (s *AnalysisService) Refresh(ctx context.Context, symbol string) (domain.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.refresh")
	defer span.End()

	sym, err := s.validate(symbol)
	if err != nil {
		return domain.Analysis{}, err
	}
	span.SetAttributes(attribute.String("symbol", sym))
	return s.run(ctx, sym)
}

// Chart draws the recent candles of symbol with the levels of its current
// signal. The signal comes from the cache when present; candles are always fetched.
func (s *AnalysisService) Chart(ctx context.Context, symbol string) (*chart.Image, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.chart")
	defer span.End()

	if s.deps.Charts == nil {
		return nil, ErrChartUnavailable
	}
	analysis, err := s.Analyze(ctx, symbol)
	if err != nil {
		return nil, err
	}
	sym := analysis.Symbol
	span.SetAttributes(attribute.String("symbol", sym))

	candles, err := s.deps.Market.Klines(ctx, sym, s.opts.KlineInterval, s.opts.KlineLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s: %w", sym, err)
	}
	img, err := s.deps.Charts.RenderAnalysisChart(candles, analysis.Signal)
	if err != nil {
		return nil, fmt.Errorf("render chart %s: %w", sym, err)
	}
	return img, nil
}

func (s *AnalysisService) validate(symbol string) (string, error) {
	sym := domain.NormalizeSymbol(symbol)
	if _, ok := s.tracked[sym]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	return sym, nil
}

func (s *AnalysisService) run(ctx context.Context, sym string) (domain.Analysis, error) {
	result, err := s.pipeline(ctx, sym)
	if err != nil {
		s.deps.Metrics.RecordPipeline("error")
		s.log.Error().Err(err).
			Str("symbol", sym).
			Str("operation", "analyze").
			Msg("analysis pipeline failed")
		return domain.Analysis{}, err
	}
	s.deps.Metrics.RecordPipeline("ok")
	return result, nil
}

func (s *AnalysisService) pipeline(ctx context.Context, sym string) (domain.Analysis, error) {
	ticker, err := s.deps.Market.Ticker24h(ctx, sym)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("fetch ticker %s: %w", sym, err)
	}
	candles, err := s.deps.Market.Klines(ctx, sym, s.opts.KlineInterval, s.opts.KlineLimit)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("fetch klines %s: %w", sym, err)
	}
	s.deps.Cache.SetPrice(ctx, sym, ticker)

	bundle, err := s.deps.Indicators.Analyze(candles)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("no data for %s: %w", sym, err)
	}
	s.deps.Cache.SetTechnical(ctx, sym, bundle)

	macro := s.macro(ctx)
	sentimentResult := s.sentiment(ctx, sym, ticker, bundle, macro)

	signal := s.deps.Fusion.Fuse(fusion.Input{
		Symbol:    sym,
		Ticker:    ticker,
		Bundle:    bundle,
		Macro:     macro,
		Sentiment: sentimentResult,
	})

	result := domain.Analysis{
		Symbol:      sym,
		Ticker:      ticker,
		Indicators:  bundle,
		Macro:       macro,
		Sentiment:   sentimentResult,
		Signal:      signal,
		GeneratedAt: s.now().UTC(),
	}
	s.deps.Cache.SetSignal(ctx, sym, result)
	return result, nil
}

func (s *AnalysisService) macro(ctx context.Context) *domain.MacroContext {
	if s.deps.Macro == nil {
		return nil
	}
	m, err := s.deps.Macro.Macro(ctx)
	if err != nil {
		s.log.Warn().Err(err).
			Str("source", "macro").
			Str("operation", "macro").
			Msg("macro context unavailable, dropping layer")
		return nil
	}
	return m
}

// sentiment reads ai_analysis first. Fallback results are fused but not cached.
func (s *AnalysisService) sentiment(
	ctx context.Context,
	sym string,
	ticker domain.Ticker,
	bundle domain.IndicatorBundle,
	macro *domain.MacroContext,
) *domain.SentimentResult {
	if s.deps.Sentiment == nil {
		return nil
	}
	if cached, ok := s.deps.Cache.GetSentiment(ctx, sym); ok {
		return &cached
	}

	r := s.deps.Sentiment.Analyze(ctx, sentiment.Request{
		Symbol: sym,
		Ticker: ticker,
		Bundle: bundle,
		Macro:  macro,
	})
	if !sentiment.IsSafeDefault(r) {
		s.deps.Cache.SetSentiment(ctx, sym, r)
	}
	return &r
}

// CachedSignals lists summaries for tracked symbols that have a live signal
// document. It never fetches.
func (s *AnalysisService) CachedSignals(ctx context.Context) []domain.SignalSummary {
	ctx, span := s.tracer.Start(ctx, "analysis-service.cached-signals")
	defer span.End()

	out := make([]domain.SignalSummary, 0, len(s.symbols))
	for _, sym := range s.symbols {
		if a, ok := s.deps.Cache.GetSignal(ctx, sym); ok {
			out = append(out, a.Summary())
		}
	}
	return out
}

func (s *AnalysisService) RateLimits() map[string]ratelimit.SourceStatus {
	if s.deps.Limits == nil {
		return map[string]ratelimit.SourceStatus{}
	}
	return s.deps.Limits.Status()
}

func (s *AnalysisService) Health(ctx context.Context) HealthStatus {
	ctx, span := s.tracer.Start(ctx, "analysis-service.health")
	defer span.End()

	return HealthStatus{
		Status:          "healthy",
		CacheStats:      s.deps.Cache.Stats(ctx),
		StreamConnected: s.deps.Stream != nil && s.deps.Stream.Connected(),
	}
}
