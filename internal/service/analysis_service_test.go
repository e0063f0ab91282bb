package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"signal-pipeline/internal/cache"
	"signal-pipeline/internal/chart"
	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/fusion"
	"signal-pipeline/internal/indicator"
	"signal-pipeline/internal/ratelimit"
	"signal-pipeline/internal/sentiment"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var errUpstreamDown = errors.New("binance returned http 502")

type stubMarket struct {
	candles      []domain.Candle
	tickerErr    error
	klinesErr    error
	tickerCalls  int
	klinesCalls  int
	lastInterval string
	lastLimit    int
}

func (s *stubMarket) Ticker24h(_ context.Context, symbol string) (domain.Ticker, error) {
	s.tickerCalls++
	if s.tickerErr != nil {
		return domain.Ticker{}, s.tickerErr
	}
	last := s.candles[len(s.candles)-1]
	return domain.Ticker{Symbol: symbol, Price: last.Close, Change24h: 2.5, Volume24h: 1e6}, nil
}

func (s *stubMarket) Klines(_ context.Context, _ string, interval string, limit int) ([]domain.Candle, error) {
	s.klinesCalls++
	s.lastInterval, s.lastLimit = interval, limit
	if s.klinesErr != nil {
		return nil, s.klinesErr
	}
	return s.candles, nil
}

type stubMacro struct {
	ctx *domain.MacroContext
	err error
}

func (s *stubMacro) Macro(context.Context) (*domain.MacroContext, error) { return s.ctx, s.err }

type stubSentiment struct {
	result domain.SentimentResult
	calls  int
}

func (s *stubSentiment) Analyze(_ context.Context, req sentiment.Request) domain.SentimentResult {
	s.calls++
	r := s.result
	r.Symbol = req.Symbol
	return r
}

type stubStream bool

func (s stubStream) Connected() bool { return bool(s) }

func risingCandles(n int) []domain.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	for i := range out {
		price := 100 + float64(i)*0.5
		out[i] = domain.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     price - 0.2,
			High:     price + 1,
			Low:      price - 1,
			Close:    price,
			Volume:   1000,
		}
	}
	return out
}

func newTestAnalysisService(market *stubMarket, deps AnalysisDeps) (*AnalysisService, *cache.Tiered) {
	c := cache.NewMemory(zerolog.Nop(), nil)
	deps.Market = market
	deps.Cache = c
	deps.Indicators = indicator.NewEngine(zerolog.Nop())
	deps.Fusion = fusion.NewEngine(zerolog.Nop())
	svc := NewAnalysisService(
		trace.NewNoopTracerProvider().Tracer("test"),
		deps,
		AnalysisOptions{Symbols: []string{"btc", "ETH", "BTC"}},
		zerolog.Nop(),
	)
	return svc, c
}

func TestAnalysisServiceUnsupportedSymbol(t *testing.T) {
	market := &stubMarket{candles: risingCandles(120)}
	svc, _ := newTestAnalysisService(market, AnalysisDeps{})

	_, err := svc.Analyze(context.Background(), "DOGE")
	if !errors.Is(err, ErrUnsupportedSymbol) {
		t.Fatalf("expected unsupported symbol error, got %v", err)
	}
	if market.tickerCalls != 0 {
		t.Fatalf("expected no upstream calls, got %d", market.tickerCalls)
	}
}

func TestAnalysisServiceSymbolsDeduplicated(t *testing.T) {
	svc, _ := newTestAnalysisService(&stubMarket{}, AnalysisDeps{})
	got := svc.Symbols()
	if len(got) != 2 || got[0] != "BTC" || got[1] != "ETH" {
		t.Fatalf("unexpected symbols: %v", got)
	}
	if !svc.IsTracked(" eth ") {
		t.Fatal("expected ETH to be tracked")
	}
}

func TestAnalysisServiceRunsPipelineAndCaches(t *testing.T) {
	market := &stubMarket{candles: risingCandles(120)}
	sent := &stubSentiment{result: domain.SentimentResult{
		Rating:     domain.Buy,
		Confidence: 70,
		Timeframe:  domain.Swing,
		Reasoning:  "trend intact",
		KeyFactors: []string{},
		Risks:      []string{},
	}}
	macro := &stubMacro{ctx: &domain.MacroContext{FearGreed: domain.Some(30)}}
	svc, c := newTestAnalysisService(market, AnalysisDeps{Sentiment: sent, Macro: macro})
	ctx := context.Background()

	got, err := svc.Analyze(ctx, "btc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Symbol != "BTC" || got.Signal.Symbol != "BTC" {
		t.Fatalf("unexpected symbol: %q / %q", got.Symbol, got.Signal.Symbol)
	}
	if market.lastInterval != "1h" || market.lastLimit != 200 {
		t.Fatalf("unexpected kline query: %s %d", market.lastInterval, market.lastLimit)
	}
	if !got.Signal.MacroScore.Valid || !got.Signal.SentimentScore.Valid {
		t.Fatalf("expected macro and sentiment layers, got %+v", got.Signal)
	}
	if got.Signal.TechnicalScore != got.Indicators.TechnicalScore {
		t.Fatalf("technical score mismatch: %d vs %d", got.Signal.TechnicalScore, got.Indicators.TechnicalScore)
	}
	if got.Sentiment == nil || got.Sentiment.Symbol != "BTC" {
		t.Fatalf("expected sentiment for BTC, got %+v", got.Sentiment)
	}

	if _, ok := c.GetPrice(ctx, "BTC"); !ok {
		t.Fatal("expected price to be cached")
	}
	if _, ok := c.GetTechnical(ctx, "BTC"); !ok {
		t.Fatal("expected indicators to be cached")
	}
	if _, ok := c.GetSentiment(ctx, "BTC"); !ok {
		t.Fatal("expected sentiment to be cached")
	}

	again, err := svc.Analyze(ctx, "BTC")
	if err != nil {
		t.Fatalf("unexpected error on cached read: %v", err)
	}
	if market.tickerCalls != 1 {
		t.Fatalf("expected cache hit, got %d ticker calls", market.tickerCalls)
	}
	if again.Signal.OverallScore != got.Signal.OverallScore {
		t.Fatalf("cached score %d differs from %d", again.Signal.OverallScore, got.Signal.OverallScore)
	}
}

func TestAnalysisServiceRefreshBypassesSignalCache(t *testing.T) {
	market := &stubMarket{candles: risingCandles(120)}
	sent := &stubSentiment{result: domain.SentimentResult{Rating: domain.Hold, Confidence: 55, Timeframe: domain.Day}}
	svc, _ := newTestAnalysisService(market, AnalysisDeps{Sentiment: sent})

	if _, err := svc.Analyze(context.Background(), "ETH"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), "ETH"); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if market.tickerCalls != 2 {
		t.Fatalf("expected refresh to fetch again, got %d calls", market.tickerCalls)
	}
	if sent.calls != 1 {
		t.Fatalf("expected sentiment to come from cache on refresh, got %d calls", sent.calls)
	}
}

func TestAnalysisServiceUpstreamFault(t *testing.T) {
	cases := []struct {
		name   string
		market *stubMarket
	}{
		{"ticker", &stubMarket{candles: risingCandles(120), tickerErr: errUpstreamDown}},
		{"klines", &stubMarket{candles: risingCandles(120), klinesErr: errUpstreamDown}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, c := newTestAnalysisService(tc.market, AnalysisDeps{})
			_, err := svc.Analyze(context.Background(), "BTC")
			if !errors.Is(err, errUpstreamDown) {
				t.Fatalf("expected wrapped upstream error, got %v", err)
			}
			if _, ok := c.GetSignal(context.Background(), "BTC"); ok {
				t.Fatal("expected no cached signal after a fault")
			}
		})
	}
}

func TestAnalysisServiceInsufficientHistory(t *testing.T) {
	market := &stubMarket{candles: risingCandles(10)}
	svc, _ := newTestAnalysisService(market, AnalysisDeps{})

	_, err := svc.Analyze(context.Background(), "BTC")
	if !errors.Is(err, indicator.ErrInsufficientHistory) {
		t.Fatalf("expected insufficient history, got %v", err)
	}
}

func TestAnalysisServiceDropsFailedOptionalLayers(t *testing.T) {
	market := &stubMarket{candles: risingCandles(120)}
	sent := &stubSentiment{result: sentiment.SafeDefault("", errors.New("llm down"), time.Unix(0, 0))}
	macro := &stubMacro{err: errors.New("macro feed down")}
	svc, c := newTestAnalysisService(market, AnalysisDeps{Sentiment: sent, Macro: macro})

	got, err := svc.Analyze(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Macro != nil || got.Signal.MacroScore.Valid {
		t.Fatalf("expected macro layer to be dropped, got %+v", got.Macro)
	}
	if !got.Signal.SentimentScore.Valid || got.Signal.SentimentScore.Value != 50 {
		t.Fatalf("expected neutral sentiment score, got %+v", got.Signal.SentimentScore)
	}
	if _, ok := c.GetSentiment(context.Background(), "BTC"); ok {
		t.Fatal("fallback sentiment must not be cached")
	}
}

func TestAnalysisServiceCachedSignals(t *testing.T) {
	market := &stubMarket{candles: risingCandles(120)}
	svc, _ := newTestAnalysisService(market, AnalysisDeps{})

	if got := svc.CachedSignals(context.Background()); len(got) != 0 {
		t.Fatalf("expected no cached signals, got %d", len(got))
	}
	a, err := svc.Analyze(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := svc.CachedSignals(context.Background())
	if len(got) != 1 {
		t.Fatalf("expected 1 cached signal, got %d", len(got))
	}
	if got[0].Symbol != "ETH" || got[0].Signal != a.Signal.Class || got[0].Price != a.Ticker.Price {
		t.Fatalf("unexpected summary: %+v", got[0])
	}
	if market.tickerCalls != 1 {
		t.Fatalf("cached listing must not fetch, got %d calls", market.tickerCalls)
	}
}

func TestAnalysisServiceHealthAndLimits(t *testing.T) {
	limiter := ratelimit.New(ratelimit.DefaultQuotas(), zerolog.Nop(), nil)
	svc, _ := newTestAnalysisService(&stubMarket{}, AnalysisDeps{Limits: limiter, Stream: stubStream(true)})

	h := svc.Health(context.Background())
	if h.Status != "healthy" || h.CacheStats.Type != "memory" || !h.StreamConnected {
		t.Fatalf("unexpected health: %+v", h)
	}
	if _, ok := svc.RateLimits()[ratelimit.SourceBinance]; !ok {
		t.Fatal("expected binance in rate limit status")
	}

	bare, _ := newTestAnalysisService(&stubMarket{}, AnalysisDeps{})
	if bare.Health(context.Background()).StreamConnected {
		t.Fatal("expected no stream")
	}
	if len(bare.RateLimits()) != 0 {
		t.Fatal("expected empty rate limit status")
	}
}

type stubChartRenderer struct {
	candles int
	signal  domain.FusedSignal
	err     error
}

func (s *stubChartRenderer) RenderAnalysisChart(candles []domain.Candle, signal domain.FusedSignal) (*chart.Image, error) {
	s.candles, s.signal = len(candles), signal
	if s.err != nil {
		return nil, s.err
	}
	return &chart.Image{MimeType: "image/png", Width: 10, Height: 10, Bytes: []byte("png")}, nil
}

func TestAnalysisServiceChart(t *testing.T) {
	bare, _ := newTestAnalysisService(&stubMarket{candles: risingCandles(120)}, AnalysisDeps{})
	if _, err := bare.Chart(context.Background(), "BTC"); !errors.Is(err, ErrChartUnavailable) {
		t.Fatalf("expected chart unavailable, got %v", err)
	}

	market := &stubMarket{candles: risingCandles(120)}
	renderer := &stubChartRenderer{}
	svc, _ := newTestAnalysisService(market, AnalysisDeps{Charts: renderer})

	img, err := svc.Chart(context.Background(), "btc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.MimeType != "image/png" || renderer.candles != 120 {
		t.Fatalf("unexpected render: %+v candles=%d", img, renderer.candles)
	}
	if !renderer.signal.Class.IsValid() {
		t.Fatal("expected the renderer to receive the fused signal")
	}

	if _, err := svc.Chart(context.Background(), "DOGE"); !errors.Is(err, ErrUnsupportedSymbol) {
		t.Fatalf("expected unsupported symbol, got %v", err)
	}
}

func TestAnalysisServiceChartErrors(t *testing.T) {
	market := &stubMarket{candles: risingCandles(120)}
	renderer := &stubChartRenderer{}
	svc, _ := newTestAnalysisService(market, AnalysisDeps{Charts: renderer})

	// warm the cache so only the chart fetch sees the failure
	if _, err := svc.Analyze(context.Background(), "BTC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	market.klinesErr = errUpstreamDown
	_, err := svc.Chart(context.Background(), "BTC")
	if !errors.Is(err, errUpstreamDown) || !strings.Contains(err.Error(), "fetch klines BTC") {
		t.Fatalf("expected wrapped klines error, got %v", err)
	}

	market.klinesErr = nil
	renderer.err = chart.ErrNotEnoughCandles
	if _, err := svc.Chart(context.Background(), "BTC"); !errors.Is(err, chart.ErrNotEnoughCandles) {
		t.Fatalf("expected render error, got %v", err)
	}
}
