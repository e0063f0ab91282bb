package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

type stubAnalysis struct {
	summaries   []domain.SignalSummary
	lastAnalyze string
	analyzeErr  error
}

func (s *stubAnalysis) Symbols() []string { return []string{"BTC", "ETH"} }

func (s *stubAnalysis) IsTracked(symbol string) bool { return symbol == "BTC" || symbol == "ETH" }

func (s *stubAnalysis) Analyze(ctx context.Context, symbol string) (domain.Analysis, error) {
	s.lastAnalyze = symbol
	if s.analyzeErr != nil {
		return domain.Analysis{}, s.analyzeErr
	}
	return domain.Analysis{
		Symbol: symbol,
		Ticker: domain.Ticker{Price: 50000, Change24h: 2.1},
		Signal: domain.FusedSignal{
			Class:        domain.Buy,
			OverallScore: 68,
			Confidence:   55,
			Entry:        domain.RangeEntry(49500, 50500),
			Targets:      []float64{52000, 54000, 56000},
			StopLoss:     domain.Some(47000),
			Timeframe:    "7-14 days",
		},
		GeneratedAt: time.Unix(0, 0).UTC(),
	}, nil
}

func (s *stubAnalysis) CachedSignals(context.Context) []domain.SignalSummary {
	return append([]domain.SignalSummary(nil), s.summaries...)
}

func (s *stubAnalysis) RateLimits() map[string]ratelimit.SourceStatus {
	return map[string]ratelimit.SourceStatus{
		ratelimit.SourceCoinGecko: {AvailableTokens: 40, Capacity: 45, UsagePercent: 11.11, RefillRate: 0.75},
	}
}

type stubMarket struct {
	err error
}

func (s *stubMarket) Overview(context.Context) (domain.MarketOverview, error) {
	if s.err != nil {
		return domain.MarketOverview{}, s.err
	}
	return domain.MarketOverview{
		TotalMarketCap: 2.4e12,
		BTCDominance:   52.1,
		FearGreedIndex: domain.Some(41),
		TopGainers:     []domain.MarketMover{{Symbol: "SOL", Change24h: 9.5}},
		TopLosers:      []domain.MarketMover{{Symbol: "ADA", Change24h: -4.2}},
	}, nil
}

func (s *stubMarket) MorningBrief(context.Context) (domain.MorningBrief, error) {
	if s.err != nil {
		return domain.MorningBrief{}, s.err
	}
	return domain.MorningBrief{
		Date:             "2025-03-14",
		MarketStatus:     "BULLISH",
		TopOpportunities: []domain.Opportunity{{Coin: "BTC", Signal: domain.Buy, Confidence: 55}},
		MacroAlerts:      []string{},
		RiskLevel:        "MEDIUM",
		FearGreed:        domain.Some(41),
	}, nil
}

var errStubDown = errors.New("binance returned http 502")

func testServer() (*sdkmcp.Server, *stubAnalysis, *stubMarket) {
	analysis := &stubAnalysis{
		summaries: []domain.SignalSummary{
			{Symbol: "BTC", Signal: domain.Buy, Confidence: 70, Price: 50000},
			{Symbol: "ETH", Signal: domain.Hold, Confidence: 30, Price: 3000},
		},
	}
	market := &stubMarket{}

	srv := NewServer(nil, analysis, market, ServerConfig{RequestTimeout: time.Second, Logger: zerolog.Nop()})
	return srv, analysis, market
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
