package service

import (
	"context"
	"fmt"
	"time"

	"signal-pipeline/internal/cache"
	"signal-pipeline/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	overviewCacheID = "OVERVIEW"
	overviewMovers  = 5
)

var briefSymbols = []string{"BTC", "ETH", "SOL"}

type MarketDataSource interface {
	Global(ctx context.Context) (domain.GlobalMarket, error)
	Movers(ctx context.Context, limit int) (gainers, losers []domain.MarketMover, err error)
}

type FearGreedReader interface {
	FearGreed(ctx context.Context) (domain.FearGreed, bool)
}

type MarketCache interface {
	Get(ctx context.Context, class cache.Class, id string, dst any) bool
	Set(ctx context.Context, class cache.Class, id string, v any, ttl time.Duration)
}

// BriefAnalyzer supplies the per-coin calls of the morning brief.
type BriefAnalyzer interface {
	IsTracked(symbol string) bool
	Analyze(ctx context.Context, symbol string) (domain.Analysis, error)
}

type MarketService struct {
	tracer    trace.Tracer
	source    MarketDataSource
	fearGreed FearGreedReader
	cache     MarketCache
	analysis  BriefAnalyzer
	now       func() time.Time
}

// NewMarketService accepts a nil fearGreed.
func NewMarketService(tracer trace.Tracer, source MarketDataSource, fearGreed FearGreedReader, c MarketCache) *MarketService {
	return &MarketService{
		tracer:    tracer,
		source:    source,
		fearGreed: fearGreed,
		cache:     c,
		now:       time.Now,
	}
}

// SetAnalysis enables MorningBrief. It must be called before serving.
func (s *MarketService) SetAnalysis(a BriefAnalyzer) {
	s.analysis = a
}

// Overview combines global market data, top movers and the fear & greed index.
func (s *MarketService) Overview(ctx context.Context) (domain.MarketOverview, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.overview")
	defer span.End()

	var out domain.MarketOverview
	if s.cache.Get(ctx, cache.ClassMarket, overviewCacheID, &out) {
		return out, nil
	}

	global, err := s.source.Global(ctx)
	if err != nil {
		return domain.MarketOverview{}, fmt.Errorf("market overview: %w", err)
	}
	gainers, losers, err := s.source.Movers(ctx, overviewMovers)
	if err != nil {
		return domain.MarketOverview{}, fmt.Errorf("market overview: %w", err)
	}

	out = domain.MarketOverview{
		TotalMarketCap:     global.TotalMarketCapUSD,
		BTCDominance:       global.BTCDominance,
		MarketCapChange24h: global.MarketCapChange24h,
		TopGainers:         gainers,
		TopLosers:          losers,
	}
	if s.fearGreed != nil {
		if fg, ok := s.fearGreed.FearGreed(ctx); ok {
			out.FearGreedIndex = domain.Some(float64(fg.Value))
		}
	}
	s.cache.Set(ctx, cache.ClassMarket, overviewCacheID, out, 0)
	return out, nil
}

// MorningBrief summarizes the market and the current calls for BTC, ETH and
// SOL. A coin whose analysis fails is left out; an overview failure fails the
// brief.
func (s *MarketService) MorningBrief(ctx context.Context) (domain.MorningBrief, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.morning-brief")
	defer span.End()

	if s.analysis == nil {
		return domain.MorningBrief{}, ErrBriefUnavailable
	}
	overview, err := s.Overview(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.MorningBrief{}, fmt.Errorf("morning brief: %w", err)
	}

	brief := domain.MorningBrief{
		Date:             s.now().UTC().Format(time.DateOnly),
		MarketStatus:     marketStatus(overview.MarketCapChange24h),
		TopOpportunities: []domain.Opportunity{},
		MacroAlerts:      []string{},
		RiskLevel:        riskLevel(overview.FearGreedIndex),
		FearGreed:        overview.FearGreedIndex,
	}
	for _, sym := range briefSymbols {
		if !s.analysis.IsTracked(sym) {
			continue
		}
		a, err := s.analysis.Analyze(ctx, sym)
		if err != nil {
			span.RecordError(err)
			continue
		}
		brief.TopOpportunities = append(brief.TopOpportunities, domain.Opportunity{
			Coin:       a.Symbol,
			Signal:     a.Signal.Class,
			Confidence: a.Signal.Confidence,
		})
	}
	return brief, nil
}

func marketStatus(capChange24h float64) string {
	if capChange24h > 0 {
		return "BULLISH"
	}
	return "BEARISH"
}

// riskLevel is HIGH at extreme fear or greed and MEDIUM otherwise.
func riskLevel(fearGreed domain.Opt) string {
	v, ok := fearGreed.Get()
	if ok && (v <= 25 || v >= 75) {
		return "HIGH"
	}
	return "MEDIUM"
}
