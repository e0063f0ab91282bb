package mcp

import (
	"context"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"
)

// AnalysisReader exposes the signal pipeline to MCP clients.
type AnalysisReader interface {
	Symbols() []string
	IsTracked(symbol string) bool
	Analyze(ctx context.Context, symbol string) (domain.Analysis, error)
	CachedSignals(ctx context.Context) []domain.SignalSummary
	RateLimits() map[string]ratelimit.SourceStatus
}

// MarketReader exposes the market overview.
type MarketReader interface {
	Overview(ctx context.Context) (domain.MarketOverview, error)
	MorningBrief(ctx context.Context) (domain.MorningBrief, error)
}
