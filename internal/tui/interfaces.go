package tui

import (
	"context"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"
)

// AnalysisQuerier provides the signal pipeline to the TUI.
type AnalysisQuerier interface {
	Symbols() []string
	Analyze(ctx context.Context, symbol string) (domain.Analysis, error)
	CachedSignals(ctx context.Context) []domain.SignalSummary
	RateLimits() map[string]ratelimit.SourceStatus
}

// MarketQuerier provides the market overview to the TUI.
type MarketQuerier interface {
	Overview(ctx context.Context) (domain.MarketOverview, error)
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Analysis AnalysisQuerier
	Market   MarketQuerier
	Username string
}
