package provider

import (
	"context"

	"signal-pipeline/internal/cache"
	"signal-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

const fearGreedCacheID = "FNG"

// FearGreedSource is satisfied by FearGreedClient.
type FearGreedSource interface {
	Latest(ctx context.Context) (domain.FearGreed, error)
}

// StaticMacro holds operator supplied macro readings.
type StaticMacro struct {
	DXY          domain.Opt
	DXYTrend     string
	VIX          domain.Opt
	FedFundsRate domain.Opt
	MarketPhase  string
}

// MacroSupplier combines configured macro readings with the live fear &
// greed index.
type MacroSupplier struct {
	static    StaticMacro
	fearGreed FearGreedSource
	cache     *cache.Tiered
	log       zerolog.Logger
}

// NewMacroSupplier accepts a nil fearGreed or cache.
func NewMacroSupplier(static StaticMacro, fearGreed FearGreedSource, c *cache.Tiered, log zerolog.Logger) *MacroSupplier {
	return &MacroSupplier{
		static:    static,
		fearGreed: fearGreed,
		cache:     c,
		log:       log.With().Str("component", "macro").Logger(),
	}
}

// Macro returns nil when no reading is available. A failed fear & greed fetch
// drops that index and is not returned as an error.
func (m *MacroSupplier) Macro(ctx context.Context) (*domain.MacroContext, error) {
	out := domain.MacroContext{
		DXY:          m.static.DXY,
		DXYTrend:     m.static.DXYTrend,
		VIX:          m.static.VIX,
		FedFundsRate: m.static.FedFundsRate,
		MarketPhase:  m.static.MarketPhase,
	}
	if fg, ok := m.fearGreedIndex(ctx); ok {
		out.FearGreed = domain.Some(float64(fg.Value))
	}
	if out.Empty() {
		return nil, nil
	}
	return &out, nil
}

// FearGreed returns the cached or freshly fetched index.
func (m *MacroSupplier) FearGreed(ctx context.Context) (domain.FearGreed, bool) {
	return m.fearGreedIndex(ctx)
}

func (m *MacroSupplier) fearGreedIndex(ctx context.Context) (domain.FearGreed, bool) {
	var fg domain.FearGreed
	if m.cache != nil && m.cache.Get(ctx, cache.ClassMarket, fearGreedCacheID, &fg) {
		return fg, true
	}
	if m.fearGreed == nil {
		return domain.FearGreed{}, false
	}

	fg, err := m.fearGreed.Latest(ctx)
	if err != nil {
		m.log.Warn().Err(err).
			Str("source", "alternative").
			Str("operation", "fear-greed").
			Msg("fear greed index unavailable")
		return domain.FearGreed{}, false
	}
	if m.cache != nil {
		m.cache.Set(ctx, cache.ClassMarket, fearGreedCacheID, fg, 0)
	}
	return fg, true
}
