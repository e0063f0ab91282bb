package fusion

import (
	"testing"
	"time"

	"signal-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	e := NewEngine(zerolog.Nop())
	e.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestOverallScoreWeighting(t *testing.T) {
	none := domain.OptInt{}
	assert.Equal(t, 80, OverallScore(80, none, none))
	assert.Equal(t, 72, OverallScore(80, domain.SomeInt(60), none))
	assert.Equal(t, 72, OverallScore(80, none, domain.SomeInt(60)))
	assert.Equal(t, 71, OverallScore(80, domain.SomeInt(60), domain.SomeInt(70)))
	assert.Equal(t, 33, OverallScore(33, domain.SomeInt(33), domain.SomeInt(34)))
}

func TestClassifyBoundaries(t *testing.T) {
	cases := map[int]domain.SignalClass{
		100: domain.StrongBuy,
		80:  domain.StrongBuy,
		79:  domain.Buy,
		65:  domain.Buy,
		64:  domain.WeakBuy,
		55:  domain.WeakBuy,
		54:  domain.Hold,
		45:  domain.Hold,
		44:  domain.WeakSell,
		35:  domain.WeakSell,
		34:  domain.Sell,
		20:  domain.Sell,
		19:  domain.StrongSell,
		0:   domain.StrongSell,
	}
	for score, want := range cases {
		assert.Equal(t, want, Classify(score), "score %d", score)
	}
}

func TestMacroScore(t *testing.T) {
	assert.Equal(t, 50, MacroScore(domain.MacroContext{}))
	assert.Equal(t, 100, MacroScore(domain.MacroContext{
		DXY: domain.Some(90), VIX: domain.Some(10), FearGreed: domain.Some(20),
	}))
	assert.Equal(t, 0, MacroScore(domain.MacroContext{
		DXY: domain.Some(120), VIX: domain.Some(40), FearGreed: domain.Some(90),
	}))
	assert.Equal(t, 60, MacroScore(domain.MacroContext{DXY: domain.Some(99)}))
	assert.Equal(t, 40, MacroScore(domain.MacroContext{DXY: domain.Some(102), VIX: domain.Some(27), FearGreed: domain.Some(65)}))
}

func TestSentimentScore(t *testing.T) {
	assert.Equal(t, 70, SentimentScore(domain.Buy, 80))
	assert.Equal(t, 95, SentimentScore(domain.StrongBuy, 100))
	assert.Equal(t, 35, SentimentScore(domain.StrongSell, 33))
	assert.Equal(t, 50, SentimentScore(domain.StrongBuy, 0))
	assert.Equal(t, 50, SentimentScore(domain.Hold, 90))
}

func TestAdjustConfidence(t *testing.T) {
	assert.Equal(t, 70, adjustConfidence(60, []int{70, 75, 72}))
	assert.Equal(t, 100, adjustConfidence(95, []int{70, 72}))
	assert.Equal(t, 35, adjustConfidence(50, []int{90, 20}))
	assert.Equal(t, 0, adjustConfidence(10, []int{90, 20}))
	assert.Equal(t, 50, adjustConfidence(50, []int{80, 60}))
	assert.Equal(t, 50, adjustConfidence(50, []int{80}))
}

func TestTradeLevelsForStrongBuyWithoutSentiment(t *testing.T) {
	entry, targets, stop := tradeLevels(domain.StrongBuy, 100, domain.IndicatorBundle{BBLower: domain.Some(95)}, nil)
	assert.Equal(t, domain.RangeEntry(98, 102), entry)
	assert.Equal(t, []float64{110, 120, 130}, targets)
	assert.Equal(t, domain.Some(95), stop)

	_, _, stop = tradeLevels(domain.Buy, 100, domain.IndicatorBundle{}, nil)
	assert.Equal(t, domain.Some(92), stop)
}

func TestTradeLevelsFromSentiment(t *testing.T) {
	s := &domain.SentimentResult{
		Rating:     domain.Buy,
		Confidence: 70,
		Timeframe:  domain.Swing,
		EntryLow:   domain.Some(95),
	}
	entry, targets, stop := tradeLevels(domain.Hold, 100, domain.IndicatorBundle{}, s)
	assert.Equal(t, domain.RangeEntry(95, 95), entry)
	assert.Equal(t, []float64{110, 120}, targets)
	assert.Equal(t, domain.Some(90), stop)

	s.EntryHigh = domain.Some(97)
	s.TargetConservative = domain.Some(115)
	s.TargetAggressive = domain.Some(140)
	s.StopLoss = domain.Some(88)
	entry, targets, stop = tradeLevels(domain.Hold, 100, domain.IndicatorBundle{}, s)
	assert.Equal(t, domain.RangeEntry(95, 97), entry)
	assert.Equal(t, []float64{115, 140}, targets)
	assert.Equal(t, domain.Some(88), stop)
}

func TestTradeLevelsForSellAndHold(t *testing.T) {
	entry, targets, stop := tradeLevels(domain.Sell, 100, domain.IndicatorBundle{}, nil)
	assert.Equal(t, domain.MarketEntry(100), entry)
	assert.Empty(t, targets)
	assert.False(t, stop.Valid)

	entry, targets, stop = tradeLevels(domain.WeakBuy, 100, domain.IndicatorBundle{}, nil)
	assert.Equal(t, domain.WaitEntry(), entry)
	assert.Empty(t, targets)
	assert.False(t, stop.Valid)
}

func TestPositionSize(t *testing.T) {
	assert.Equal(t, 8.0, PositionSize(domain.StrongBuy, 80, 1))
	assert.Equal(t, 3.0, PositionSize(domain.Buy, 50, 6))
	assert.Equal(t, 4.9, PositionSize(domain.Buy, 100, -12))
	assert.Equal(t, 1.8, PositionSize(domain.WeakBuy, 60, 0))
	assert.Equal(t, 0.0, PositionSize(domain.Hold, 90, 0))
	assert.Equal(t, 0.0, PositionSize(domain.StrongSell, 90, 0))
}

func TestFuseTechnicalOnly(t *testing.T) {
	e := newTestEngine()
	sig := e.Fuse(Input{
		Symbol: "BTC",
		Ticker: domain.Ticker{Price: 100, Change24h: 1},
		Bundle: domain.IndicatorBundle{Price: 100, TechnicalScore: 80},
	})

	assert.Equal(t, "BTC", sig.Symbol)
	assert.Equal(t, domain.StrongBuy, sig.Class)
	assert.Equal(t, 80, sig.OverallScore)
	assert.Equal(t, 50, sig.Confidence)
	assert.False(t, sig.MacroScore.Valid)
	assert.False(t, sig.SentimentScore.Valid)
	assert.Equal(t, "Enter Long Position (High Conviction)", sig.Action)
	assert.Equal(t, domain.RangeEntry(98, 102), sig.Entry)
	assert.Equal(t, []float64{110, 120, 130}, sig.Targets)
	assert.Equal(t, domain.Some(92), sig.StopLoss)
	assert.Equal(t, 5.0, sig.PositionSizePct)
	assert.Equal(t, "7-14 days", sig.Timeframe)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), sig.GeneratedAt)
}

func TestFuseWithMacro(t *testing.T) {
	e := newTestEngine()
	sig := e.Fuse(Input{
		Symbol: "ETH",
		Ticker: domain.Ticker{Price: 3000, Change24h: 6},
		Bundle: domain.IndicatorBundle{TechnicalScore: 80},
		Macro:  &domain.MacroContext{DXY: domain.Some(99)},
	})

	require.True(t, sig.MacroScore.Valid)
	assert.Equal(t, 60, sig.MacroScore.Value)
	assert.Equal(t, 72, sig.OverallScore)
	assert.Equal(t, domain.Buy, sig.Class)
	assert.Equal(t, 50, sig.Confidence)
	assert.Equal(t, 3.0, sig.PositionSizePct)
}

func TestFuseWithAllLayers(t *testing.T) {
	e := newTestEngine()
	sig := e.Fuse(Input{
		Symbol: "SOL",
		Ticker: domain.Ticker{Price: 150},
		Bundle: domain.IndicatorBundle{TechnicalScore: 70},
		Macro:  &domain.MacroContext{VIX: domain.Some(17), FearGreed: domain.Some(35)},
		Sentiment: &domain.SentimentResult{
			Rating:     domain.Buy,
			Confidence: 80,
			Timeframe:  domain.Swing,
		},
	})

	assert.Equal(t, 60, sig.MacroScore.Value)
	assert.Equal(t, 70, sig.SentimentScore.Value)
	assert.Equal(t, 67, sig.OverallScore)
	assert.Equal(t, domain.Buy, sig.Class)
	assert.Equal(t, 90, sig.Confidence)
	assert.Equal(t, "SWING", sig.Timeframe)
}

func TestFuseRecoversToSafeDefault(t *testing.T) {
	e := newTestEngine()
	e.now = func() time.Time { panic("clock unavailable") }

	sig := e.Fuse(Input{
		Symbol: "ADA",
		Ticker: domain.Ticker{Price: 1},
		Bundle: domain.IndicatorBundle{TechnicalScore: 63},
	})

	assert.Equal(t, domain.Hold, sig.Class)
	assert.Equal(t, 50, sig.OverallScore)
	assert.Equal(t, 0, sig.Confidence)
	assert.Equal(t, 63, sig.TechnicalScore)
	assert.Equal(t, "Wait for better setup", sig.Action)
	assert.Equal(t, domain.WaitEntry(), sig.Entry)
	assert.Empty(t, sig.Targets)
	assert.False(t, sig.StopLoss.Valid)
	assert.Equal(t, "N/A", sig.Timeframe)
}
