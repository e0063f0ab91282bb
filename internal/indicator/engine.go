package indicator

import (
	"errors"
	"fmt"
	"sort"

	"signal-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

// MinBars is the shortest series Analyze accepts. It is shorter
// than the longest window: EMA 200 and any other indicator that needs more
// history is reported unavailable on its own, and the partial bundle is still
// scored.
const MinBars = 50

const squeezeWidthPct = 10.0

var ErrInsufficientHistory = errors.New("insufficient price history")

type Engine struct {
	log zerolog.Logger
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "indicator").Logger()}
}

// Analyze computes the indicator bundle for the most recent candle. The result
// depends only on the input series.
func (e *Engine) Analyze(series []domain.Candle) (domain.IndicatorBundle, error) {
	candles := normalizeCandles(series)
	if len(candles) < MinBars {
		e.log.Warn().Int("required", MinBars).Int("got", len(candles)).Msg("insufficient candles for analysis")
		return domain.IndicatorBundle{}, fmt.Errorf("%w: need %d candles, got %d", ErrInsufficientHistory, MinBars, len(candles))
	}

	closes := extractCloses(candles)
	volumes := extractVolumes(candles)

	b := domain.IndicatorBundle{Price: closes[len(closes)-1]}
	b.RSI = RSI(closes, RSIPeriod)
	b.MACD, b.MACDSignal, b.MACDHistogram = MACD(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)
	b.BBUpper, b.BBMiddle, b.BBLower = Bollinger(closes, BollingerPeriod, BollingerStdDevs)
	b.EMA20 = EMA(closes, 20)
	b.EMA50 = EMA(closes, 50)
	b.EMA200 = EMA(closes, 200)
	b.VolumeRatio = VolumeRatio(volumes, VolumeWindow)

	b.RSIClass = ClassifyRSI(b.RSI)
	b.MACDClass = ClassifyMACD(b.MACD, b.MACDSignal, b.MACDHistogram)
	b.BBClass = ClassifyBands(b.Price, b.BBUpper, b.BBMiddle, b.BBLower)
	b.Trend = ClassifyTrend(b.Price, b.EMA20, b.EMA50, b.EMA200)
	b.TechnicalScore = TechnicalScore(b)
	return b, nil
}

func ClassifyRSI(rsi domain.Opt) domain.MomentumClass {
	v, ok := rsi.Get()
	switch {
	case !ok:
		return domain.MomentumNeutral
	case v < 30:
		return domain.MomentumOversold
	case v > 70:
		return domain.MomentumOverbought
	case v < 40:
		return domain.MomentumBearish
	case v > 60:
		return domain.MomentumBullish
	}
	return domain.MomentumNeutral
}

func ClassifyMACD(line, signal, histogram domain.Opt) domain.MACDClass {
	m, okM := line.Get()
	s, okS := signal.Get()
	h, okH := histogram.Get()
	if !okM || !okS || !okH {
		return domain.MACDNeutral
	}
	if h > 0 {
		if m > s {
			return domain.MACDBullish
		}
		return domain.MACDNeutral
	}
	if m < s {
		return domain.MACDBearish
	}
	return domain.MACDNeutral
}

func ClassifyBands(price float64, upper, middle, lower domain.Opt) domain.BandClass {
	u, okU := upper.Get()
	m, okM := middle.Get()
	l, okL := lower.Get()
	if !okU || !okM || !okL {
		return domain.BandNeutral
	}
	switch {
	case price < l:
		return domain.BandOversold
	case price > u:
		return domain.BandOverbought
	case m != 0 && (u-l)/m*100 < squeezeWidthPct:
		return domain.BandSqueeze
	}
	return domain.BandNeutral
}

func ClassifyTrend(price float64, ema20, ema50, ema200 domain.Opt) domain.TrendClass {
	e20, ok20 := ema20.Get()
	e50, ok50 := ema50.Get()
	e200, ok200 := ema200.Get()
	if !ok20 || !ok50 || !ok200 {
		return domain.TrendUnknown
	}
	switch {
	case price > e200:
		if e20 > e50 && e50 > e200 {
			return domain.TrendStrongUp
		}
		return domain.TrendUp
	case price < e200:
		if e20 < e50 && e50 < e200 {
			return domain.TrendStrongDown
		}
		return domain.TrendDown
	}
	return domain.TrendSideways
}

// TechnicalScore folds a bundle into 0..100 starting from a neutral 50.
// Missing inputs contribute nothing.
func TechnicalScore(b domain.IndicatorBundle) int {
	score := 50

	if rsi, ok := b.RSI.Get(); ok {
		switch {
		case rsi < 30:
			score += 20
		case rsi < 40:
			score += 10
		case rsi > 70:
			score -= 20
		case rsi > 60:
			score -= 10
		}
	}

	switch b.MACDClass {
	case domain.MACDBullish:
		score += 20
	case domain.MACDBearish:
		score -= 20
	}

	switch b.Trend {
	case domain.TrendStrongUp:
		score += 30
	case domain.TrendUp:
		score += 15
	case domain.TrendDown:
		score -= 15
	case domain.TrendStrongDown:
		score -= 30
	}

	switch b.BBClass {
	case domain.BandOversold:
		score += 15
	case domain.BandOverbought:
		score -= 15
	case domain.BandSqueeze:
		score += 5
	}

	// Volume confirms whichever side the score already leans to.
	if ratio, ok := b.VolumeRatio.Get(); ok {
		switch {
		case ratio > 1.5:
			if score > 50 {
				score += 15
			} else {
				score -= 15
			}
		case ratio < 0.5:
			if score > 50 {
				score -= 5
			} else {
				score += 5
			}
		}
	}

	return max(0, min(100, score))
}

func normalizeCandles(in []domain.Candle) []domain.Candle {
	out := make([]domain.Candle, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out
}

func extractCloses(candles []domain.Candle) []float64 {
	values := make([]float64, len(candles))
	for i := range candles {
		values[i] = candles[i].Close
	}
	return values
}

func extractVolumes(candles []domain.Candle) []float64 {
	values := make([]float64, len(candles))
	for i := range candles {
		values[i] = candles[i].Volume
	}
	return values
}
