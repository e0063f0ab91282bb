package fusion

import (
	"fmt"
	"math"
	"time"

	"signal-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultTimeframe = "7-14 days"

// Input is everything the engine scores for one symbol. Macro and Sentiment are
// optional layers.
type Input struct {
	Symbol    string
	Ticker    domain.Ticker
	Bundle    domain.IndicatorBundle
	Macro     *domain.MacroContext
	Sentiment *domain.SentimentResult
}

var sentimentAnchors = map[domain.SignalClass]int64{
	domain.StrongBuy:  95,
	domain.Buy:        75,
	domain.WeakBuy:    60,
	domain.Hold:       50,
	domain.WeakSell:   40,
	domain.Sell:       25,
	domain.StrongSell: 5,
}

var actions = map[domain.SignalClass]string{
	domain.StrongBuy:  "Enter Long Position (High Conviction)",
	domain.Buy:        "Enter Long Position",
	domain.WeakBuy:    "Scale In (Small Position)",
	domain.Hold:       "Wait / Hold Current Positions",
	domain.WeakSell:   "Consider Taking Profits",
	domain.Sell:       "Exit Long Positions",
	domain.StrongSell: "Exit All Positions (Urgent)",
}

var basePositionSize = map[domain.SignalClass]float64{
	domain.StrongBuy: 10,
	domain.Buy:       7,
	domain.WeakBuy:   3,
}

var (
	weightTechnical3 = decimal.RequireFromString("0.4")
	weightOther3     = decimal.RequireFromString("0.3")
	weightTechnical2 = decimal.RequireFromString("0.6")
	weightOther2     = decimal.RequireFromString("0.4")
	hundred          = decimal.NewFromInt(100)
)

// Engine fuses the technical, macro and sentiment layers into one signal. It is
// stateless and safe for concurrent use.
type Engine struct {
	log zerolog.Logger
	now func() time.Time
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log: log.With().Str("component", "fusion").Logger(),
		now: time.Now,
	}
}

// Fuse never fails. An internal fault yields a neutral HOLD with zero confidence.
func (e *Engine) Fuse(in Input) (out domain.FusedSignal) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Str("symbol", in.Symbol).
				Str("operation", "fuse").
				Str("panic", fmt.Sprint(r)).
				Msg("signal fusion failed, returning safe default")
			out = SafeDefault(in.Symbol, in.Bundle.TechnicalScore)
		}
	}()

	technical := in.Bundle.TechnicalScore
	var macroScore, sentimentScore domain.OptInt
	if in.Macro != nil {
		macroScore = domain.SomeInt(MacroScore(*in.Macro))
	}
	if in.Sentiment != nil {
		sentimentScore = domain.SomeInt(SentimentScore(in.Sentiment.Rating, in.Sentiment.Confidence))
	}

	overall := OverallScore(technical, macroScore, sentimentScore)
	class := Classify(overall)

	confidence := 50
	if in.Sentiment != nil {
		confidence = in.Sentiment.Confidence
	}
	confidence = adjustConfidence(confidence, layerScores(technical, macroScore, sentimentScore))

	entry, targets, stop := tradeLevels(class, in.Ticker.Price, in.Bundle, in.Sentiment)

	timeframe := defaultTimeframe
	if in.Sentiment != nil {
		timeframe = in.Sentiment.Timeframe.String()
	}

	return domain.FusedSignal{
		Symbol:          in.Symbol,
		Class:           class,
		OverallScore:    overall,
		Confidence:      confidence,
		TechnicalScore:  technical,
		MacroScore:      macroScore,
		SentimentScore:  sentimentScore,
		Action:          Action(class),
		Entry:           entry,
		Targets:         targets,
		StopLoss:        stop,
		PositionSizePct: PositionSize(class, confidence, in.Ticker.Change24h),
		Timeframe:       timeframe,
		GeneratedAt:     e.now().UTC(),
	}
}

// SafeDefault is the neutral signal returned when fusion cannot complete.
func SafeDefault(symbol string, technicalScore int) domain.FusedSignal {
	return domain.FusedSignal{
		Symbol:         symbol,
		Class:          domain.Hold,
		OverallScore:   50,
		Confidence:     0,
		TechnicalScore: technicalScore,
		Action:         "Wait for better setup",
		Entry:          domain.WaitEntry(),
		Targets:        []float64{},
		Timeframe:      "N/A",
		GeneratedAt:    time.Now().UTC(),
	}
}

// MacroScore rates the macro backdrop from 0 (hostile) to 100 (supportive).
// Unavailable indices contribute nothing.
func MacroScore(m domain.MacroContext) int {
	score := 50

	if dxy, ok := m.DXY.Get(); ok {
		switch {
		case dxy < 95:
			score += 20
		case dxy < 100:
			score += 10
		case dxy > 110:
			score -= 20
		case dxy > 105:
			score -= 10
		}
	}

	if vix, ok := m.VIX.Get(); ok {
		switch {
		case vix < 15:
			score += 15
		case vix < 20:
			score += 5
		case vix > 30:
			score -= 15
		case vix > 25:
			score -= 5
		}
	}

	// Fear is read contrarian: extreme fear is a buying opportunity.
	if fgi, ok := m.FearGreed.Get(); ok {
		switch {
		case fgi < 25:
			score += 15
		case fgi < 40:
			score += 5
		case fgi > 75:
			score -= 15
		case fgi > 60:
			score -= 5
		}
	}

	return max(0, min(100, score))
}

// SentimentScore pulls the rating anchor toward 50 in proportion to the provider's
// confidence, truncating toward zero.
func SentimentScore(rating domain.SignalClass, confidence int) int {
	anchor, ok := sentimentAnchors[rating]
	if !ok {
		anchor = 50
	}
	confidence = max(0, min(100, confidence))
	return int(decimal.NewFromInt(anchor - 50).
		Mul(decimal.NewFromInt(int64(confidence))).
		Div(hundred).
		Add(decimal.NewFromInt(50)).
		IntPart())
}

// OverallScore weights the available layers with exact decimal arithmetic.
func OverallScore(technical int, macro, sentiment domain.OptInt) int {
	t := decimal.NewFromInt(int64(technical))
	m, hasMacro := macro.Get()
	s, hasSentiment := sentiment.Get()

	var score decimal.Decimal
	switch {
	case hasMacro && hasSentiment:
		score = t.Mul(weightTechnical3).
			Add(decimal.NewFromInt(int64(m)).Mul(weightOther3)).
			Add(decimal.NewFromInt(int64(s)).Mul(weightOther3))
	case hasMacro:
		score = t.Mul(weightTechnical2).Add(decimal.NewFromInt(int64(m)).Mul(weightOther2))
	case hasSentiment:
		score = t.Mul(weightTechnical2).Add(decimal.NewFromInt(int64(s)).Mul(weightOther2))
	default:
		return technical
	}
	return int(score.IntPart())
}

func Classify(score int) domain.SignalClass {
	switch {
	case score >= 80:
		return domain.StrongBuy
	case score >= 65:
		return domain.Buy
	case score >= 55:
		return domain.WeakBuy
	case score >= 45:
		return domain.Hold
	case score >= 35:
		return domain.WeakSell
	case score >= 20:
		return domain.Sell
	}
	return domain.StrongSell
}

func Action(class domain.SignalClass) string {
	if a, ok := actions[class]; ok {
		return a
	}
	return "Hold"
}

func layerScores(technical int, macro, sentiment domain.OptInt) []int {
	scores := []int{technical}
	if v, ok := macro.Get(); ok {
		scores = append(scores, v)
	}
	if v, ok := sentiment.Get(); ok {
		scores = append(scores, v)
	}
	return scores
}

// adjustConfidence rewards agreeing layers and penalises diverging ones.
func adjustConfidence(confidence int, scores []int) int {
	if len(scores) < 2 {
		return confidence
	}
	var sum float64
	for _, s := range scores {
		sum += float64(s)
	}
	mean := sum / float64(len(scores))
	var variance float64
	for _, s := range scores {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	switch {
	case variance < 100:
		return min(100, confidence+10)
	case variance > 400:
		return max(0, confidence-15)
	}
	return confidence
}

func tradeLevels(
	class domain.SignalClass,
	price float64,
	bundle domain.IndicatorBundle,
	sentiment *domain.SentimentResult,
) (domain.EntryZone, []float64, domain.Opt) {
	if sentiment != nil {
		if low, ok := positive(sentiment.EntryLow); ok {
			high := low
			if v, ok := positive(sentiment.EntryHigh); ok {
				high = v
			}
			targets := []float64{
				orScaled(sentiment.TargetConservative, price, "1.1"),
				orScaled(sentiment.TargetAggressive, price, "1.2"),
			}
			return domain.RangeEntry(low, high), targets, domain.Some(orScaled(sentiment.StopLoss, price, "0.9"))
		}
	}

	switch {
	case class.IsBuy():
		stop := scale(price, "0.92")
		if lower, ok := positive(bundle.BBLower); ok {
			stop = lower
		}
		return domain.RangeEntry(scale(price, "0.98"), scale(price, "1.02")),
			[]float64{scale(price, "1.1"), scale(price, "1.2"), scale(price, "1.3")},
			domain.Some(stop)
	case class.IsSell():
		return domain.MarketEntry(price), []float64{}, domain.None()
	}
	return domain.WaitEntry(), []float64{}, domain.None()
}

// PositionSize is the suggested share of the portfolio in percent, cut back on
// volatile days and rounded half away from zero to one decimal.
func PositionSize(class domain.SignalClass, confidence int, change24h float64) float64 {
	size := decimal.NewFromFloat(basePositionSize[class]).
		Mul(decimal.NewFromInt(int64(confidence))).
		Div(hundred)

	switch volatility := math.Abs(change24h); {
	case volatility > 10:
		size = size.Mul(decimal.RequireFromString("0.7"))
	case volatility > 5:
		size = size.Mul(decimal.RequireFromString("0.85"))
	}
	return size.Round(1).InexactFloat64()
}

func positive(o domain.Opt) (float64, bool) {
	v, ok := o.Get()
	return v, ok && v > 0
}

func orScaled(o domain.Opt, price float64, factor string) float64 {
	if v, ok := positive(o); ok {
		return v
	}
	return scale(price, factor)
}

func scale(price float64, factor string) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.RequireFromString(factor)).InexactFloat64()
}
