package sentiment

import (
	"fmt"
	"strings"

	"signal-pipeline/internal/domain"
)

// Request is the market context handed to the language model.
type Request struct {
	Symbol string
	Ticker domain.Ticker
	Bundle domain.IndicatorBundle
	Macro  *domain.MacroContext
}

func fmtOpt(o domain.Opt, format string) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf(format, v)
	}
	return "N/A"
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

// BuildPrompt renders the swing-trading analysis prompt with a strict JSON answer schema.
func BuildPrompt(req Request) string {
	var b strings.Builder
	t, ind := req.Ticker, req.Bundle

	fmt.Fprintf(&b, "Analyze %s for a swing trading opportunity.\n\n", req.Symbol)

	b.WriteString("CURRENT PRICE DATA:\n")
	fmt.Fprintf(&b, "Symbol: %s\n", req.Symbol)
	fmt.Fprintf(&b, "Price: $%.2f\n", t.Price)
	fmt.Fprintf(&b, "24h Change: %+.2f%%\n", t.Change24h)
	fmt.Fprintf(&b, "24h Volume: $%.0f\n", t.Volume24h)
	fmt.Fprintf(&b, "24h High: $%.2f\n", t.High24h)
	fmt.Fprintf(&b, "24h Low: $%.2f\n\n", t.Low24h)

	b.WriteString("TECHNICAL INDICATORS:\n")
	fmt.Fprintf(&b, "RSI: %s (%s)\n", fmtOpt(ind.RSI, "%.1f"), ind.RSIClass)
	fmt.Fprintf(&b, "MACD: %s (Signal: %s, Histogram: %s) %s\n",
		fmtOpt(ind.MACD, "%.2f"), fmtOpt(ind.MACDSignal, "%.2f"), fmtOpt(ind.MACDHistogram, "%.2f"), ind.MACDClass)
	b.WriteString("Bollinger Bands:\n")
	fmt.Fprintf(&b, "  - Upper: %s\n", fmtOpt(ind.BBUpper, "$%.2f"))
	fmt.Fprintf(&b, "  - Middle: %s\n", fmtOpt(ind.BBMiddle, "$%.2f"))
	fmt.Fprintf(&b, "  - Lower: %s\n", fmtOpt(ind.BBLower, "$%.2f"))
	fmt.Fprintf(&b, "EMA 20: %s\n", fmtOpt(ind.EMA20, "$%.2f"))
	fmt.Fprintf(&b, "EMA 50: %s\n", fmtOpt(ind.EMA50, "$%.2f"))
	fmt.Fprintf(&b, "EMA 200: %s\n", fmtOpt(ind.EMA200, "$%.2f"))
	fmt.Fprintf(&b, "Trend: %s\n", ind.Trend)
	fmt.Fprintf(&b, "Volume Ratio: %s\n\n", fmtOpt(ind.VolumeRatio, "%.2fx average"))

	b.WriteString("MACRO CONTEXT:\n")
	if req.Macro == nil {
		b.WriteString("Not available\n\n")
	} else {
		m := req.Macro
		fmt.Fprintf(&b, "DXY (Dollar Index): %s - Trend: %s\n", fmtOpt(m.DXY, "%.2f"), orUnknown(m.DXYTrend))
		fmt.Fprintf(&b, "VIX (Market Fear): %s\n", fmtOpt(m.VIX, "%.2f"))
		fmt.Fprintf(&b, "Fed Funds Rate: %s\n", fmtOpt(m.FedFundsRate, "%.2f%%"))
		fmt.Fprintf(&b, "Fear & Greed Index: %s\n", fmtOpt(m.FearGreed, "%.0f/100"))
		fmt.Fprintf(&b, "Market Phase: %s\n\n", orUnknown(m.MarketPhase))
	}

	b.WriteString(strategyAndSchema)
	return b.String()
}

const strategyAndSchema = `STRATEGY PRINCIPLES:
1. Focus: buying dips in uptrends, not catching falling knives in bear markets
2. Timeframe: swing trades lasting days to weeks
3. Entry: only when technical, macro and risk/reward factors align
4. Risk management: strict stop losses, position size scaled by confidence
5. Macro must be supportive: easing policy, weak dollar, risk-on environment

YOUR TASK:
Provide a trading recommendation in STRICT JSON format with this exact structure:
{
  "rating": "STRONG_BUY" | "BUY" | "WEAK_BUY" | "HOLD" | "WEAK_SELL" | "SELL" | "STRONG_SELL",
  "confidence": 0-100,
  "timeframe": "SCALP" | "DAY" | "SWING" | "POSITION",
  "entry_zone_low": <number>,
  "entry_zone_high": <number>,
  "target_conservative": <number>,
  "target_aggressive": <number>,
  "stop_loss": <number>,
  "risk_reward_ratio": <number>,
  "reasoning": "2-4 sentences explaining the rating",
  "key_factors": ["Factor 1", "Factor 2", "Factor 3"],
  "risks": ["Risk 1", "Risk 2"],
  "position_size_pct": 1-10
}

CONFIDENCE GUIDELINES:
- 80-100: very high conviction, multiple strong signals
- 60-79: good conviction, favorable setup
- 40-59: moderate conviction, mixed signals
- 20-39: low conviction, uncertain
- 0-19: very low conviction, avoid

IMPORTANT:
- Respond ONLY with valid JSON, no markdown and no text around it
- All numeric fields must be numbers, not strings
- Base entry and exit levels on support and resistance

Provide your analysis now:`
