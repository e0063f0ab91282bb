package sentiment

import (
	"encoding/json"
	"fmt"
	"strings"

	"signal-pipeline/internal/domain"
)

type rawAnalysis struct {
	Rating             *string    `json:"rating"`
	Confidence         *float64   `json:"confidence"`
	Timeframe          *string    `json:"timeframe"`
	EntryLow           domain.Opt `json:"entry_zone_low"`
	EntryHigh          domain.Opt `json:"entry_zone_high"`
	TargetConservative domain.Opt `json:"target_conservative"`
	TargetAggressive   domain.Opt `json:"target_aggressive"`
	StopLoss           domain.Opt `json:"stop_loss"`
	RiskReward         domain.Opt `json:"risk_reward_ratio"`
	PositionSizePct    domain.Opt `json:"position_size_pct"`
	Reasoning          string     `json:"reasoning"`
	KeyFactors         []string   `json:"key_factors"`
	Risks              []string   `json:"risks"`
}

// extractJSON returns the body of the first ```json or ``` fence, or the whole
// text when there is none.
func extractJSON(text string) string {
	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		body := text[start+len(fence):]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

// ParseResponse decodes a model answer. Missing rating, confidence and timeframe
// default to HOLD, 50 and SWING. Unknown enum text is an error.
func ParseResponse(text string) (domain.SentimentResult, error) {
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return domain.SentimentResult{}, fmt.Errorf("decode analysis json: %w", err)
	}

	out := domain.SentimentResult{
		Rating:             domain.Hold,
		Confidence:         50,
		Timeframe:          domain.Swing,
		EntryLow:           raw.EntryLow,
		EntryHigh:          raw.EntryHigh,
		TargetConservative: raw.TargetConservative,
		TargetAggressive:   raw.TargetAggressive,
		StopLoss:           raw.StopLoss,
		RiskReward:         raw.RiskReward,
		PositionSizePct:    raw.PositionSizePct,
		Reasoning:          raw.Reasoning,
		KeyFactors:         raw.KeyFactors,
		Risks:              raw.Risks,
	}
	if raw.Rating != nil {
		rating, err := domain.ParseSignalClass(*raw.Rating)
		if err != nil {
			return domain.SentimentResult{}, err
		}
		out.Rating = rating
	}
	if raw.Confidence != nil {
		out.Confidence = max(0, min(100, int(*raw.Confidence)))
	}
	if raw.Timeframe != nil {
		tf, err := domain.ParseTimeframe(*raw.Timeframe)
		if err != nil {
			return domain.SentimentResult{}, err
		}
		out.Timeframe = tf
	}
	if out.Reasoning == "" {
		out.Reasoning = "Analysis completed"
	}
	if out.KeyFactors == nil {
		out.KeyFactors = []string{}
	}
	if out.Risks == nil {
		out.Risks = []string{}
	}
	return out, nil
}
