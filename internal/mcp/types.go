package mcp

import (
	"fmt"
	"strings"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 200
)

type coinsListInput struct{}

type coinsListOutput struct {
	Coins []string `json:"coins"`
}

type coinAnalyzeInput struct {
	Symbol string `json:"symbol" jsonschema:"tracked coin symbol (e.g. BTC, ETH)"`
}

type coinAnalyzeOutput struct {
	Analysis domain.Analysis `json:"analysis"`
}

type signalsListCachedInput struct {
	Signal        string `json:"signal,omitempty" jsonschema:"optional signal class: STRONG_BUY, BUY, WEAK_BUY, HOLD, WEAK_SELL, SELL, STRONG_SELL"`
	MinConfidence int    `json:"min_confidence,omitempty" jsonschema:"optional minimum confidence 0-100"`
	Limit         int    `json:"limit,omitempty" jsonschema:"number of signals to return, max 200"`
}

type signalsListCachedOutput struct {
	Signals []domain.SignalSummary `json:"signals"`
}

type rateLimitsStatusInput struct{}

type rateLimitsStatusOutput struct {
	Sources map[string]ratelimit.SourceStatus `json:"sources"`
}

type marketOverviewInput struct{}

type marketOverviewOutput struct {
	Overview domain.MarketOverview `json:"overview"`
}

type morningBriefInput struct{}

type morningBriefOutput struct {
	Brief domain.MorningBrief `json:"brief"`
}

type signalFilter struct {
	Class         domain.SignalClass
	MinConfidence int
	Limit         int
}

func normalizeSymbol(analysis AnalysisReader, symbol string) (string, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}
	if !analysis.IsTracked(symbol) {
		return "", fmt.Errorf("coin %s not tracked", symbol)
	}
	return symbol, nil
}

func normalizeSignalLimit(limit int) int {
	if limit <= 0 {
		return defaultSignalLimit
	}
	if limit > maxSignalLimit {
		return maxSignalLimit
	}
	return limit
}

func normalizeSignalFilter(in signalsListCachedInput) (signalFilter, error) {
	filter := signalFilter{Limit: normalizeSignalLimit(in.Limit)}

	if strings.TrimSpace(in.Signal) != "" {
		class, err := domain.ParseSignalClass(in.Signal)
		if err != nil {
			return signalFilter{}, err
		}
		filter.Class = class
	}

	if in.MinConfidence < 0 || in.MinConfidence > 100 {
		return signalFilter{}, fmt.Errorf("min_confidence must be between 0 and 100")
	}
	filter.MinConfidence = in.MinConfidence
	return filter, nil
}

func (f signalFilter) apply(summaries []domain.SignalSummary) []domain.SignalSummary {
	out := make([]domain.SignalSummary, 0, min(len(summaries), f.Limit))
	for _, s := range summaries {
		if len(out) == f.Limit {
			break
		}
		if f.Class.IsValid() && s.Signal != f.Class {
			continue
		}
		if s.Confidence < f.MinConfidence {
			continue
		}
		out = append(out, s)
	}
	return out
}
