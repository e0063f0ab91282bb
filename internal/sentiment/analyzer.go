package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"signal-pipeline/internal/domain"

	"github.com/rs/zerolog"
)

// LLMClient completes a single prompt.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Analyzer asks a language model for an advisory rating. It never returns an
// error; failures produce SafeDefault.
type Analyzer struct {
	client LLMClient
	gate   func(ctx context.Context) error
	log    zerolog.Logger
	now    func() time.Time
}

// NewAnalyzer wires client behind gate, usually the sentiment rate limit.
// A nil gate admits every call.
func NewAnalyzer(client LLMClient, gate func(ctx context.Context) error, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		gate:   gate,
		log:    log.With().Str("component", "sentiment").Logger(),
		now:    time.Now,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, req Request) domain.SentimentResult {
	result, err := a.analyze(ctx, req)
	if err != nil {
		a.log.Error().Err(err).
			Str("symbol", req.Symbol).
			Str("source", "sentiment").
			Str("operation", "analyze").
			Msg("sentiment analysis failed")
		return SafeDefault(req.Symbol, err, a.now())
	}
	return result
}

func (a *Analyzer) analyze(ctx context.Context, req Request) (domain.SentimentResult, error) {
	if a.client == nil {
		return domain.SentimentResult{}, errors.New("no sentiment backend configured")
	}
	if a.gate != nil {
		if err := a.gate(ctx); err != nil {
			return domain.SentimentResult{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	text, err := a.client.Complete(ctx, BuildPrompt(req))
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("complete: %w", err)
	}
	result, err := ParseResponse(text)
	if err != nil {
		return domain.SentimentResult{}, err
	}
	result.Symbol = req.Symbol
	result.Timestamp = a.now().UTC()
	return result, nil
}

const safeDefaultPrefix = "Analysis error: "

// SafeDefault is the neutral, zero-confidence result used on any failure.
func SafeDefault(symbol string, err error, now time.Time) domain.SentimentResult {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return domain.SentimentResult{
		Symbol:     symbol,
		Rating:     domain.Hold,
		Confidence: 0,
		Timeframe:  domain.Swing,
		Reasoning:  safeDefaultPrefix + reason,
		KeyFactors: []string{},
		Risks:      []string{"Unable to analyze due to error"},
		Timestamp:  now.UTC(),
	}
}

// IsSafeDefault reports whether r was produced by SafeDefault.
func IsSafeDefault(r domain.SentimentResult) bool {
	return r.Confidence == 0 && strings.HasPrefix(r.Reasoning, safeDefaultPrefix)
}
