package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/metrics"
	"signal-pipeline/internal/ratelimit"

	"github.com/rs/zerolog"
)

const DefaultFearGreedURL = "https://api.alternative.me/fng/"

// FearGreedClient reads the alternative.me crypto fear & greed index.
type FearGreedClient struct {
	url   string
	fetch fetcher
	gate  Gate
}

type fearGreedResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
}

func NewFearGreedClient(url string, client *http.Client, limiter *ratelimit.Controller, log zerolog.Logger, rec *metrics.Recorder) *FearGreedClient {
	if url == "" {
		url = DefaultFearGreedURL
	}
	return &FearGreedClient{
		url:   url,
		fetch: newFetcher(ratelimit.SourceAlternative, client, log, rec),
		gate:  gateFor(limiter, ratelimit.SourceAlternative, ratelimit.PriorityLow),
	}
}

// Latest returns the most recent index reading.
func (c *FearGreedClient) Latest(ctx context.Context) (domain.FearGreed, error) {
	ctx, span := tracer.Start(ctx, "alternative.fear-greed")
	defer span.End()

	var raw fearGreedResponse
	if err := c.fetch.getJSON(ctx, c.gate, c.url, nil, &raw); err != nil {
		span.RecordError(err)
		return domain.FearGreed{}, fmt.Errorf("fear greed index: %w", err)
	}
	if len(raw.Data) == 0 {
		return domain.FearGreed{}, fmt.Errorf("fear greed index: %w: empty data", ErrUpstream)
	}

	latest := raw.Data[0]
	value, err := strconv.Atoi(strings.TrimSpace(latest.Value))
	if err != nil {
		return domain.FearGreed{}, fmt.Errorf("fear greed index: %w: value %q", ErrUpstream, latest.Value)
	}
	out := domain.FearGreed{Value: value, Classification: latest.Classification}
	if secs, err := strconv.ParseInt(latest.Timestamp, 10, 64); err == nil {
		out.Timestamp = time.Unix(secs, 0).UTC()
	}
	return out, nil
}
