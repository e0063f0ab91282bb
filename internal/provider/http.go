package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"signal-pipeline/internal/metrics"
	"signal-pipeline/internal/ratelimit"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

// ErrUpstream marks a failed call to an external market data source.
var ErrUpstream = errors.New("upstream request failed")

var tracer = otel.Tracer("signal-pipeline/internal/provider")

const (
	defaultHTTPTimeout = 10 * time.Second
	maxBodyBytes       = 4 << 20
)

// Gate blocks until the caller may issue one request.
type Gate func(ctx context.Context) error

func gateFor(limiter *ratelimit.Controller, source string, priority ratelimit.Priority) Gate {
	if limiter == nil {
		return nil
	}
	return limiter.Gate(source, priority)
}

// StatusError is a non-200 reply from an upstream API.
type StatusError struct {
	Source     string
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned http %d", e.Source, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// fetcher issues gated GET requests for one source.
type fetcher struct {
	source  string
	http    *http.Client
	log     zerolog.Logger
	metrics *metrics.Recorder
}

func newFetcher(source string, client *http.Client, log zerolog.Logger, rec *metrics.Recorder) fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return fetcher{
		source:  source,
		http:    client,
		log:     log.With().Str("source", source).Logger(),
		metrics: rec,
	}
}

func (f fetcher) getJSON(ctx context.Context, gate Gate, url string, header http.Header, dst any) error {
	if gate != nil {
		if err := gate(ctx); err != nil {
			return fmt.Errorf("%s rate limit: %w", f.source, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %w", ErrUpstream, f.source, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		f.metrics.RecordUpstream(f.source, "error")
		return fmt.Errorf("%w: %s request: %w", ErrUpstream, f.source, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	f.metrics.RecordUpstream(f.source, strconv.Itoa(resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{
			Source:     f.source,
			Code:       resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrUpstream, f.source, err)
	}
	return nil
}

// parseRetryAfter reads a delay in seconds. A missing or malformed header
// yields -1.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return -1
	}
	return time.Duration(secs) * time.Second
}

func parseFloat(field, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s %q: %w", ErrUpstream, field, v, err)
	}
	return f, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
