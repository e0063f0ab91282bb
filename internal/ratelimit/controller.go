package ratelimit

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"signal-pipeline/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	SourceCoinGecko   = "coingecko"
	SourceBinance     = "binance"
	SourceGlassnode   = "glassnode"
	SourceCryptoQuant = "cryptoquant"
	SourceAlternative = "alternative"
	SourceSentiment   = "sentiment"

	slowWaitThreshold = 100 * time.Millisecond
	tokenEpsilon      = 1e-9
)

// Priority is carried for observability only. Waiters are not reordered by it.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

var priorityNames = [...]string{"critical", "high", "medium", "low"}

// ParsePriority maps unknown names to medium.
func ParsePriority(s string) Priority {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range priorityNames {
		if name == s {
			return Priority(i)
		}
	}
	return PriorityMedium
}

func (p Priority) String() string {
	if p < 0 || int(p) >= len(priorityNames) {
		return priorityNames[PriorityMedium]
	}
	return priorityNames[p]
}

// Quota is the bucket shape for one upstream source.
type Quota struct {
	Source       string
	Capacity     float64
	RefillPerSec float64
}

// DefaultQuotas sit below each provider's published limit.
func DefaultQuotas() []Quota {
	return []Quota{
		{Source: SourceCoinGecko, Capacity: 45, RefillPerSec: 0.75},
		{Source: SourceBinance, Capacity: 1100, RefillPerSec: 18.33},
		{Source: SourceGlassnode, Capacity: 100, RefillPerSec: 0.00115},
		{Source: SourceCryptoQuant, Capacity: 300, RefillPerSec: 0.00347},
		{Source: SourceAlternative, Capacity: 30, RefillPerSec: 0.5},
		{Source: SourceSentiment, Capacity: 20, RefillPerSec: 0.2},
	}
}

type Stats struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	TotalWaitTime      float64 `json:"total_wait_time"`
}

type SourceStatus struct {
	AvailableTokens float64 `json:"available_tokens"`
	Capacity        float64 `json:"capacity"`
	UsagePercent    float64 `json:"usage_percent"`
	RefillRate      float64 `json:"refill_rate"`
	Stats           Stats   `json:"stats"`
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// Controller holds one token bucket per source. The bucket map is fixed at construction.
type Controller struct {
	buckets map[string]*bucket
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	sleep   sleepFunc
}

func New(quotas []Quota, log zerolog.Logger, rec *metrics.Recorder) *Controller {
	return newController(quotas, log, rec, time.Now, sleepContext)
}

func newController(quotas []Quota, log zerolog.Logger, rec *metrics.Recorder, now func() time.Time, sleep sleepFunc) *Controller {
	c := &Controller{
		buckets: make(map[string]*bucket, len(quotas)),
		log:     log.With().Str("component", "ratelimit").Logger(),
		metrics: rec,
		now:     now,
		sleep:   sleep,
	}
	start := now()
	for _, q := range quotas {
		source := strings.ToLower(strings.TrimSpace(q.Source))
		if source == "" || q.Capacity <= 0 || q.RefillPerSec <= 0 {
			c.log.Warn().Str("source", q.Source).Msg("skipping invalid quota")
			continue
		}
		c.buckets[source] = &bucket{
			capacity: q.Capacity,
			rate:     q.RefillPerSec,
			tokens:   q.Capacity,
			last:     start,
		}
	}
	c.log.Info().Strs("sources", c.Sources()).Msg("rate limiters initialized")
	return c
}

// Acquire blocks until units tokens for source have been debited. It only fails
// when ctx ends first; tokens taken before that point stay debited.
func (c *Controller) Acquire(ctx context.Context, source string, priority Priority, units int) error {
	if units <= 0 {
		units = 1
	}
	source = strings.ToLower(strings.TrimSpace(source))
	b, ok := c.buckets[source]
	if !ok {
		c.log.Warn().Str("source", source).Msg("unknown rate limit source, allowing request")
		return nil
	}

	start := c.now()
	err := b.take(ctx, float64(units), c.now, c.sleep, func(wait time.Duration, available float64) {
		c.log.Debug().
			Str("source", source).
			Str("priority", priority.String()).
			Int("tokens_needed", units).
			Float64("tokens_available", available).
			Dur("wait", wait).
			Msg("rate limit wait")
	})
	waited := c.now().Sub(start)
	b.record(err == nil, waited)
	c.metrics.RecordAcquire(source, priority.String(), waited.Seconds())

	if err != nil {
		c.log.Warn().Err(err).Str("source", source).Str("priority", priority.String()).Msg("rate limit acquire abandoned")
		return err
	}
	if waited > slowWaitThreshold {
		c.log.Info().
			Str("source", source).
			Str("priority", priority.String()).
			Float64("wait_seconds", round2(waited.Seconds())).
			Float64("tokens_remaining", round2(b.available(c.now()))).
			Msg("rate limit acquired")
	}
	return nil
}

// Gate binds a source and priority for clients that issue one call per acquire.
func (c *Controller) Gate(source string, priority Priority) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return c.Acquire(ctx, source, priority, 1)
	}
}

func (c *Controller) Status() map[string]SourceStatus {
	now := c.now()
	out := make(map[string]SourceStatus, len(c.buckets))
	for source, b := range c.buckets {
		out[source] = b.status(now)
	}
	return out
}

// ResetStats clears counters for source, or for every source when source is empty.
func (c *Controller) ResetStats(source string) {
	source = strings.ToLower(strings.TrimSpace(source))
	for name, b := range c.buckets {
		if source == "" || source == name {
			b.resetStats()
		}
	}
}

func (c *Controller) Sources() []string {
	out := make([]string, 0, len(c.buckets))
	for source := range c.buckets {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

type bucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64
	tokens   float64
	last     time.Time
	stats    Stats
}

// take debits what is available and sleeps for the rest. Requests larger than
// capacity are filled in capacity sized installments so tokens never go negative.
func (b *bucket) take(
	ctx context.Context,
	units float64,
	now func() time.Time,
	sleep sleepFunc,
	onWait func(time.Duration, float64),
) error {
	remaining := units
	for {
		b.mu.Lock()
		b.refillLocked(now())
		taken := math.Min(b.tokens, remaining)
		b.tokens -= taken
		remaining -= taken
		if remaining <= tokenEpsilon {
			b.mu.Unlock()
			return nil
		}
		available := b.tokens
		need := math.Min(remaining, b.capacity)
		wait := time.Duration(math.Ceil(need / b.rate * float64(time.Second)))
		b.mu.Unlock()

		onWait(wait, available)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.rate)
		b.last = now
	}
	if b.tokens < 0 {
		b.tokens = 0
	}
}

func (b *bucket) available(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now)
	return b.tokens
}

func (b *bucket) record(ok bool, waited time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.TotalRequests++
	if ok {
		b.stats.SuccessfulRequests++
	} else {
		b.stats.FailedRequests++
	}
	b.stats.TotalWaitTime += waited.Seconds()
}

func (b *bucket) resetStats() {
	b.mu.Lock()
	b.stats = Stats{}
	b.mu.Unlock()
}

func (b *bucket) status(now time.Time) SourceStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now)
	stats := b.stats
	stats.TotalWaitTime = round2(stats.TotalWaitTime)
	return SourceStatus{
		AvailableTokens: round2(b.tokens),
		Capacity:        b.capacity,
		UsagePercent:    round2((b.capacity - b.tokens) / b.capacity * 100),
		RefillRate:      b.rate,
		Stats:           stats,
	}
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
