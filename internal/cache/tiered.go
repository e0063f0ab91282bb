package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Class string

const (
	ClassPrice      Class = "price"
	ClassTechnical  Class = "technical"
	ClassSentiment  Class = "ai_analysis"
	ClassSignal     Class = "signal"
	ClassHistorical Class = "historical"
	ClassMarket     Class = "market"
)

const (
	tierRedis  = "redis"
	tierMemory = "memory"

	pingTimeout = 2 * time.Second
	scanCount   = 100
)

var classTTL = map[Class]time.Duration{
	ClassPrice:      30 * time.Second,
	ClassTechnical:  60 * time.Second,
	ClassSentiment:  600 * time.Second,
	ClassSignal:     60 * time.Second,
	ClassHistorical: 3600 * time.Second,
	ClassMarket:     300 * time.Second,
}

// TTL returns the default lifetime for a class.
func TTL(class Class) time.Duration {
	if ttl, ok := classTTL[class]; ok {
		return ttl
	}
	return time.Minute
}

// Key builds the namespaced key for an identifier, e.g. price:BTC.
func Key(class Class, id string) string {
	return string(class) + ":" + domain.NormalizeSymbol(id)
}

type Stats struct {
	Type      string `json:"type"`
	Hits      int64  `json:"hits,omitempty"`
	Misses    int64  `json:"misses,omitempty"`
	Keys      int64  `json:"keys"`
	TotalKeys int64  `json:"total_keys,omitempty"`
}

// Tiered reads and writes redis until the first redis fault, then uses the
// in-process store for the rest of its life. A cancelled or expired caller
// context is not a redis fault. Cache faults never reach callers.
type Tiered struct {
	client   redis.UniversalClient
	memory   *memoryStore
	degraded atomic.Bool
	log      zerolog.Logger
	metrics  *metrics.Recorder
}

// Connect dials redisURL, which may be a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string, log zerolog.Logger, rec *metrics.Recorder) *Tiered {
	if strings.TrimSpace(redisURL) == "" {
		return NewMemory(log, rec)
	}
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Warn().Err(err).Str("component", "cache").Msg("invalid REDIS_URL, using memory cache")
			return NewMemory(log, rec)
		}
		opts = parsed
	}
	return New(ctx, redis.NewClient(opts), log, rec)
}

// New pings client and falls back to memory when it is nil or unreachable.
func New(ctx context.Context, client redis.UniversalClient, log zerolog.Logger, rec *metrics.Recorder) *Tiered {
	c := &Tiered{
		client:  client,
		memory:  newMemoryStore(time.Now),
		log:     log.With().Str("component", "cache").Logger(),
		metrics: rec,
	}
	if client == nil {
		c.degraded.Store(true)
		c.log.Info().Msg("using memory cache")
		return c
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		c.degraded.Store(true)
		c.log.Warn().Err(err).Msg("redis unavailable, using memory cache")
		return c
	}
	c.log.Info().Msg("connected to redis")
	return c
}

func NewMemory(log zerolog.Logger, rec *metrics.Recorder) *Tiered {
	return New(context.Background(), nil, log, rec)
}

// Tier reports the active tier name.
func (c *Tiered) Tier() string {
	if c.degraded.Load() {
		return tierMemory
	}
	return tierRedis
}

// Get decodes the value at Key(class, id) into dst and reports whether it was found.
func (c *Tiered) Get(ctx context.Context, class Class, id string, dst any) bool {
	key := Key(class, id)
	payload, ok := c.read(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Str("operation", "get").Msg("cache decode failed, dropping entry")
		c.Delete(ctx, key)
		return false
	}
	return true
}

// Set stores v under Key(class, id). A zero ttl uses the class default.
func (c *Tiered) Set(ctx context.Context, class Class, id string, v any, ttl time.Duration) {
	key := Key(class, id)
	if ttl <= 0 {
		ttl = TTL(class)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Str("operation", "set").Msg("cache encode failed")
		return
	}
	if !c.degraded.Load() {
		err = c.client.Set(ctx, key, payload, ttl).Err()
		if err == nil {
			return
		}
		if callerGone(ctx, err) {
			c.log.Debug().Err(err).Str("key", key).Str("operation", "set").Msg("cache write abandoned")
			return
		}
		c.degrade("set", key, err)
	}
	c.memory.set(key, payload, ttl)
}

func (c *Tiered) read(ctx context.Context, key string) ([]byte, bool) {
	if !c.degraded.Load() {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			c.metrics.RecordCache(tierRedis, "hit")
			return payload, true
		case errors.Is(err, redis.Nil):
			c.metrics.RecordCache(tierRedis, "miss")
			return nil, false
		case callerGone(ctx, err):
			c.metrics.RecordCache(tierRedis, "miss")
			return nil, false
		default:
			c.metrics.RecordCache(tierRedis, "error")
			c.degrade("get", key, err)
		}
	}
	payload, ok := c.memory.get(key)
	if ok {
		c.metrics.RecordCache(tierMemory, "hit")
	} else {
		c.metrics.RecordCache(tierMemory, "miss")
	}
	return payload, ok
}

func (c *Tiered) Delete(ctx context.Context, key string) {
	if !c.degraded.Load() {
		err := c.client.Del(ctx, key).Err()
		if err == nil || callerGone(ctx, err) {
			return
		}
		c.degrade("delete", key, err)
	}
	c.memory.delete(key)
}

// ClearPattern removes every key matching a glob such as signal:* and returns the count.
func (c *Tiered) ClearPattern(ctx context.Context, pattern string) int {
	if !c.degraded.Load() {
		n, err := c.clearRedis(ctx, pattern)
		if err == nil || callerGone(ctx, err) {
			return n
		}
		c.degrade("clear_pattern", pattern, err)
	}
	return c.memory.deletePattern(pattern)
}

// callerGone reports a failure caused by the caller's own context rather than
// by redis. Such failures never switch tiers.
func callerGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Tiered) clearRedis(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Stats describes the active tier. Failing to read redis stats does not degrade the cache.
func (c *Tiered) Stats(ctx context.Context) Stats {
	if c.degraded.Load() {
		live, total := c.memory.counts()
		return Stats{Type: tierMemory, Keys: int64(live), TotalKeys: int64(total)}
	}
	out := Stats{Type: tierRedis}
	if info, err := c.client.Info(ctx, "stats").Result(); err == nil {
		out.Hits, out.Misses = parseKeyspaceStats(info)
	} else {
		c.log.Debug().Err(err).Msg("redis info unavailable")
	}
	if n, err := c.client.DBSize(ctx).Result(); err == nil {
		out.Keys = n
	}
	return out
}

func parseKeyspaceStats(info string) (hits, misses int64) {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		name, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		switch name {
		case "keyspace_hits":
			hits = n
		case "keyspace_misses":
			misses = n
		}
	}
	return hits, misses
}

func (c *Tiered) degrade(op, key string, err error) {
	if c.degraded.CompareAndSwap(false, true) {
		c.log.Error().Err(err).Str("operation", op).Str("key", key).Msg("redis failed, switching to memory cache")
	}
}

func (c *Tiered) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Tiered) GetPrice(ctx context.Context, symbol string) (domain.Ticker, bool) {
	var t domain.Ticker
	ok := c.Get(ctx, ClassPrice, symbol, &t)
	return t, ok
}

func (c *Tiered) SetPrice(ctx context.Context, symbol string, t domain.Ticker) {
	c.Set(ctx, ClassPrice, symbol, t, 0)
}

func (c *Tiered) GetTechnical(ctx context.Context, symbol string) (domain.IndicatorBundle, bool) {
	var b domain.IndicatorBundle
	ok := c.Get(ctx, ClassTechnical, symbol, &b)
	return b, ok
}

func (c *Tiered) SetTechnical(ctx context.Context, symbol string, b domain.IndicatorBundle) {
	c.Set(ctx, ClassTechnical, symbol, b, 0)
}

func (c *Tiered) GetSentiment(ctx context.Context, symbol string) (domain.SentimentResult, bool) {
	var r domain.SentimentResult
	ok := c.Get(ctx, ClassSentiment, symbol, &r)
	return r, ok
}

func (c *Tiered) SetSentiment(ctx context.Context, symbol string, r domain.SentimentResult) {
	c.Set(ctx, ClassSentiment, symbol, r, 0)
}

func (c *Tiered) GetSignal(ctx context.Context, symbol string) (domain.Analysis, bool) {
	var a domain.Analysis
	ok := c.Get(ctx, ClassSignal, symbol, &a)
	return a, ok
}

func (c *Tiered) SetSignal(ctx context.Context, symbol string, a domain.Analysis) {
	c.Set(ctx, ClassSignal, symbol, a, 0)
}
