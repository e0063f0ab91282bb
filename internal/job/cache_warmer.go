package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"signal-pipeline/internal/domain"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultWarmInterval = 60 * time.Second
	defaultWarmBatch    = 2
	defaultWarmTimeout  = 30 * time.Second
)

type SignalRefresher interface {
	Symbols() []string
	Refresh(ctx context.Context, symbol string) (domain.Analysis, error)
}

// SignalNotifier receives every analysis a warm batch produced.
type SignalNotifier interface {
	NotifyAnalyses(ctx context.Context, analyses []domain.Analysis) error
}

// CacheWarmer refreshes a rotating batch of tracked symbols on a fixed schedule
// so that reads mostly hit the signal cache.
type CacheWarmer struct {
	tracer   trace.Tracer
	service  SignalRefresher
	interval time.Duration
	batch    int
	timeout  time.Duration
	log      zerolog.Logger
	notifier SignalNotifier

	mu   sync.Mutex
	next int
}

func NewCacheWarmer(
	tracer trace.Tracer,
	service SignalRefresher,
	interval time.Duration,
	batch int,
	timeout time.Duration,
	log zerolog.Logger,
) *CacheWarmer {
	if interval <= 0 {
		interval = defaultWarmInterval
	}
	if batch <= 0 {
		batch = defaultWarmBatch
	}
	if timeout <= 0 {
		timeout = defaultWarmTimeout
	}
	return &CacheWarmer{
		tracer:   tracer,
		service:  service,
		interval: interval,
		batch:    batch,
		timeout:  timeout,
		log:      log.With().Str("component", "cache-warmer").Logger(),
	}
}

// SetNotifier must be called before Start.
func (w *CacheWarmer) SetNotifier(n SignalNotifier) {
	w.notifier = n
}

// Start runs the schedule until ctx is cancelled. The first batch runs
// immediately.
func (w *CacheWarmer) Start(ctx context.Context) error {
	if w.service == nil {
		return errors.New("cache warmer requires a signal service")
	}

	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()
	if _, err := cron.Every(w.interval).Do(w.runBatch, ctx); err != nil {
		return fmt.Errorf("schedule cache warmer: %w", err)
	}

	w.log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("cache warmer starting")
	cron.StartAsync()
	<-ctx.Done()
	cron.Stop()
	w.log.Info().Msg("cache warmer stopped")
	return nil
}

func (w *CacheWarmer) runBatch(ctx context.Context) {
	ctx, span := w.tracer.Start(ctx, "cache-warmer.run-batch")
	defer span.End()

	batch := w.nextBatch()
	span.SetAttributes(attribute.StringSlice("symbols", batch))
	results := make([]domain.Analysis, 0, len(batch))
	for _, symbol := range batch {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, w.timeout)
		analysis, err := w.service.Refresh(runCtx, symbol)
		cancel()
		if err != nil {
			w.log.Warn().Err(err).
				Str("symbol", symbol).
				Str("operation", "warm").
				Msg("cache warm failed")
			continue
		}
		results = append(results, analysis)
	}

	if w.notifier == nil || len(results) == 0 {
		return
	}
	if err := w.notifier.NotifyAnalyses(ctx, results); err != nil {
		w.log.Warn().Err(err).Str("operation", "notify").Msg("signal notification failed")
	}
}

// nextBatch returns the next symbols in round-robin order.
func (w *CacheWarmer) nextBatch() []string {
	symbols := w.service.Symbols()
	if len(symbols) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	n := min(w.batch, len(symbols))
	out := make([]string, 0, n)
	for range n {
		out = append(out, symbols[w.next%len(symbols)])
		w.next++
	}
	return out
}
