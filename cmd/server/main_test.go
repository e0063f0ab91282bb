package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"signal-pipeline/internal/app"
	"signal-pipeline/internal/bot"
	"signal-pipeline/internal/config"
	"signal-pipeline/internal/job"
	"signal-pipeline/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestHTTPAddrFromEnv(t *testing.T) {
	t.Setenv("PORT", "")
	if got := httpAddrFromEnv(); got != ":8080" {
		t.Fatalf("expected default :8080, got %s", got)
	}

	t.Setenv("PORT", "9090")
	if got := httpAddrFromEnv(); got != ":9090" {
		t.Fatalf("expected :9090, got %s", got)
	}

	t.Setenv("PORT", ":7070")
	if got := httpAddrFromEnv(); got != ":7070" {
		t.Fatalf("expected :7070, got %s", got)
	}
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitTracer := initTracerFunc
	origNewLogger := newLoggerFunc
	origStartWarmer := startWarmerFunc
	origStartStream := startStreamFunc
	origStartBot := startTelegramBotFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			TrackedCoins:        []string{"BTC"},
			AnalysisTimeoutSecs: 1,
			WarmIntervalSecs:    60,
			WarmBatch:           1,
			StreamEnabled:       true,
			CORSOrigins:         []string{"*"},
			SentimentProvider:   config.SentimentNone,
			Quotas:              ratelimit.DefaultQuotas(),
		}
	}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newLoggerFunc = func(string, string) zerolog.Logger { return zerolog.Nop() }
	startWarmerFunc = func(*job.CacheWarmer, context.Context, zerolog.Logger) {}
	startStreamFunc = func(*job.StreamRunner, context.Context) {}
	startTelegramBotFunc = func(context.Context, bot.Config, bot.AnalysisQuerier, zerolog.Logger) (*bot.AlertDispatcher, error) {
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initTracerFunc = origInitTracer
		newLoggerFunc = origNewLogger
		startWarmerFunc = origStartWarmer
		startStreamFunc = origStartStream
		startTelegramBotFunc = origStartBot
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}

func TestStartBackgroundWiresStream(t *testing.T) {
	cfg := &config.Config{
		TrackedCoins:        []string{"BTC"},
		AnalysisTimeoutSecs: 1,
		StreamEnabled:       true,
		SentimentProvider:   config.SentimentNone,
	}
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	pipeline := app.Build(context.Background(), cfg, tracer, zerolog.Nop(), true)

	origStartWarmer, origStartStream := startWarmerFunc, startStreamFunc
	defer func() { startWarmerFunc, startStreamFunc = origStartWarmer, origStartStream }()

	var warmer *job.CacheWarmer
	var runner *job.StreamRunner
	startWarmerFunc = func(w *job.CacheWarmer, _ context.Context, _ zerolog.Logger) { warmer = w }
	startStreamFunc = func(r *job.StreamRunner, _ context.Context) { runner = r }

	startBackground(context.Background(), cfg, tracer, pipeline, zerolog.Nop())
	if warmer == nil || runner == nil {
		t.Fatalf("expected warmer and stream runner to start: %v %v", warmer, runner)
	}
}

func TestStartBackgroundStartsTelegramBot(t *testing.T) {
	cfg := &config.Config{
		TrackedCoins:        []string{"BTC"},
		AnalysisTimeoutSecs: 1,
		SentimentProvider:   config.SentimentNone,
		TelegramBotToken:    "123:abc",
		AlertMinConfidence:  75,
	}
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	pipeline := app.Build(context.Background(), cfg, tracer, zerolog.Nop(), false)

	origStartWarmer, origStartStream, origStartBot := startWarmerFunc, startStreamFunc, startTelegramBotFunc
	defer func() {
		startWarmerFunc, startStreamFunc, startTelegramBotFunc = origStartWarmer, origStartStream, origStartBot
	}()
	startWarmerFunc = func(*job.CacheWarmer, context.Context, zerolog.Logger) {}
	startStreamFunc = func(*job.StreamRunner, context.Context) {}

	var got bot.Config
	startTelegramBotFunc = func(_ context.Context, c bot.Config, q bot.AnalysisQuerier, _ zerolog.Logger) (*bot.AlertDispatcher, error) {
		got = c
		if q == nil {
			t.Fatal("expected analysis service")
		}
		return nil, errors.New("unauthorized")
	}

	startBackground(context.Background(), cfg, tracer, pipeline, zerolog.Nop())
	if got.Token != "123:abc" || got.MinConfidence != 75 || got.Timeout != time.Second {
		t.Fatalf("unexpected bot config: %+v", got)
	}
}

func TestRegisterSwaggerServesDoc(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerSwagger(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/api/coin/{symbol}/chart.png") {
		t.Fatalf("unexpected doc body: %s", w.Body.String())
	}
}
