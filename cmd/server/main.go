package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	_ "signal-pipeline/docs"
	"signal-pipeline/internal/app"
	"signal-pipeline/internal/bot"
	"signal-pipeline/internal/config"
	"signal-pipeline/internal/handler"
	"signal-pipeline/internal/job"
	"signal-pipeline/internal/logger"
	"signal-pipeline/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "signal-pipeline"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initTracerFunc   = tracing.InitTracer
	newLoggerFunc    = logger.New
	buildAppFunc     = app.Build
	newRouterFunc    = handler.NewRouter
	newHandlerFunc   = handler.New
	newCacheWarmerFn = job.NewCacheWarmer
	startWarmerFunc  = func(w *job.CacheWarmer, ctx context.Context, log zerolog.Logger) {
		go func() {
			if err := w.Start(ctx); err != nil {
				log.Error().Err(err).Msg("cache warmer failed")
			}
		}()
	}
	startStreamFunc      = func(r *job.StreamRunner, ctx context.Context) { go r.Start(ctx) }
	startTelegramBotFunc = bot.StartTelegramBot

	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Signal Pipeline API
// @version         1.0
// @description     Rate-limited, cache-first crypto signal pipeline.

// @host      localhost:8080
// @BasePath  /
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	log := newLoggerFunc(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	pipeline := buildAppFunc(ctx, cfg, tracer, log, true)
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Error().Err(err).Msg("error closing pipeline")
		}
	}()

	startBackground(ctx, cfg, tracer, pipeline, log)

	h := newHandlerFunc(tracer, pipeline.Analysis, pipeline.Market, pipeline.Metrics.Handler(), app.AnalysisTimeout(cfg))
	r := newRouterFunc(serviceName, cfg.CORSOrigins, log)
	h.RegisterRoutes(r)
	registerSwagger(r)

	srv := &http.Server{
		Addr:              httpAddrFromEnv(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Int("coins", len(cfg.TrackedCoins)).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server exiting")
}

func startBackground(ctx context.Context, cfg *config.Config, tracer trace.Tracer, pipeline *app.App, log zerolog.Logger) {
	warmer := newCacheWarmerFn(
		tracer,
		pipeline.Analysis,
		time.Duration(cfg.WarmIntervalSecs)*time.Second,
		cfg.WarmBatch,
		app.AnalysisTimeout(cfg),
		log,
	)
	alerts, err := startTelegramBotFunc(ctx, bot.Config{
		Token:         cfg.TelegramBotToken,
		MinConfidence: cfg.AlertMinConfidence,
		Timeout:       app.AnalysisTimeout(cfg),
	}, pipeline.Analysis, log)
	if err != nil {
		log.Error().Err(err).Msg("telegram bot disabled")
	}
	if alerts != nil {
		warmer.SetNotifier(alerts)
	}
	startWarmerFunc(warmer, ctx, log)

	var stream job.Streamer
	if pipeline.Stream != nil {
		stream = pipeline.Stream
	}
	startStreamFunc(job.NewStreamRunner(stream, log), ctx)
}

func registerSwagger(r *gin.Engine) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func httpAddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
