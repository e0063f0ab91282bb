package handler

import (
	"context"
	"net/http"
	"time"

	"signal-pipeline/internal/chart"
	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/ratelimit"
	"signal-pipeline/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const (
	apiName    = "Crypto Signal Pipeline API"
	apiVersion = "1.0.0"
)

type AnalysisService interface {
	Symbols() []string
	IsTracked(symbol string) bool
	Analyze(ctx context.Context, symbol string) (domain.Analysis, error)
	Chart(ctx context.Context, symbol string) (*chart.Image, error)
	CachedSignals(ctx context.Context) []domain.SignalSummary
	RateLimits() map[string]ratelimit.SourceStatus
	Health(ctx context.Context) service.HealthStatus
}

type MarketService interface {
	Overview(ctx context.Context) (domain.MarketOverview, error)
	MorningBrief(ctx context.Context) (domain.MorningBrief, error)
}

type Handler struct {
	tracer   trace.Tracer
	analysis AnalysisService
	market   MarketService
	metrics  http.Handler
	timeout  time.Duration
}

// New wires the HTTP surface. A zero timeout leaves request contexts as is;
// a nil metrics handler skips /metrics.
func New(
	tracer trace.Tracer,
	analysis AnalysisService,
	market MarketService,
	metrics http.Handler,
	timeout time.Duration,
) *Handler {
	return &Handler{
		tracer:   tracer,
		analysis: analysis,
		market:   market,
		metrics:  metrics,
		timeout:  timeout,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/api/coins", h.GetCoins)
	r.GET("/api/coin/:symbol", h.GetCoinAnalysis)
	r.GET("/api/coin/:symbol/chart.png", h.GetCoinChart)
	r.GET("/api/signals", h.GetSignals)
	r.GET("/api/market-overview", h.GetMarketOverview)
	r.GET("/api/morning-brief", h.GetMorningBrief)
	r.GET("/api/rate-limits", h.GetRateLimits)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}
}

// Root godoc
// @Summary      Service info
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":          apiName,
		"version":       apiVersion,
		"status":        "operational",
		"tracked_coins": h.analysis.Symbols(),
	})
}

// Health godoc
// @Summary      Health check
// @Description  Cache backend statistics and price stream state
// @Tags         system
// @Produce      json
// @Success      200  {object}  service.HealthStatus
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.health")
	defer span.End()

	c.JSON(http.StatusOK, h.analysis.Health(ctx))
}

// GetCoins godoc
// @Summary      List tracked coins
// @Tags         signals
// @Produce      json
// @Success      200  {object}  map[string][]string
// @Router       /api/coins [get]
func (h *Handler) GetCoins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"coins": h.analysis.Symbols()})
}

// GetRateLimits godoc
// @Summary      Admission controller status
// @Description  Tokens, usage and request statistics per upstream source
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]ratelimit.SourceStatus
// @Router       /api/rate-limits [get]
func (h *Handler) GetRateLimits(c *gin.Context) {
	c.JSON(http.StatusOK, h.analysis.RateLimits())
}

// withTimeout bounds one pipeline call.
func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}
