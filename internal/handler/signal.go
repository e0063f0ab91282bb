package handler

import (
	"errors"
	"net/http"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetCoinAnalysis godoc
// @Summary      Analyze a tracked coin
// @Description  Returns the fused signal with technical, macro and sentiment layers. Served from cache when fresh.
// @Tags         signals
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {object}  domain.Analysis
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/coin/{symbol} [get]
func (h *Handler) GetCoinAnalysis(c *gin.Context) {
	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	if !h.analysis.IsTracked(symbol) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coin " + symbol + " not tracked"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coin-analysis")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	result, err := h.analysis.Analyze(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, service.ErrUnsupportedSymbol) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Coin " + symbol + " not tracked"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCoinChart godoc
// @Summary      Render a signal chart
// @Description  PNG with candles, Bollinger bands, EMA20, signal levels, RSI and MACD panels
// @Tags         signals
// @Produce      png
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {file}    binary
// @Failure      404  {object}  map[string]string
// @Failure      501  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/coin/{symbol}/chart.png [get]
func (h *Handler) GetCoinChart(c *gin.Context) {
	symbol := domain.NormalizeSymbol(c.Param("symbol"))
	if !h.analysis.IsTracked(symbol) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coin " + symbol + " not tracked"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coin-chart")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	img, err := h.analysis.Chart(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, service.ErrUnsupportedSymbol):
			c.JSON(http.StatusNotFound, gin.H{"error": "Coin " + symbol + " not tracked"})
		case errors.Is(err, service.ErrChartUnavailable):
			c.JSON(http.StatusNotImplemented, gin.H{"error": "charts not enabled"})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart unavailable"})
		}
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, img.MimeType, img.Bytes)
}

// GetSignals godoc
// @Summary      List cached signals
// @Description  Summaries of every tracked coin with a cached analysis. Never calls upstream.
// @Tags         signals
// @Produce      json
// @Success      200  {object}  map[string][]domain.SignalSummary
// @Router       /api/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"signals": h.analysis.CachedSignals(ctx)})
}

// GetMarketOverview godoc
// @Summary      Market overview
// @Description  Global market data, top movers and the fear & greed index
// @Tags         market
// @Produce      json
// @Success      200  {object}  domain.MarketOverview
// @Failure      503  {object}  map[string]string
// @Router       /api/market-overview [get]
func (h *Handler) GetMarketOverview(c *gin.Context) {
	if h.market == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-overview")
	defer span.End()

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	overview, err := h.market.Overview(ctx)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market overview unavailable"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// GetMorningBrief godoc
// @Summary      Morning brief
// @Description  Market status, BTC/ETH/SOL calls, risk level and the fear & greed index
// @Tags         market
// @Produce      json
// @Success      200  {object}  domain.MorningBrief
// @Failure      503  {object}  map[string]string
// @Router       /api/morning-brief [get]
func (h *Handler) GetMorningBrief(c *gin.Context) {
	if h.market == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-morning-brief")
	defer span.End()

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	brief, err := h.market.MorningBrief(ctx)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "morning brief unavailable"})
		return
	}
	c.JSON(http.StatusOK, brief)
}
