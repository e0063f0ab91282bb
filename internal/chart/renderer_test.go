package chart

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"testing"
	"time"

	"signal-pipeline/internal/domain"
)

func TestRenderAnalysisChart(t *testing.T) {
	renderer := NewRenderer()
	signals := map[string]domain.FusedSignal{
		"range entry": {
			Class:    domain.Buy,
			Entry:    domain.RangeEntry(49800, 50100),
			Targets:  []float64{50600, 51200},
			StopLoss: domain.Some(49200),
		},
		"market exit": {Class: domain.Sell, Entry: domain.MarketEntry(50000)},
		"wait":        {Class: domain.Hold, Entry: domain.WaitEntry()},
	}

	for name, sig := range signals {
		t.Run(name, func(t *testing.T) {
			out, err := renderer.RenderAnalysisChart(buildTestCandles(160), sig)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if out.MimeType != "image/png" || len(out.Bytes) == 0 {
				t.Fatalf("unexpected image: %s %d bytes", out.MimeType, len(out.Bytes))
			}
			decoded, err := png.Decode(bytes.NewReader(out.Bytes))
			if err != nil {
				t.Fatalf("invalid png: %v", err)
			}
			if b := decoded.Bounds(); b.Dx() != out.Width || b.Dy() != out.Height {
				t.Fatalf("unexpected bounds %v", b)
			}
		})
	}
}

func TestRenderAnalysisChartNeedsCandles(t *testing.T) {
	_, err := NewRenderer().RenderAnalysisChart(buildTestCandles(1), domain.FusedSignal{})
	if !errors.Is(err, ErrNotEnoughCandles) {
		t.Fatalf("expected ErrNotEnoughCandles, got %v", err)
	}
}

func TestComputeSeriesUsesFullHistory(t *testing.T) {
	candles := buildTestCandles(160)
	s := computeSeries(candles, 40)

	if len(s.rsi) != 120 {
		t.Fatalf("expected 120 visible points, got %d", len(s.rsi))
	}
	// 40 candles of history precede the window, enough for every indicator.
	for name, vals := range map[string][]float64{"rsi": s.rsi, "bb": s.bbUpper, "ema": s.ema20, "macd": s.macdHist} {
		if math.IsNaN(vals[0]) {
			t.Fatalf("expected %s to be available at the window start", name)
		}
	}

	short := computeSeries(candles[:30], 0)
	if !math.IsNaN(short.rsi[10]) || math.IsNaN(short.rsi[20]) {
		t.Fatal("expected rsi to start once the period is filled")
	}
	if !math.IsNaN(short.macdHist[29]) {
		t.Fatal("expected macd unavailable before slow+signal candles")
	}
}

func TestPriceBoundsIgnoresFarLevels(t *testing.T) {
	candles := []domain.Candle{{Low: 90, High: 110}, {Low: 95, High: 105}}
	nan := []float64{math.NaN(), math.NaN()}
	ind := series{bbUpper: nan, bbLower: nan}

	lo, hi := priceBounds(candles, ind, []level{{value: 115}, {value: 1000}})
	if lo != 90 || hi != 115 {
		t.Fatalf("expected 90..115, got %v..%v", lo, hi)
	}
}

func TestSortCandlesDoesNotMutateInput(t *testing.T) {
	now := time.Now()
	in := []domain.Candle{{OpenTime: now.Add(time.Hour)}, {OpenTime: now}}
	out := sortCandles(in)
	if !out[0].OpenTime.Equal(now) || !in[0].OpenTime.Equal(now.Add(time.Hour)) {
		t.Fatal("expected a sorted copy")
	}
}

func buildTestCandles(count int) []domain.Candle {
	base := time.Now().UTC().Add(-time.Duration(count) * time.Hour)
	out := make([]domain.Candle, 0, count)
	price := 50000.0
	for i := range count {
		step := float64((i%9)-4) * 18
		open := price
		close := price + step
		volume := 1000 + float64((i%17)*80)
		if i%25 == 0 {
			volume *= 2.4
		}
		out = append(out, domain.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     open,
			High:     max(open, close) + 22,
			Low:      min(open, close) - 20,
			Close:    close,
			Volume:   volume,
		})
		price = close
	}
	return out
}
