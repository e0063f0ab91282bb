// Package chart draws analysis charts as PNG images.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"signal-pipeline/internal/domain"
	"signal-pipeline/internal/indicator"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartCandles    = 120
)

var ErrNotEnoughCandles = errors.New("need at least 2 candles to render chart")

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colBull       = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colBear       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colWick       = color.RGBA{R: 58, G: 64, B: 90, A: 255}
	colMarker     = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colLineA      = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colLineB      = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colBand       = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colVolume     = color.RGBA{R: 120, G: 139, B: 164, A: 255}
	colEntry      = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colTarget     = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colStop       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
)

// Image is an encoded chart.
type Image struct {
	MimeType string
	Width    int
	Height   int
	Bytes    []byte
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// series holds per-candle indicator values aligned with the visible candles.
// NaN marks positions without enough history.
type series struct {
	bbUpper, bbMiddle, bbLower []float64
	ema20                      []float64
	rsi                        []float64
	macdHist                   []float64
}

// RenderAnalysisChart draws the last candles with Bollinger bands and EMA20,
// the signal's entry, target and stop levels, and RSI and MACD histogram panels.
// Indicators use the full history so the visible window matches the engine.
func (r *Renderer) RenderAnalysisChart(candles []domain.Candle, signal domain.FusedSignal) (*Image, error) {
	all := sortCandles(candles)
	if len(all) < 2 {
		return nil, ErrNotEnoughCandles
	}
	start := max(len(all)-maxChartCandles, 0)
	visible := all[start:]
	ind := computeSeries(all, start)

	img := image.NewRGBA(image.Rect(0, 0, defaultChartWidth, defaultChartHeight))
	fillRect(img, img.Bounds(), colBackground)

	mainRect := image.Rect(60, 20, defaultChartWidth-20, (defaultChartHeight*64)/100)
	rsiRect := image.Rect(60, mainRect.Max.Y+16, defaultChartWidth-20, (defaultChartHeight*81)/100)
	macdRect := image.Rect(60, rsiRect.Max.Y+12, defaultChartWidth-20, defaultChartHeight-20)
	drawGrid(img, mainRect, 8, 6)
	drawGrid(img, rsiRect, 8, 2)
	drawGrid(img, macdRect, 8, 2)

	levels := signalLevels(signal)
	minP, maxP := priceBounds(visible, ind, levels)

	drawCandles(img, mainRect, visible, minP, maxP)
	drawSeries(img, mainRect, ind.bbUpper, minP, maxP, colBand)
	drawSeries(img, mainRect, ind.bbMiddle, minP, maxP, colLineB)
	drawSeries(img, mainRect, ind.bbLower, minP, maxP, colBand)
	drawSeries(img, mainRect, ind.ema20, minP, maxP, colLineA)
	for _, lvl := range levels {
		drawHorizontalValueLine(img, mainRect, lvl.value, minP, maxP, lvl.col)
	}

	markerX := mapIndexToX(len(visible)-1, len(visible), mainRect)
	drawLine(img, markerX, mainRect.Min.Y, markerX, mainRect.Max.Y, colMarker)

	drawHorizontalValueLine(img, rsiRect, 30, 0, 100, colBand)
	drawHorizontalValueLine(img, rsiRect, 70, 0, 100, colBand)
	drawSeries(img, rsiRect, ind.rsi, 0, 100, colLineA)

	minH, maxH := finiteBounds(ind.macdHist)
	minH, maxH = math.Min(minH, 0), math.Max(maxH, 0)
	drawHorizontalValueLine(img, macdRect, 0, minH, maxH, colBand)
	drawBars(img, macdRect, ind.macdHist, minH, maxH, colVolume)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}

	return &Image{
		MimeType: "image/png",
		Width:    defaultChartWidth,
		Height:   defaultChartHeight,
		Bytes:    buf.Bytes(),
	}, nil
}

type level struct {
	value float64
	col   color.RGBA
}

func signalLevels(s domain.FusedSignal) []level {
	var out []level
	switch s.Entry.Kind {
	case domain.EntryRange:
		out = append(out, level{s.Entry.Low, colEntry}, level{s.Entry.High, colEntry})
	case domain.EntryMarket:
		out = append(out, level{s.Entry.Low, colEntry})
	}
	for _, t := range s.Targets {
		out = append(out, level{t, colTarget})
	}
	if v, ok := s.StopLoss.Get(); ok {
		out = append(out, level{v, colStop})
	}
	return out
}

func sortCandles(in []domain.Candle) []domain.Candle {
	out := append([]domain.Candle(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}

func computeSeries(all []domain.Candle, start int) series {
	closes := make([]float64, len(all))
	for i := range all {
		closes[i] = all[i].Close
	}

	n := len(all) - start
	s := series{
		bbUpper:  make([]float64, n),
		bbMiddle: make([]float64, n),
		bbLower:  make([]float64, n),
		ema20:    make([]float64, n),
		rsi:      make([]float64, n),
		macdHist: make([]float64, n),
	}
	for i := range n {
		prefix := closes[:start+i+1]
		u, m, l := indicator.Bollinger(prefix, indicator.BollingerPeriod, indicator.BollingerStdDevs)
		s.bbUpper[i], s.bbMiddle[i], s.bbLower[i] = orNaN(u), orNaN(m), orNaN(l)
		s.ema20[i] = orNaN(indicator.EMA(prefix, 20))
		s.rsi[i] = orNaN(indicator.RSI(prefix, indicator.RSIPeriod))
		_, _, hist := indicator.MACD(prefix, indicator.MACDFastPeriod, indicator.MACDSlowPeriod, indicator.MACDSignalPeriod)
		s.macdHist[i] = orNaN(hist)
	}
	return s
}

func orNaN(o domain.Opt) float64 {
	if v, ok := o.Get(); ok {
		return v
	}
	return math.NaN()
}

// priceBounds covers the candles and bands, plus any signal level within 50%
// of that range so a far target does not flatten the candles.
func priceBounds(candles []domain.Candle, ind series, levels []level) (float64, float64) {
	minP, maxP := candles[0].Low, candles[0].High
	for _, c := range candles {
		minP = math.Min(minP, c.Low)
		maxP = math.Max(maxP, c.High)
	}
	for _, band := range [][]float64{ind.bbUpper, ind.bbLower} {
		lo, hi := finiteBounds(band)
		if !math.IsNaN(band[len(band)-1]) {
			minP, maxP = math.Min(minP, lo), math.Max(maxP, hi)
		}
	}
	span := maxP - minP
	for _, l := range levels {
		if l.value >= minP-span/2 && l.value <= maxP+span/2 {
			minP, maxP = math.Min(minP, l.value), math.Max(maxP, l.value)
		}
	}
	if maxP <= minP {
		maxP = minP + 1
	}
	return minP, maxP
}

func drawCandles(img *image.RGBA, rect image.Rectangle, candles []domain.Candle, minPrice, maxPrice float64) {
	candleWidth := max(3, (rect.Dx()-10)/len(candles)-1)
	for i, c := range candles {
		x := mapIndexToX(i, len(candles), rect)
		highY := mapValueToY(c.High, minPrice, maxPrice, rect)
		lowY := mapValueToY(c.Low, minPrice, maxPrice, rect)
		drawLine(img, x, highY, x, lowY, colWick)

		openY := mapValueToY(c.Open, minPrice, maxPrice, rect)
		closeY := mapValueToY(c.Close, minPrice, maxPrice, rect)
		top := min(openY, closeY)
		bottom := max(openY, closeY)
		if bottom-top < 2 {
			bottom = top + 2
		}

		bodyRect := image.Rect(x-candleWidth/2, top, x+candleWidth/2+1, bottom+1)
		bodyColor := colBull
		if c.Close < c.Open {
			bodyColor = colBear
		}
		fillRect(img, bodyRect, bodyColor)
	}
}

func drawSeries(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	lastX, lastY := -1, -1
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			lastX, lastY = -1, -1
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		if lastX >= 0 {
			drawLine(img, lastX, lastY, x, y, col)
		}
		lastX, lastY = x, y
	}
}

func drawBars(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	barW := max(1, (rect.Dx()-10)/max(len(series), 1)-1)
	zeroY := mapValueToY(0, minV, maxV, rect)
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		top := min(y, zeroY)
		bottom := max(y, zeroY)
		fillRect(img, image.Rect(x-barW/2, top, x+barW/2+1, bottom+1), col)
	}
}

func drawGrid(img *image.RGBA, rect image.Rectangle, verticalLines, horizontalLines int) {
	for i := 0; i <= verticalLines; i++ {
		x := rect.Min.X + (rect.Dx()*i)/max(1, verticalLines)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colGrid)
	}
	for i := 0; i <= horizontalLines; i++ {
		y := rect.Min.Y + (rect.Dy()*i)/max(1, horizontalLines)
		drawLine(img, rect.Min.X, y, rect.Max.X, y, colGrid)
	}
}

func drawHorizontalValueLine(img *image.RGBA, rect image.Rectangle, value, minV, maxV float64, col color.RGBA) {
	if value < minV || value > maxV {
		return
	}
	y := mapValueToY(value, minV, maxV, rect)
	drawLine(img, rect.Min.X, y, rect.Max.X, y, col)
}

func mapIndexToX(idx, total int, rect image.Rectangle) int {
	if total <= 1 {
		return rect.Min.X
	}
	return rect.Min.X + (idx*(rect.Dx()-1))/(total-1)
}

func mapValueToY(value, minV, maxV float64, rect image.Rectangle) int {
	if maxV <= minV {
		return rect.Max.Y
	}
	ratio := (value - minV) / (maxV - minV)
	ratio = math.Max(0, math.Min(1, ratio))
	return rect.Max.Y - int(ratio*float64(rect.Dy()-1))
}

func finiteBounds(values []float64) (float64, float64) {
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	if math.IsInf(minV, 1) || math.IsInf(maxV, -1) {
		return 0, 1
	}
	if minV == maxV {
		return minV, maxV + 1
	}
	return minV, maxV
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// drawLine is Bresenham's line algorithm, clipped to the image.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
