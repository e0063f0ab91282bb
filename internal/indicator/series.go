package indicator

import (
	"math"

	"signal-pipeline/internal/domain"

	"gonum.org/v1/gonum/stat"
)

const (
	RSIPeriod        = 14
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	BollingerPeriod  = 20
	BollingerStdDevs = 2.0
	VolumeWindow     = 20
)

// RSI is the relative strength index of the last close, using the simple mean
// of the last period gains and losses. It needs period+1 closes. A window with
// no movement reads 50.
func RSI(closes []float64, period int) domain.Opt {
	if period <= 0 || len(closes) <= period {
		return domain.None()
	}

	var gainSum, lossSum float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}

	rsi := rsiFromAvg(gainSum/float64(period), lossSum/float64(period))
	if math.IsNaN(rsi) {
		return domain.None()
	}
	return domain.Some(clamp(rsi, 0, 100))
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD returns the macd line, signal line and histogram of the last close.
// It needs slow+signal closes.
func MACD(closes []float64, fast, slow, signal int) (line, signalLine, histogram domain.Opt) {
	if len(closes) < slow+signal {
		return domain.None(), domain.None(), domain.None()
	}
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	sig := emaSeries(macdLine, signal)

	last := len(closes) - 1
	m, s := macdLine[last], sig[last]
	return domain.Some(m), domain.Some(s), domain.Some(m - s)
}

// Bollinger returns the bands of the last period closes using the sample standard deviation.
func Bollinger(closes []float64, period int, stdDevs float64) (upper, middle, lower domain.Opt) {
	if period < 2 || len(closes) < period {
		return domain.None(), domain.None(), domain.None()
	}
	mean, std := meanSampleStd(closes[len(closes)-period:])
	return domain.Some(mean + stdDevs*std), domain.Some(mean), domain.Some(mean - stdDevs*std)
}

// EMA is the exponential moving average of the last value, seeded with the first.
func EMA(values []float64, period int) domain.Opt {
	if period <= 0 || len(values) < period {
		return domain.None()
	}
	series := emaSeries(values, period)
	return domain.Some(series[len(series)-1])
}

// VolumeRatio is the last volume over the mean of the window volumes before it.
func VolumeRatio(volumes []float64, window int) domain.Opt {
	if window <= 0 || len(volumes) < window+1 {
		return domain.None()
	}
	mean := stat.Mean(volumes[len(volumes)-1-window:len(volumes)-1], nil)
	if mean == 0 {
		return domain.None()
	}
	return domain.Some(volumes[len(volumes)-1] / mean)
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func meanSampleStd(values []float64) (mean, std float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
