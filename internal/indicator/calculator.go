package indicator

import (
	"math"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// Calculator derives the indicator set from a bar series.
// Technical indicator math lives here and nowhere else.
type Calculator struct {
	logger *logger.Logger
}

// NewCalculator creates a new indicator calculator
func NewCalculator(log *logger.Logger) *Calculator {
	return &Calculator{logger: log}
}

// Compute returns the indicator set for a series. Indicators whose
// history requirement is not met are simply absent from the result.
func (c *Calculator) Compute(bars contracts.Series) contracts.IndicatorSet {
	ind := make(contracts.IndicatorSet)
	if len(bars) == 0 {
		return ind
	}

	closes := bars.Closes()

	if v, ok := RSI(closes, 14); ok {
		ind[contracts.IndRSI] = v
	}
	for _, ma := range []struct {
		key    string
		period int
	}{
		{contracts.IndMA5, 5},
		{contracts.IndMA20, 20},
		{contracts.IndMA50, 50},
		{contracts.IndMA150, 150},
		{contracts.IndMA200, 200},
	} {
		if v, ok := SMA(closes, ma.period); ok {
			ind[ma.key] = v
		}
	}
	if v, ok := ATR(bars, 14); ok {
		ind[contracts.IndATR] = v
	}
	if macd, signal, ok := MACD(closes); ok {
		ind[contracts.IndMACD] = macd
		ind[contracts.IndMACDSignal] = signal
	}
	if upper, middle, lower, ok := Bollinger(closes, 20, 2.0); ok {
		ind[contracts.IndBBUpper] = upper
		ind[contracts.IndBBMiddle] = middle
		ind[contracts.IndBBLower] = lower
	}
	if high := bars.HighestHigh(20); high > 0 {
		ind[contracts.IndHigh20] = high
	}
	if avg := bars.AverageVolume(20); avg > 0 {
		last, _ := bars.Last()
		ind[contracts.IndVolumeRatio] = float64(last.Volume) / avg
	}

	return ind
}

// RSI calculates the Relative Strength Index over the last period
// changes. Returns false when the series is too short.
func RSI(closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 {
		return 0, false
	}

	var gains, losses float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	if losses == 0 {
		return 100, true
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs)), true
}

// RSISeries returns the RSI at each of the last n positions.
func RSISeries(closes []float64, period, n int) []float64 {
	if len(closes) < period+n {
		return nil
	}
	out := make([]float64, 0, n)
	for i := len(closes) - n; i <= len(closes)-1; i++ {
		v, ok := RSI(closes[:i+1], period)
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}

// SMA calculates the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}
	var sum float64
	for _, v := range closes[len(closes)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA calculates the exponential moving average, seeded with the SMA
// of the first period values.
func EMA(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, false
	}

	var sum float64
	for _, v := range closes[:period] {
		sum += v
	}
	ema := sum / float64(period)

	multiplier := 2.0 / (float64(period) + 1.0)
	for _, v := range closes[period:] {
		ema = v*multiplier + ema*(1-multiplier)
	}

	return ema, true
}

// MACD calculates the MACD line (EMA12 - EMA26) and its 9-period
// signal line.
func MACD(closes []float64) (macd, signal float64, ok bool) {
	const (
		fast   = 12
		slow   = 26
		smooth = 9
	)
	if len(closes) < slow+smooth {
		return 0, 0, false
	}

	// Build the MACD series over the tail so the signal line has
	// enough points to smooth.
	macdSeries := make([]float64, 0, smooth)
	for i := len(closes) - smooth; i <= len(closes)-1; i++ {
		f, okF := EMA(closes[:i+1], fast)
		s, okS := EMA(closes[:i+1], slow)
		if !okF || !okS {
			return 0, 0, false
		}
		macdSeries = append(macdSeries, f-s)
	}

	signal, ok = EMA(macdSeries, smooth)
	if !ok {
		return 0, 0, false
	}
	return macdSeries[len(macdSeries)-1], signal, true
}

// ATR calculates the average true range over the last period bars.
func ATR(bars contracts.Series, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}

	var sum float64
	for i := len(bars) - period; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1])
		sum += tr
	}
	return sum / float64(period), true
}

func trueRange(cur, prev contracts.Bar) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// Bollinger calculates Bollinger Bands: SMA(period) +/- k standard
// deviations.
func Bollinger(closes []float64, period int, k float64) (upper, middle, lower float64, ok bool) {
	mean, std, okStats := MeanStd(closes, period)
	if !okStats {
		return 0, 0, 0, false
	}
	return mean + k*std, mean, mean - k*std, true
}

// MeanStd calculates the rolling mean and population standard
// deviation over the last window values.
func MeanStd(values []float64, window int) (mean, std float64, ok bool) {
	if window <= 1 || len(values) < window {
		return 0, 0, false
	}

	tail := values[len(values)-window:]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	mean = sum / float64(window)

	var variance float64
	for _, v := range tail {
		d := v - mean
		variance += d * d
	}
	variance /= float64(window)

	return mean, math.Sqrt(variance), true
}

// ZScore returns how many rolling standard deviations the latest
// value sits from the rolling mean. Returns false when the window is
// not covered or the deviation is zero.
func ZScore(values []float64, window int) (float64, bool) {
	mean, std, ok := MeanStd(values, window)
	if !ok || std == 0 {
		return 0, false
	}
	latest := values[len(values)-1]
	return (latest - mean) / std, true
}

// LinearTrend fits values against their index by least squares and
// returns the slope and R-squared of the fit.
func LinearTrend(values []float64) (slope, r2 float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range values {
		fit := intercept + slope*float64(i)
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	if ssTot == 0 {
		return slope, 0
	}
	return slope, 1 - ssRes/ssTot
}

// AnnualizedVolatility estimates annualized volatility from the
// standard deviation of bar-to-bar returns, assuming daily bars.
func AnnualizedVolatility(closes []float64, window int) (float64, bool) {
	if window <= 1 || len(closes) < window+1 {
		return 0, false
	}

	returns := make([]float64, 0, window)
	for i := len(closes) - window; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return 0, false
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}

	_, std, ok := MeanStd(returns, len(returns))
	if !ok {
		return 0, false
	}
	return std * math.Sqrt(252), true
}
