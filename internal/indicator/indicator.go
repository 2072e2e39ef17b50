// Package indicator provides pure technical-indicator functions computed over
// a full price series. Each function allocates and returns arrays indexed in
// parallel with the input; entries that are undefined for the leading warm-up
// window are NaN. Callers are expected to compute indicators once per series
// and index into the results bar by bar.
package indicator

import "math"

// Kind identifies an indicator family referenced by a strategy definition.
type Kind string

const (
	KindSMA  Kind = "sma"
	KindEMA  Kind = "ema"
	KindRSI  Kind = "rsi"
	KindMACD Kind = "macd"
	KindBOLL Kind = "boll"
)

// SMA returns the simple moving average of the trailing period values.
// Entries before index period-1 are NaN.
func SMA(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1).
// The series is seeded with the first price, so every entry is defined.
func EMA(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = (prices[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// RSI returns the relative strength index using the average gain and loss over
// the trailing period bars. Entries before index period are seeded at the
// neutral value 50; when the average loss over the window is zero the RSI is
// 100.
func RSI(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	if period <= 0 || len(prices) == 0 {
		return out
	}
	for i := 0; i < len(prices) && i < period; i++ {
		out[i] = 50
	}
	for i := period; i < len(prices); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			d := prices[j] - prices[j-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDResult holds the three MACD series: the fast/slow EMA difference (DIF),
// its signal-period EMA (DEA), and the doubled difference histogram.
type MACDResult struct {
	DIF       []float64
	DEA       []float64
	Histogram []float64
}

// MACD computes DIF = EMA(fast) - EMA(slow), DEA = EMA(DIF, signal), and
// Histogram = (DIF - DEA) * 2.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	n := len(prices)
	res := MACDResult{
		DIF:       nanSlice(n),
		DEA:       nanSlice(n),
		Histogram: nanSlice(n),
	}
	if n == 0 {
		return res
	}
	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)
	for i := 0; i < n; i++ {
		res.DIF[i] = emaFast[i] - emaSlow[i]
	}
	res.DEA = EMA(res.DIF, signal)
	for i := 0; i < n; i++ {
		res.Histogram[i] = (res.DIF[i] - res.DEA[i]) * 2
	}
	return res
}

// BollingerResult holds the middle band (SMA) and the upper/lower bands at
// k standard deviations.
type BollingerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger computes Bollinger bands over the trailing period window. Entries
// before index period-1 are NaN.
func Bollinger(prices []float64, period int, k float64) BollingerResult {
	n := len(prices)
	res := BollingerResult{
		Middle: SMA(prices, period),
		Upper:  nanSlice(n),
		Lower:  nanSlice(n),
	}
	if period <= 0 || n < period {
		return res
	}
	for i := period - 1; i < n; i++ {
		mean := res.Middle[i]
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := prices[j] - mean
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period))
		res.Upper[i] = mean + k*sd
		res.Lower[i] = mean - k*sd
	}
	return res
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
