package strategy

import (
	"fmt"
	"math"

	"atrader/internal/domain"
	"atrader/internal/indicator"
)

// Default parameter values used when a definition does not specify them.
const (
	defaultFastPeriod  = 5
	defaultSlowPeriod  = 20
	defaultRSIPeriod   = 14
	defaultOversold    = 30
	defaultOverbought  = 70
	defaultMACDFast    = 12
	defaultMACDSlow    = 26
	defaultMACDSignal  = 9
	defaultBollPeriod  = 20
	defaultBollStdDevs = 2
)

// IndicatorSet holds every indicator array a definition needs, computed once
// over the full close-price series and indexed in parallel with the bars.
type IndicatorSet struct {
	FastMA []float64
	SlowMA []float64
	RSI    []float64
	MACD   indicator.MACDResult
	Boll   indicator.BollingerResult
}

// ComputeIndicators precomputes all indicator arrays the definition declares.
// Arrays for undeclared indicators stay nil.
func ComputeIndicators(def *Definition, closes []float64) *IndicatorSet {
	set := &IndicatorSet{}
	if def.Uses(indicator.KindSMA) || def.Uses(indicator.KindEMA) {
		fast := int(def.Param(defaultFastPeriod, "fast", "fast_period", "short", "short_period"))
		slow := int(def.Param(defaultSlowPeriod, "slow", "slow_period", "long", "long_period"))
		if def.Uses(indicator.KindEMA) {
			set.FastMA = indicator.EMA(closes, fast)
			set.SlowMA = indicator.EMA(closes, slow)
		} else {
			set.FastMA = indicator.SMA(closes, fast)
			set.SlowMA = indicator.SMA(closes, slow)
		}
	}
	if def.Uses(indicator.KindRSI) {
		period := int(def.Param(defaultRSIPeriod, "rsi_period", "period"))
		set.RSI = indicator.RSI(closes, period)
	}
	if def.Uses(indicator.KindMACD) {
		fast := int(def.Param(defaultMACDFast, "macd_fast"))
		slow := int(def.Param(defaultMACDSlow, "macd_slow"))
		sig := int(def.Param(defaultMACDSignal, "macd_signal"))
		set.MACD = indicator.MACD(closes, fast, slow, sig)
	}
	if def.Uses(indicator.KindBOLL) {
		period := int(def.Param(defaultBollPeriod, "boll_period"))
		k := def.Param(defaultBollStdDevs, "boll_std", "boll_k")
		set.Boll = indicator.Bollinger(closes, period, k)
	}
	return set
}

// Evaluate is the position-aware decision function for one bar. A buy can
// only fire while flat and a sell only while holding. Rule families are
// evaluated independently in a fixed order (MA crossover, RSI, MACD,
// Bollinger); the last matching rule wins for the bar. Each rule requires
// both the current and prior bar's indicator values to be defined, so NaN
// warm-up values never produce a decision.
func Evaluate(def *Definition, bars []domain.Bar, i int, positionQty float64, set *IndicatorSet) domain.Signal {
	sig := domain.Signal{
		Action:     domain.ActionHold,
		Indicators: map[string]float64{},
	}
	if i < 1 || i >= len(bars) {
		return sig
	}
	flat := positionQty == 0
	close := bars[i].Close

	if set.FastMA != nil {
		f0, f1 := set.FastMA[i-1], set.FastMA[i]
		s0, s1 := set.SlowMA[i-1], set.SlowMA[i]
		if defined(f0, f1, s0, s1) {
			sig.Indicators["fast_ma"] = f1
			sig.Indicators["slow_ma"] = s1
			if flat && f0 <= s0 && f1 > s1 {
				sig.Action = domain.ActionBuy
				sig.Reason = fmt.Sprintf("golden cross: fast MA %.2f crossed above slow MA %.2f", f1, s1)
			} else if !flat && f0 >= s0 && f1 < s1 {
				sig.Action = domain.ActionSell
				sig.Reason = fmt.Sprintf("death cross: fast MA %.2f crossed below slow MA %.2f", f1, s1)
			}
		}
	}

	if set.RSI != nil {
		oversold := def.Param(defaultOversold, "oversold", "rsi_buy", "buy_threshold")
		overbought := def.Param(defaultOverbought, "overbought", "rsi_sell", "sell_threshold")
		r0, r1 := set.RSI[i-1], set.RSI[i]
		if defined(r0, r1) {
			sig.Indicators["rsi"] = r1
			if flat && r0 < oversold && r1 >= oversold {
				sig.Action = domain.ActionBuy
				sig.Reason = fmt.Sprintf("RSI %.1f crossed up through oversold %.0f", r1, oversold)
			} else if !flat && r1 > overbought {
				sig.Action = domain.ActionSell
				sig.Reason = fmt.Sprintf("RSI %.1f above overbought %.0f", r1, overbought)
			}
		}
	}

	if set.MACD.Histogram != nil {
		h0, h1 := set.MACD.Histogram[i-1], set.MACD.Histogram[i]
		if defined(h0, h1) {
			sig.Indicators["macd_dif"] = set.MACD.DIF[i]
			sig.Indicators["macd_dea"] = set.MACD.DEA[i]
			sig.Indicators["macd_hist"] = h1
			if flat && h0 <= 0 && h1 > 0 {
				sig.Action = domain.ActionBuy
				sig.Reason = fmt.Sprintf("MACD histogram turned positive (%.4f)", h1)
			} else if !flat && h0 >= 0 && h1 < 0 {
				sig.Action = domain.ActionSell
				sig.Reason = fmt.Sprintf("MACD histogram turned negative (%.4f)", h1)
			}
		}
	}

	if set.Boll.Middle != nil {
		u0, u1 := set.Boll.Upper[i-1], set.Boll.Upper[i]
		l0, l1 := set.Boll.Lower[i-1], set.Boll.Lower[i]
		if defined(u0, u1, l0, l1) {
			sig.Indicators["boll_upper"] = u1
			sig.Indicators["boll_mid"] = set.Boll.Middle[i]
			sig.Indicators["boll_lower"] = l1
			if flat && close <= l1 {
				sig.Action = domain.ActionBuy
				sig.Reason = fmt.Sprintf("close %.2f touched lower band %.2f", close, l1)
			} else if !flat && close >= u1 {
				sig.Action = domain.ActionSell
				sig.Reason = fmt.Sprintf("close %.2f touched upper band %.2f", close, u1)
			}
		}
	}

	return sig
}

func defined(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}
