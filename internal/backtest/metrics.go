package backtest

import (
	"math"

	"atrader/internal/domain"
)

// tradingDaysPerYear is the annualization basis for A-share daily bars.
const tradingDaysPerYear = 252

// Summary is the aggregate report of one run. Percentages are expressed in
// percent (e.g. 12.5 for +12.5%); MaxDrawdownPct is never positive.
type Summary struct {
	InitialCapital      float64
	FinalEquity         float64
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	MaxDrawdownPct      float64
	Sharpe              float64
	Sortino             float64
	Calmar              float64
	TradingDays         int

	TotalTrades          int // closed (exit) trades
	WinningTrades        int
	LosingTrades         int
	WinRatePct           float64
	ProfitFactor         float64 // +Inf with wins and no losses, 0 with neither
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AvgHoldingDays       float64

	TotalCommission float64
	TotalSlippage   float64
}

// computeSummary folds the equity curve and trade ledger into the summary.
func computeSummary(initial float64, curve []EquityPoint, trades []DetailedTrade, tradingDays int) Summary {
	s := Summary{
		InitialCapital: initial,
		FinalEquity:    initial,
		TradingDays:    tradingDays,
	}
	if len(curve) > 0 {
		s.FinalEquity = curve[len(curve)-1].Equity
	}

	s.TotalReturnPct = (s.FinalEquity/initial - 1) * 100
	if s.FinalEquity > 0 && tradingDays > 0 {
		s.AnnualizedReturnPct = (math.Pow(s.FinalEquity/initial, tradingDaysPerYear/float64(tradingDays)) - 1) * 100
	}
	for _, p := range curve {
		if p.DrawdownPct < s.MaxDrawdownPct {
			s.MaxDrawdownPct = p.DrawdownPct
		}
	}

	s.Sharpe, s.Sortino = riskRatios(dailyReturns(initial, curve))
	if s.MaxDrawdownPct < 0 {
		s.Calmar = s.AnnualizedReturnPct / -s.MaxDrawdownPct
	}

	tradeStats(&s, trades)
	return s
}

// dailyReturns derives per-bar simple returns, anchored at the initial
// capital.
func dailyReturns(initial float64, curve []EquityPoint) []float64 {
	out := make([]float64, 0, len(curve))
	prev := initial
	for _, p := range curve {
		if prev > 0 {
			out = append(out, p.Equity/prev-1)
		}
		prev = p.Equity
	}
	return out
}

// riskRatios computes annualized Sharpe and Sortino ratios from daily simple
// returns. Both are zero when the respective deviation is zero.
func riskRatios(returns []float64) (sharpe, sortino float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance, downVariance float64
	downCount := 0
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			downVariance += r * r
			downCount++
		}
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std > 0 {
		sharpe = mean * tradingDaysPerYear / (std * math.Sqrt(tradingDaysPerYear))
	}
	if downCount > 0 {
		downStd := math.Sqrt(downVariance / float64(len(returns)))
		if downStd > 0 {
			sortino = mean * tradingDaysPerYear / (downStd * math.Sqrt(tradingDaysPerYear))
		}
	}
	return sharpe, sortino
}

// tradeStats fills the trade-derived fields in a single forward pass over the
// ledger.
func tradeStats(s *Summary, trades []DetailedTrade) {
	var winPctSum, lossPctSum, holdingSum float64
	var curWins, curLosses int

	for _, t := range trades {
		s.TotalCommission += t.Commission
		s.TotalSlippage += t.Slippage
		if t.Side != domain.OrderSideSell {
			continue
		}

		s.TotalTrades++
		holdingSum += float64(t.HoldingDays)
		if t.RealizedPnL > 0 {
			s.WinningTrades++
			winPctSum += t.ReturnPct
			curWins++
			curLosses = 0
		} else {
			s.LosingTrades++
			lossPctSum += t.ReturnPct
			curLosses++
			curWins = 0
		}
		if curWins > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = curWins
		}
		if curLosses > s.MaxConsecutiveLosses {
			s.MaxConsecutiveLosses = curLosses
		}
	}

	if s.TotalTrades == 0 {
		return
	}
	s.WinRatePct = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	s.AvgHoldingDays = holdingSum / float64(s.TotalTrades)

	switch {
	case s.WinningTrades > 0 && s.LosingTrades == 0:
		s.ProfitFactor = math.Inf(1)
	case s.WinningTrades == 0:
		s.ProfitFactor = 0
	default:
		avgWin := winPctSum / float64(s.WinningTrades)
		avgLoss := math.Abs(lossPctSum / float64(s.LosingTrades))
		if avgLoss > 0 {
			s.ProfitFactor = avgWin / avgLoss
		}
	}
}
