package backtest

import (
	"math"
	"testing"

	"atrader/internal/domain"
)

func sellTrade(pnl, returnPct float64, holdingDays int) DetailedTrade {
	return DetailedTrade{
		Side:        domain.OrderSideSell,
		RealizedPnL: pnl,
		ReturnPct:   returnPct,
		HoldingDays: holdingDays,
	}
}

func TestComputeSummaryReturns(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 102000},
		{Equity: 98000},
		{Equity: 110000},
	}
	s := computeSummary(100000, curve, nil, 3)

	if !almost(s.TotalReturnPct, 10) {
		t.Errorf("total return = %v, want 10", s.TotalReturnPct)
	}
	want := (math.Pow(1.1, 252.0/3) - 1) * 100
	if !almost(s.AnnualizedReturnPct, want) {
		t.Errorf("annualized = %v, want %v", s.AnnualizedReturnPct, want)
	}
	if s.FinalEquity != 110000 {
		t.Errorf("final equity = %v", s.FinalEquity)
	}
}

func TestComputeSummaryDrawdown(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 110000, DrawdownPct: 0},
		{Equity: 99000, DrawdownPct: -10},
		{Equity: 104500, DrawdownPct: -5},
	}
	s := computeSummary(100000, curve, nil, 3)
	if s.MaxDrawdownPct != -10 {
		t.Errorf("max drawdown = %v, want -10", s.MaxDrawdownPct)
	}
	if s.MaxDrawdownPct > 0 {
		t.Error("max drawdown must never be positive")
	}
	if s.Calmar == 0 {
		t.Error("calmar should be derived when drawdown is non-zero")
	}
}

func TestComputeSummaryFlatCurve(t *testing.T) {
	curve := make([]EquityPoint, 50)
	for i := range curve {
		curve[i].Equity = 100000
	}
	s := computeSummary(100000, curve, nil, 50)
	if s.Sharpe != 0 || s.Sortino != 0 || s.Calmar != 0 {
		t.Errorf("flat curve ratios = %v/%v/%v, want all 0", s.Sharpe, s.Sortino, s.Calmar)
	}
	if s.ProfitFactor != 0 || s.TotalTrades != 0 {
		t.Errorf("no trades: profit factor = %v, trades = %d", s.ProfitFactor, s.TotalTrades)
	}
}

func TestTradeStatsWinRateAndStreaks(t *testing.T) {
	trades := []DetailedTrade{
		{Side: domain.OrderSideBuy, Commission: 3, Slippage: 2},
		sellTrade(100, 5, 3),
		sellTrade(200, 8, 2),
		sellTrade(-50, -2, 1),
		sellTrade(-30, -1, 4),
		sellTrade(-20, -3, 2),
		sellTrade(80, 4, 3),
	}
	var s Summary
	tradeStats(&s, trades)

	if s.TotalTrades != 6 {
		t.Errorf("closed trades = %d, want 6 (buys excluded)", s.TotalTrades)
	}
	if s.WinningTrades != 3 || s.LosingTrades != 3 {
		t.Errorf("wins/losses = %d/%d, want 3/3", s.WinningTrades, s.LosingTrades)
	}
	if !almost(s.WinRatePct, 50) {
		t.Errorf("win rate = %v, want 50", s.WinRatePct)
	}
	if s.MaxConsecutiveWins != 2 || s.MaxConsecutiveLosses != 3 {
		t.Errorf("streaks = %d/%d, want 2/3", s.MaxConsecutiveWins, s.MaxConsecutiveLosses)
	}
	// avg win% = (5+8+4)/3, avg loss% = (2+1+3)/3.
	if !almost(s.ProfitFactor, (17.0/3)/(6.0/3)) {
		t.Errorf("profit factor = %v", s.ProfitFactor)
	}
	if !almost(s.AvgHoldingDays, 15.0/6) {
		t.Errorf("avg holding days = %v, want 2.5", s.AvgHoldingDays)
	}
	if s.TotalCommission != 3 || s.TotalSlippage != 2 {
		t.Errorf("costs = %v/%v", s.TotalCommission, s.TotalSlippage)
	}
}

func TestTradeStatsProfitFactorEdges(t *testing.T) {
	var wins Summary
	tradeStats(&wins, []DetailedTrade{sellTrade(10, 1, 1), sellTrade(20, 2, 1)})
	if !math.IsInf(wins.ProfitFactor, 1) {
		t.Errorf("all-win profit factor = %v, want +Inf", wins.ProfitFactor)
	}
	if wins.WinRatePct != 100 {
		t.Errorf("all-win rate = %v, want 100", wins.WinRatePct)
	}

	var losses Summary
	tradeStats(&losses, []DetailedTrade{sellTrade(-10, -1, 1)})
	if losses.ProfitFactor != 0 {
		t.Errorf("all-loss profit factor = %v, want 0", losses.ProfitFactor)
	}
	if losses.WinRatePct != 0 {
		t.Errorf("all-loss win rate = %v, want 0", losses.WinRatePct)
	}
}

func TestRiskGuardBudget(t *testing.T) {
	cases := []struct {
		pct, cash, equity, want float64
	}{
		{0.5, 100000, 100000, 50000},
		{0, 100000, 100000, 100000},  // zero means no cap
		{2, 100000, 100000, 100000},  // out of range means no cap
		{0.8, 30000, 100000, 30000},  // capped by spendable cash
		{0.25, 100000, 40000, 10000}, // capped by equity fraction
	}
	for _, c := range cases {
		g := RiskGuard{MaxPositionPct: c.pct}
		if got := g.Budget(c.cash, c.equity); !almost(got, c.want) {
			t.Errorf("Budget(pct=%v, cash=%v, equity=%v) = %v, want %v", c.pct, c.cash, c.equity, got, c.want)
		}
	}
}
