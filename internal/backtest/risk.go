package backtest

// RiskGuard caps how much of the account a single position may consume.
type RiskGuard struct {
	// MaxPositionPct is the fraction of equity a buy may deploy, in (0, 1].
	// Zero or out-of-range values mean no cap.
	MaxPositionPct float64
}

// Budget returns the cash available for one buy given the current cash and
// equity. The budget never exceeds the spendable cash.
func (g RiskGuard) Budget(cash, equity float64) float64 {
	pct := g.MaxPositionPct
	if pct <= 0 || pct > 1 {
		pct = 1
	}
	budget := equity * pct
	if budget > cash {
		budget = cash
	}
	return budget
}
