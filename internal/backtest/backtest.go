// Package backtest drives the per-bar simulation loop: it parses the strategy
// description, precomputes indicators, routes signals through lot sizing and
// the cost model, tracks equity and drawdown, and folds the trade ledger into
// a summary report.
package backtest

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"atrader/internal/domain"
	"atrader/internal/lot"
	"atrader/internal/market"
	"atrader/internal/strategy"
)

// Config describes one backtest run.
type Config struct {
	Symbol         string
	InitialCapital float64
	CommissionRate float64
	SlippageRate   float64
	StartDate      string
	EndDate        string
	Timeframe      string
	MaxPositionPct float64 // fraction of equity a buy may deploy; 0 = no cap
	IsST           bool
}

// DetailedTrade is an immutable record of one fill. Exit fills additionally
// carry the realized P&L, the percentage return, and the holding period.
type DetailedTrade struct {
	Index       int
	Date        time.Time
	Side        domain.OrderSide
	Price       float64 // fill price after slippage
	Close       float64 // raw bar close
	Qty         float64
	Lots        int
	LotSize     float64
	Commission  float64
	Slippage    float64 // slippage cost in currency
	Reason      string
	CashAfter   float64
	PosAfter    float64
	RealizedPnL float64 // exits only
	ReturnPct   float64 // exits only
	HoldingDays int     // exits only
}

// DailyLog is one per-bar record of what the run saw and did.
type DailyLog struct {
	Index        int
	Bar          domain.Bar
	Indicators   map[string]float64
	Action       string // buy, sell, hold, cannot_buy, cannot_sell
	ActionDetail string
	Cash         float64
	Position     float64
	Equity       float64
	DrawdownPct  float64
}

// EquityPoint is one point of the equity curve.
type EquityPoint struct {
	Date        time.Time
	Equity      float64
	DrawdownPct float64
	Position    float64
}

// Result is the terminal artifact of one run.
type Result struct {
	Summary     Summary
	EquityCurve []EquityPoint
	Trades      []DetailedTrade
	DailyLogs   []DailyLog
	Config      Config
	Strategy    *strategy.Definition
	LotSize     lot.Config
	DataQuality market.ValidationReport
}

// Engine runs backtests. A single Run owns its state exclusively; one Engine
// may serve many sequential runs, and concurrent runs need one Engine each
// only if they share nothing else.
type Engine struct {
	log      *slog.Logger
	detector *market.Detector
}

// NewEngine creates a backtest engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		log:      logger,
		detector: market.NewDetector(),
	}
}

// runState is the mutable state of one run.
type runState struct {
	cash       float64
	position   float64
	entryPrice float64
	entryIndex int
	entryDate  time.Time
	peak       float64
	trades     []DetailedTrade
}

// Run executes the full backtest over a time-ordered bar series. A run that
// completes with zero trades is a normal outcome. Errors are returned only
// for unusable inputs, before the per-bar loop starts.
func (e *Engine) Run(cfg Config, bars []domain.Bar, description string) (*Result, error) {
	if len(bars) == 0 {
		return nil, errors.New("backtest: empty bar series")
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest: initial capital must be positive, got %v", cfg.InitialCapital)
	}

	def := strategy.ParseDescriptor(description)
	lotCfg := lot.Resolve(cfg.Symbol)

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	set := strategy.ComputeIndicators(def, closes)
	statuses := e.detector.DetectSeries(bars, cfg.Symbol, cfg.IsST)
	quality := e.detector.ValidateKlineData(bars, cfg.Symbol, cfg.IsST)

	e.log.Info("backtest started",
		"symbol", cfg.Symbol,
		"strategy", def.Name,
		"bars", len(bars),
		"capital", cfg.InitialCapital)

	guard := RiskGuard{MaxPositionPct: cfg.MaxPositionPct}
	st := runState{cash: cfg.InitialCapital, peak: cfg.InitialCapital}
	curve := make([]EquityPoint, 0, len(bars))
	logs := make([]DailyLog, 0, len(bars))

	for i := 1; i < len(bars); i++ {
		bar := bars[i]
		sig := strategy.Evaluate(def, bars, i, st.position, set)

		action := string(domain.ActionHold)
		detail := ""

		switch {
		case sig.Action == domain.ActionBuy && st.position == 0 && st.cash > 0:
			if blocked, note := entryBlocked(statuses[i], domain.ActionBuy); blocked {
				action = string(market.SignalCannotBuy)
				detail = note
				break
			}
			budget := guard.Budget(st.cash, st.cash+st.position*bar.Close)
			calc := lot.MaxAffordableLots(budget, bar.Close*(1+cfg.SlippageRate), cfg.Symbol, cfg.CommissionRate)
			if calc.ActualQty <= 0 {
				detail = "buy signal without affordable lot"
				break
			}
			e.executeBuy(&st, cfg, bar, i, calc, sig.Reason)
			action = string(domain.ActionBuy)
			detail = fmt.Sprintf("buy %v @ %.2f: %s", calc.ActualQty, st.entryPrice, sig.Reason)

		case sig.Action == domain.ActionSell && st.position > 0:
			if blocked, note := entryBlocked(statuses[i], domain.ActionSell); blocked {
				action = string(market.SignalCannotSell)
				detail = note
				break
			}
			trade := e.executeSell(&st, cfg, bar, i, cfg.SlippageRate, sig.Reason)
			action = string(domain.ActionSell)
			detail = fmt.Sprintf("sell %v @ %.2f: %s (pnl %.2f)", trade.Qty, trade.Price, sig.Reason, trade.RealizedPnL)
		}

		equity := st.cash + st.position*bar.Close
		if equity > st.peak {
			st.peak = equity
		}
		drawdown := 0.0
		if st.peak > 0 {
			drawdown = (equity - st.peak) / st.peak * 100
		}
		curve = append(curve, EquityPoint{
			Date:        bar.Timestamp,
			Equity:      equity,
			DrawdownPct: drawdown,
			Position:    st.position,
		})
		logs = append(logs, DailyLog{
			Index:        i,
			Bar:          bar,
			Indicators:   sig.Indicators,
			Action:       action,
			ActionDetail: detail,
			Cash:         st.cash,
			Position:     st.position,
			Equity:       equity,
			DrawdownPct:  drawdown,
		})
	}

	// Any position left open is liquidated at the last close with zero
	// slippage. The liquidation gets its own curve point and log entry so
	// the last bar's signal record is preserved.
	if st.position > 0 {
		last := len(bars) - 1
		trade := e.executeSell(&st, cfg, bars[last], last, 0, "end-of-backtest liquidation")
		equity := st.cash
		if equity > st.peak {
			st.peak = equity
		}
		drawdown := 0.0
		if st.peak > 0 {
			drawdown = (equity - st.peak) / st.peak * 100
		}
		curve = append(curve, EquityPoint{
			Date:        bars[last].Timestamp,
			Equity:      equity,
			DrawdownPct: drawdown,
			Position:    0,
		})
		logs = append(logs, DailyLog{
			Index:        last,
			Bar:          bars[last],
			Action:       string(domain.ActionSell),
			ActionDetail: fmt.Sprintf("sell %v @ %.2f: %s (pnl %.2f)", trade.Qty, trade.Price, trade.Reason, trade.RealizedPnL),
			Cash:         st.cash,
			Position:     0,
			Equity:       equity,
			DrawdownPct:  drawdown,
		})
	}

	summary := computeSummary(cfg.InitialCapital, curve, st.trades, len(bars))
	e.log.Info("backtest finished",
		"symbol", cfg.Symbol,
		"trades", summary.TotalTrades,
		"return_pct", summary.TotalReturnPct,
		"max_drawdown_pct", summary.MaxDrawdownPct)

	return &Result{
		Summary:     summary,
		EquityCurve: curve,
		Trades:      st.trades,
		DailyLogs:   logs,
		Config:      cfg,
		Strategy:    def,
		LotSize:     lotCfg,
		DataQuality: quality,
	}, nil
}

// entryBlocked reports whether market conditions at the bar prevent the
// signalled action, with a human-readable note.
func entryBlocked(status market.Status, action domain.SignalAction) (bool, string) {
	info := market.DetermineSignalStatus(status, market.Status{}, action, true)
	switch info.Status {
	case market.SignalCannotBuy, market.SignalCannotSell:
		return true, info.Note
	}
	return false, ""
}

func (e *Engine) executeBuy(st *runState, cfg Config, bar domain.Bar, i int, calc lot.Calculation, reason string) {
	price := bar.Close * (1 + cfg.SlippageRate)
	qty := calc.ActualQty
	amount := price * qty
	commission := amount * cfg.CommissionRate

	st.cash -= amount + commission
	st.position = qty
	st.entryPrice = price
	st.entryIndex = i
	st.entryDate = bar.Timestamp

	st.trades = append(st.trades, DetailedTrade{
		Index:      i,
		Date:       bar.Timestamp,
		Side:       domain.OrderSideBuy,
		Price:      price,
		Close:      bar.Close,
		Qty:        qty,
		Lots:       calc.ActualLots,
		LotSize:    calc.LotSize,
		Commission: commission,
		Slippage:   (price - bar.Close) * qty,
		Reason:     reason,
		CashAfter:  st.cash,
		PosAfter:   st.position,
	})
	e.log.Debug("buy executed", "index", i, "qty", qty, "price", price, "reason", reason)
}

func (e *Engine) executeSell(st *runState, cfg Config, bar domain.Bar, i int, slippage float64, reason string) DetailedTrade {
	price := bar.Close * (1 - slippage)
	qty := st.position
	amount := price * qty
	commission := amount * cfg.CommissionRate

	realized := amount - commission - st.entryPrice*qty
	returnPct := 0.0
	if st.entryPrice > 0 {
		returnPct = (price/st.entryPrice - 1) * 100
	}

	st.cash += amount - commission
	st.position = 0

	trade := DetailedTrade{
		Index:       i,
		Date:        bar.Timestamp,
		Side:        domain.OrderSideSell,
		Price:       price,
		Close:       bar.Close,
		Qty:         qty,
		Lots:        int(qty / lot.Resolve(cfg.Symbol).LotSize),
		LotSize:     lot.Resolve(cfg.Symbol).LotSize,
		Commission:  commission,
		Slippage:    (bar.Close - price) * qty,
		Reason:      reason,
		CashAfter:   st.cash,
		PosAfter:    0,
		RealizedPnL: realized,
		ReturnPct:   returnPct,
		HoldingDays: holdingDays(st.entryDate, bar.Timestamp, st.entryIndex, i),
	}
	st.trades = append(st.trades, trade)
	e.log.Debug("sell executed", "index", i, "qty", qty, "price", price, "pnl", realized, "reason", reason)
	return trade
}

// holdingDays prefers calendar days between the entry and exit timestamps and
// falls back to the bar distance when timestamps are absent.
func holdingDays(entry, exit time.Time, entryIndex, exitIndex int) int {
	if !entry.IsZero() && !exit.IsZero() {
		return int(exit.Sub(entry).Hours() / 24)
	}
	return exitIndex - entryIndex
}
