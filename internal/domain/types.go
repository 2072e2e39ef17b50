// Package domain defines the core types shared across the backtesting and
// paper-trading packages: bars, signals, orders, positions, and account
// snapshots.
package domain

import "time"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is a single OHLCV candle. Timestamps are the bar's open time.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Consistent reports whether the bar satisfies the basic OHLC invariant
// low <= open,close <= high. Inconsistent bars are flagged as abnormal by the
// market status detector but do not abort a run.
func (b Bar) Consistent() bool {
	if b.High < b.Low {
		return false
	}
	if b.Open < b.Low || b.Open > b.High {
		return false
	}
	if b.Close < b.Low || b.Close > b.High {
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// SignalAction is the decision emitted by the signal generator for one bar.
type SignalAction string

const (
	ActionBuy  SignalAction = "buy"
	ActionSell SignalAction = "sell"
	ActionHold SignalAction = "hold"
)

// Signal is the per-bar output of the signal generator. It is produced fresh
// for every bar and never mutated afterwards.
type Signal struct {
	Action     SignalAction
	Reason     string
	Indicators map[string]float64 // snapshot of indicator values at the bar
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType distinguishes market, limit, and stop orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// OrderStatus tracks an order through its lifecycle:
// pending -> submitted -> filled | cancelled | rejected.
// Market orders fill synchronously, so they go straight from pending to
// filled (or rejected).
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a single trade instruction and its execution state.
type Order struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	Status         OrderStatus
	Price          float64 // limit price; zero for market orders
	StopPrice      float64 // stop trigger price; zero unless Type is stop
	Qty            float64
	FilledQty      float64
	FilledAvgPrice float64
	Reason         string // rejection reason, empty otherwise
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ---------------------------------------------------------------------------
// Positions and account
// ---------------------------------------------------------------------------

// Position is a holding in a single symbol. It is owned exclusively by the
// execution simulator and mutated only by fills; it is removed once Qty
// reaches zero.
type Position struct {
	Symbol       string
	Qty          float64
	AvailableQty float64
	AvgCost      float64
	CurrentPrice float64
}

// MarketValue returns the position value at the current price.
func (p Position) MarketValue() float64 {
	return p.Qty * p.CurrentPrice
}

// UnrealizedPnL returns the open profit or loss against the average cost.
func (p Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.AvgCost) * p.Qty
}

// AccountInfo is a snapshot of the simulated account's financial state.
type AccountInfo struct {
	Cash        float64 // settled, spendable cash
	Frozen      float64 // cash reserved by open buy orders
	MarketValue float64 // sum of position market values
	Equity      float64 // Cash + Frozen + MarketValue
}
