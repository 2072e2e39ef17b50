// Package broker defines the Broker interface and provides the in-memory
// mock broker used for backtests and paper trading. Order execution is
// simulated against quoted prices with A-share cost and lot rules; no
// external calls are made.
package broker

import (
	"time"

	"atrader/internal/domain"
)

// Settings configures a simulated trading session.
type Settings struct {
	InitialCash     float64
	CommissionRate  float64
	MinCommission   float64
	StampDutyRate   float64 // sell-only
	TransferFeeRate float64
	SlippageRate    float64
}

// DefaultSettings returns the standard A-share cost profile: one million
// initial cash, 0.03% commission with a 5 CNY minimum, 0.1% stamp duty on
// sells, 0.001% transfer fee, and 0.1% slippage.
func DefaultSettings() Settings {
	return Settings{
		InitialCash:     1_000_000,
		CommissionRate:  0.0003,
		MinCommission:   5,
		StampDutyRate:   0.001,
		TransferFeeRate: 0.00001,
		SlippageRate:    0.001,
	}
}

// OrderRequest describes a single trade instruction.
type OrderRequest struct {
	Symbol    string
	Side      domain.OrderSide
	Type      domain.OrderType
	Qty       float64
	Price     float64 // required for limit orders
	StopPrice float64 // required for stop orders
}

// OrderResult is the structured response to an order operation. Validation
// failures are reported through Success=false and Message; they are never
// returned as errors, so callers can branch on the outcome.
type OrderResult struct {
	Success bool
	Order   *domain.Order
	Message string
}

// Fill records one completed execution, including its cost breakdown and,
// for sells, the realized P&L against the position's average cost.
type Fill struct {
	ID          string
	OrderID     string
	Symbol      string
	Side        domain.OrderSide
	Price       float64
	Qty         float64
	Commission  float64
	StampDuty   float64
	TransferFee float64
	RealizedPnL float64
	Time        time.Time
}

// Statistics summarises a paper-trading session.
type Statistics struct {
	InitialCash     float64
	Cash            float64
	Frozen          float64
	UnrealizedPnL   float64
	TotalCommission float64
	TotalTrades     int
	ReturnPct       float64
}

// Broker abstracts the operations shared by simulated and (future) live
// brokerages.
type Broker interface {
	// Name returns the broker identifier.
	Name() string

	// PlaceOrder validates and executes (or queues) an order.
	PlaceOrder(req OrderRequest) OrderResult

	// CancelOrder cancels a submitted order by ID.
	CancelOrder(orderID string) OrderResult

	// GetOrder returns one order by ID.
	GetOrder(orderID string) (domain.Order, bool)

	// GetOrders returns all orders of the session, oldest first.
	GetOrders() []domain.Order

	// GetPositions returns all open positions.
	GetPositions() []domain.Position

	// GetAccount returns a snapshot of the account's financial state.
	GetAccount() (domain.AccountInfo, error)
}
