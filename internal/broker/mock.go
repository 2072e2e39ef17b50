package broker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"atrader/internal/domain"
	"atrader/internal/lot"
)

// Compile-time interface check.
var _ Broker = (*MockBroker)(nil)

// ErrNotConnected is returned by account queries before Connect or after
// Disconnect.
var ErrNotConnected = errors.New("broker not connected")

// MockBroker simulates order execution entirely in memory. All mutable state
// (quotes, orders, positions, cash) is owned by the instance; callers create
// one broker per session and must serialize concurrent access externally —
// the internal mutex only keeps individual operations atomic.
type MockBroker struct {
	mu  sync.Mutex
	log *slog.Logger

	settings  Settings
	connected bool

	cash   float64
	frozen float64

	quotes        map[string]float64
	subscriptions map[string]bool
	positions     map[string]*domain.Position
	orders        map[string]*domain.Order
	orderSeq      []string // insertion order of orders
	fills         []Fill

	totalCommission float64
	tradeCount      int

	events *listenerSet
}

// NewMockBroker creates a disconnected mock broker. Call Connect before
// placing orders.
func NewMockBroker(logger *slog.Logger) *MockBroker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &MockBroker{
		log:           logger,
		quotes:        make(map[string]float64),
		subscriptions: make(map[string]bool),
		positions:     make(map[string]*domain.Position),
		orders:        make(map[string]*domain.Order),
	}
	b.events = newListenerSet(logger)
	return b
}

// Name returns "mock".
func (b *MockBroker) Name() string { return "mock" }

// On registers a listener for one event type. Listeners must be registered
// before the events they care about are emitted; registration is not
// synchronized with in-flight operations.
func (b *MockBroker) On(t EventType, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events.add(t, fn)
}

// Connect establishes the session and seeds the account with the configured
// cash. A zero-valued Settings selects the defaults; otherwise the caller's
// rates are kept verbatim and the initial cash alone must be positive.
func (b *MockBroker) Connect(settings Settings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return errors.New("broker already connected")
	}
	if settings == (Settings{}) {
		settings = DefaultSettings()
	} else if settings.InitialCash <= 0 {
		return fmt.Errorf("initial cash must be positive, got %v", settings.InitialCash)
	}
	b.settings = settings
	b.cash = settings.InitialCash
	b.frozen = 0
	b.connected = true

	b.log.Info("mock broker connected", "initial_cash", settings.InitialCash)
	b.events.emit(EventConnected, settings.InitialCash)
	return nil
}

// Disconnect ends the session. State is retained so results can still be
// inspected, but all trading operations fail until the next Connect.
func (b *MockBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return
	}
	b.connected = false
	b.log.Info("mock broker disconnected")
	b.events.emit(EventDisconnected, nil)
}

// SetQuote updates the mock price for a symbol. Quotes drive market-order
// fills and position valuation.
func (b *MockBroker) SetQuote(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = price
	if p, ok := b.positions[symbol]; ok {
		p.CurrentPrice = price
		b.events.emit(EventPositionUpdate, *p)
	}
}

// GetQuote returns the current mock price for a symbol.
func (b *MockBroker) GetQuote(symbol string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return 0, ErrNotConnected
	}
	price, ok := b.quotes[symbol]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	return price, nil
}

// Subscribe records interest in market data for the given symbols.
func (b *MockBroker) Subscribe(symbols ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return ErrNotConnected
	}
	for _, s := range symbols {
		b.subscriptions[s] = true
	}
	return nil
}

// PlaceOrder validates the request and, for market orders, fills it
// synchronously at the quoted price adjusted for slippage. Limit and stop
// orders only validate and enter the submitted state; buy-side funds are
// frozen until fill or cancellation.
func (b *MockBroker) PlaceOrder(req OrderRequest) OrderResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return OrderResult{Success: false, Message: ErrNotConnected.Error()}
	}

	order := &domain.Order{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Status:    domain.OrderStatusPending,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Qty:       req.Qty,
		CreatedAt: time.Now(),
	}

	if msg := b.validate(req); msg != "" {
		return b.reject(order, msg)
	}

	switch req.Type {
	case domain.OrderTypeMarket:
		return b.fillMarket(order)
	default:
		return b.submit(order)
	}
}

// validate applies the structural checks shared by all order types.
func (b *MockBroker) validate(req OrderRequest) string {
	if ok, msg := lot.ValidateQuantity(req.Qty, req.Symbol, req.Side); !ok {
		return msg
	}
	if req.Type == domain.OrderTypeLimit && req.Price <= 0 {
		return "limit order requires a limit price"
	}
	if req.Type == domain.OrderTypeStop && req.StopPrice <= 0 {
		return "stop order requires a stop price"
	}
	if req.Side == domain.OrderSideSell {
		pos := b.positions[req.Symbol]
		if pos == nil || pos.AvailableQty < req.Qty {
			have := 0.0
			if pos != nil {
				have = pos.AvailableQty
			}
			return fmt.Sprintf("insufficient available quantity: need %v, have %v", req.Qty, have)
		}
	}
	return ""
}

// fillMarket executes a market order synchronously against the current quote.
func (b *MockBroker) fillMarket(order *domain.Order) OrderResult {
	quote, ok := b.quotes[order.Symbol]
	if !ok || quote <= 0 {
		return b.reject(order, fmt.Sprintf("no quote for %s", order.Symbol))
	}

	var price float64
	if order.Side == domain.OrderSideBuy {
		price = quote * (1 + b.settings.SlippageRate)
	} else {
		price = quote * (1 - b.settings.SlippageRate)
	}

	amount := price * order.Qty
	commission := b.commission(amount)
	transferFee := roundCents(amount * b.settings.TransferFeeRate)

	if order.Side == domain.OrderSideBuy {
		total := amount + commission + transferFee
		if total > b.cash {
			return b.reject(order, fmt.Sprintf(
				"insufficient buying power: need %.2f, have %.2f", total, b.cash))
		}
		b.cash -= total
		b.applyBuy(order.Symbol, order.Qty, price)
		b.recordFill(order, price, Fill{
			Commission:  commission,
			TransferFee: transferFee,
		})
	} else {
		stampDuty := roundCents(amount * b.settings.StampDutyRate)
		fees := commission + stampDuty + transferFee
		pos := b.positions[order.Symbol]
		realized := (price-pos.AvgCost)*order.Qty - fees
		b.cash += amount - fees
		b.applySell(order.Symbol, order.Qty, quote)
		b.recordFill(order, price, Fill{
			Commission:  commission,
			StampDuty:   stampDuty,
			TransferFee: transferFee,
			RealizedPnL: realized,
		})
	}

	order.Status = domain.OrderStatusFilled
	order.FilledQty = order.Qty
	order.FilledAvgPrice = price
	order.UpdatedAt = time.Now()
	b.orders[order.ID] = order
	b.orderSeq = append(b.orderSeq, order.ID)

	b.events.emit(EventOrderUpdate, *order)
	b.emitBalance()
	return OrderResult{Success: true, Order: order}
}

// submit queues a limit or stop order. Buy-side funds (notional plus
// commission at the reference price) are frozen until the order leaves the
// submitted state.
func (b *MockBroker) submit(order *domain.Order) OrderResult {
	if order.Side == domain.OrderSideBuy {
		ref := order.Price
		if order.Type == domain.OrderTypeStop {
			ref = order.StopPrice
		}
		freeze := ref*order.Qty + b.commission(ref*order.Qty)
		if freeze > b.cash {
			return b.reject(order, fmt.Sprintf(
				"insufficient buying power: need %.2f, have %.2f", freeze, b.cash))
		}
		b.cash -= freeze
		b.frozen += freeze
	}
	order.Status = domain.OrderStatusSubmitted
	order.UpdatedAt = time.Now()
	b.orders[order.ID] = order
	b.orderSeq = append(b.orderSeq, order.ID)

	b.events.emit(EventOrderUpdate, *order)
	b.emitBalance()
	return OrderResult{Success: true, Order: order}
}

// CancelOrder cancels a submitted order, releasing any frozen buy-side funds.
func (b *MockBroker) CancelOrder(orderID string) OrderResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return OrderResult{Success: false, Message: ErrNotConnected.Error()}
	}
	order, ok := b.orders[orderID]
	if !ok {
		return OrderResult{Success: false, Message: fmt.Sprintf("order %s not found", orderID)}
	}
	if order.Status != domain.OrderStatusSubmitted {
		return OrderResult{
			Success: false,
			Order:   order,
			Message: fmt.Sprintf("order %s is %s, not cancellable", orderID, order.Status),
		}
	}

	if order.Side == domain.OrderSideBuy {
		ref := order.Price
		if order.Type == domain.OrderTypeStop {
			ref = order.StopPrice
		}
		freeze := ref*order.Qty + b.commission(ref*order.Qty)
		b.frozen -= freeze
		b.cash += freeze
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now()

	b.events.emit(EventOrderUpdate, *order)
	b.emitBalance()
	return OrderResult{Success: true, Order: order}
}

// GetOrder returns a copy of one order by ID.
func (b *MockBroker) GetOrder(orderID string) (domain.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// GetOrders returns copies of all orders of the session, oldest first.
func (b *MockBroker) GetOrders() []domain.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Order, 0, len(b.orderSeq))
	for _, id := range b.orderSeq {
		out = append(out, *b.orders[id])
	}
	return out
}

// GetPositions returns copies of all open positions.
func (b *MockBroker) GetPositions() []domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out
}

// Fills returns the session's execution records in order.
func (b *MockBroker) Fills() []Fill {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Fill, len(b.fills))
	copy(out, b.fills)
	return out
}

// GetAccount returns a snapshot of the account. Positions are valued at
// their latest quote, falling back to average cost when no quote is known.
func (b *MockBroker) GetAccount() (domain.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return domain.AccountInfo{}, ErrNotConnected
	}
	return b.accountLocked(), nil
}

// Statistics summarises the session.
func (b *MockBroker) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()

	var unrealized float64
	for _, p := range b.positions {
		unrealized += p.UnrealizedPnL()
	}
	acct := b.accountLocked()
	return Statistics{
		InitialCash:     b.settings.InitialCash,
		Cash:            b.cash,
		Frozen:          b.frozen,
		UnrealizedPnL:   unrealized,
		TotalCommission: b.totalCommission,
		TotalTrades:     b.tradeCount,
		ReturnPct:       (acct.Equity/b.settings.InitialCash - 1) * 100,
	}
}

// Reset restores the account to its initial state: configured cash, no
// positions, no orders. The session stays connected.
func (b *MockBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cash = b.settings.InitialCash
	b.frozen = 0
	b.positions = make(map[string]*domain.Position)
	b.orders = make(map[string]*domain.Order)
	b.orderSeq = nil
	b.fills = nil
	b.totalCommission = 0
	b.tradeCount = 0
	b.log.Info("mock broker reset", "cash", b.cash)
	b.emitBalance()
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

func (b *MockBroker) reject(order *domain.Order, msg string) OrderResult {
	order.Status = domain.OrderStatusRejected
	order.Reason = msg
	order.UpdatedAt = time.Now()
	b.orders[order.ID] = order
	b.orderSeq = append(b.orderSeq, order.ID)

	b.log.Warn("order rejected", "symbol", order.Symbol, "side", string(order.Side), "reason", msg)
	b.events.emit(EventOrderUpdate, *order)
	b.events.emit(EventError, msg)
	return OrderResult{Success: false, Order: order, Message: msg}
}

// applyBuy merges a fill into the symbol's position with a weighted-average
// cost.
func (b *MockBroker) applyBuy(symbol string, qty, price float64) {
	pos, ok := b.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		b.positions[symbol] = pos
	}
	totalCost := pos.AvgCost*pos.Qty + price*qty
	pos.Qty += qty
	pos.AvailableQty += qty
	pos.AvgCost = totalCost / pos.Qty
	pos.CurrentPrice = b.quotes[symbol]
	b.events.emit(EventPositionUpdate, *pos)
}

// applySell reduces the position and removes it once the quantity reaches
// zero.
func (b *MockBroker) applySell(symbol string, qty, quote float64) {
	pos := b.positions[symbol]
	pos.Qty -= qty
	pos.AvailableQty -= qty
	pos.CurrentPrice = quote
	if pos.Qty <= 0 {
		delete(b.positions, symbol)
		pos = &domain.Position{Symbol: symbol}
	}
	b.events.emit(EventPositionUpdate, *pos)
}

func (b *MockBroker) recordFill(order *domain.Order, price float64, costs Fill) {
	fill := Fill{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       price,
		Qty:         order.Qty,
		Commission:  costs.Commission,
		StampDuty:   costs.StampDuty,
		TransferFee: costs.TransferFee,
		RealizedPnL: costs.RealizedPnL,
		Time:        time.Now(),
	}
	b.fills = append(b.fills, fill)
	b.totalCommission += costs.Commission + costs.StampDuty + costs.TransferFee
	b.tradeCount++
}

// commission applies the rate with the configured minimum, rounded to cents.
func (b *MockBroker) commission(amount float64) float64 {
	c := amount * b.settings.CommissionRate
	if c < b.settings.MinCommission {
		c = b.settings.MinCommission
	}
	return roundCents(c)
}

func (b *MockBroker) accountLocked() domain.AccountInfo {
	var marketValue float64
	for sym, p := range b.positions {
		price := b.quotes[sym]
		if price <= 0 {
			price = p.AvgCost
		}
		marketValue += p.Qty * price
	}
	return domain.AccountInfo{
		Cash:        b.cash,
		Frozen:      b.frozen,
		MarketValue: marketValue,
		Equity:      b.cash + b.frozen + marketValue,
	}
}

func (b *MockBroker) emitBalance() {
	b.events.emit(EventBalanceUpdate, b.accountLocked())
}

// roundCents rounds a currency amount to 2 decimals.
func roundCents(x float64) float64 {
	v, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return v
}
