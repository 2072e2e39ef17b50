package broker

import (
	"math"
	"strings"
	"testing"

	"atrader/internal/domain"
	"atrader/internal/util"
)

func newTestBroker(t *testing.T) *MockBroker {
	t.Helper()
	b := NewMockBroker(util.NewLogger("error", "text"))
	if err := b.Connect(DefaultSettings()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return b
}

func marketOrder(symbol string, side domain.OrderSide, qty float64) OrderRequest {
	return OrderRequest{Symbol: symbol, Side: side, Type: domain.OrderTypeMarket, Qty: qty}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNotConnected(t *testing.T) {
	b := NewMockBroker(util.NewLogger("error", "text"))

	res := b.PlaceOrder(marketOrder("600519", domain.OrderSideBuy, 100))
	if res.Success {
		t.Fatal("PlaceOrder succeeded before Connect")
	}
	if !strings.Contains(res.Message, "not connected") {
		t.Errorf("message = %q, want not connected", res.Message)
	}
	if _, err := b.GetAccount(); err != ErrNotConnected {
		t.Errorf("GetAccount error = %v, want ErrNotConnected", err)
	}
	if _, err := b.GetQuote("600519"); err != ErrNotConnected {
		t.Errorf("GetQuote error = %v, want ErrNotConnected", err)
	}
}

func TestConnectSettings(t *testing.T) {
	// A zero-valued Settings selects the default cost profile.
	b := NewMockBroker(util.NewLogger("error", "text"))
	if err := b.Connect(Settings{}); err != nil {
		t.Fatalf("Connect with zero settings: %v", err)
	}
	acct, _ := b.GetAccount()
	if acct.Cash != DefaultSettings().InitialCash {
		t.Errorf("cash = %v, want default %v", acct.Cash, DefaultSettings().InitialCash)
	}

	// Custom settings are kept verbatim, not swapped for the defaults.
	b = NewMockBroker(util.NewLogger("error", "text"))
	custom := Settings{
		InitialCash:    50_000,
		CommissionRate: 0.001,
		MinCommission:  1,
	}
	if err := b.Connect(custom); err != nil {
		t.Fatalf("Connect with custom settings: %v", err)
	}
	b.SetQuote("600519", 100.00)
	res := b.PlaceOrder(marketOrder("600519", domain.OrderSideBuy, 100))
	if !res.Success {
		t.Fatalf("buy rejected: %s", res.Message)
	}
	// Zero slippage, so the fill is at the quote; commission uses the custom
	// 0.1% rate, which clears the custom 1 CNY floor.
	fill := b.Fills()[0]
	if !approx(fill.Price, 100.00) {
		t.Errorf("fill price = %v, want 100.00 with zero slippage", fill.Price)
	}
	if !approx(fill.Commission, 10) {
		t.Errorf("commission = %v, want 10 at the custom rate", fill.Commission)
	}

	// Non-zero settings with unusable cash are rejected outright.
	b = NewMockBroker(util.NewLogger("error", "text"))
	if err := b.Connect(Settings{CommissionRate: 0.001}); err == nil {
		t.Error("Connect with custom rates but no cash must fail")
	}
}

func TestConnectLifecycle(t *testing.T) {
	b := newTestBroker(t)
	if err := b.Connect(DefaultSettings()); err == nil {
		t.Error("second Connect should fail")
	}

	b.Disconnect()
	res := b.PlaceOrder(marketOrder("600519", domain.OrderSideBuy, 100))
	if res.Success {
		t.Error("PlaceOrder succeeded after Disconnect")
	}
}

func TestMarketBuyCostModel(t *testing.T) {
	b := newTestBroker(t)
	b.SetQuote("600519", 10.00)

	res := b.PlaceOrder(marketOrder("600519", domain.OrderSideBuy, 200))
	if !res.Success {
		t.Fatalf("buy rejected: %s", res.Message)
	}
	if res.Order.Status != domain.OrderStatusFilled {
		t.Fatalf("status = %v, want filled", res.Order.Status)
	}

	// Fill at 10 * 1.001 = 10.01, notional 2002. The rate commission 0.60 is
	// below the 5 CNY floor; the transfer fee rounds to 0.02.
	if !approx(res.Order.FilledAvgPrice, 10.01) {
		t.Errorf("fill price = %v, want 10.01", res.Order.FilledAvgPrice)
	}
	fills := b.Fills()
	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	if !approx(fills[0].Commission, 5) {
		t.Errorf("commission = %v, want 5 (minimum)", fills[0].Commission)
	}
	if !approx(fills[0].TransferFee, 0.02) {
		t.Errorf("transfer fee = %v, want 0.02", fills[0].TransferFee)
	}

	acct, err := b.GetAccount()
	if err != nil {
		t.Fatal(err)
	}
	wantCash := 1_000_000 - (2002 + 5 + 0.02)
	if !approx(acct.Cash, wantCash) {
		t.Errorf("cash = %v, want %v", acct.Cash, wantCash)
	}

	positions := b.GetPositions()
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	if positions[0].Qty != 200 || !approx(positions[0].AvgCost, 10.01) {
		t.Errorf("position = %+v", positions[0])
	}
}

func TestOrderRejections(t *testing.T) {
	b := newTestBroker(t)
	b.SetQuote("600519", 10.00)

	cases := []struct {
		name string
		req  OrderRequest
		want string
	}{
		{"odd lot buy", marketOrder("600519", domain.OrderSideBuy, 150), "lot"},
		{"zero qty", marketOrder("600519", domain.OrderSideBuy, 0), "positive"},
		{"sell flat", marketOrder("600519", domain.OrderSideSell, 100), "insufficient available"},
		{"no quote", marketOrder("000001", domain.OrderSideBuy, 100), "no quote"},
		{
			"limit without price",
			OrderRequest{Symbol: "600519", Side: domain.OrderSideBuy, Type: domain.OrderTypeLimit, Qty: 100},
			"limit price",
		},
		{
			"stop without trigger",
			OrderRequest{Symbol: "600519", Side: domain.OrderSideBuy, Type: domain.OrderTypeStop, Qty: 100},
			"stop price",
		},
	}
	for _, tc := range cases {
		res := b.PlaceOrder(tc.req)
		if res.Success {
			t.Errorf("%s: order accepted, want rejection", tc.name)
			continue
		}
		if !strings.Contains(res.Message, tc.want) {
			t.Errorf("%s: message = %q, want substring %q", tc.name, res.Message, tc.want)
		}
		if res.Order != nil && res.Order.Status != domain.OrderStatusRejected {
			t.Errorf("%s: status = %v, want rejected", tc.name, res.Order.Status)
		}
	}

	// Insufficient buying power.
	b.SetQuote("999999", 1e9)
	res := b.PlaceOrder(marketOrder("999999", domain.OrderSideBuy, 100))
	if res.Success || !strings.Contains(res.Message, "insufficient buying power") {
		t.Errorf("huge buy: success=%v message=%q", res.Success, res.Message)
	}
}

func TestRoundTripPnL(t *testing.T) {
	b := newTestBroker(t)
	b.SetQuote("600519", 10.00)

	if res := b.PlaceOrder(marketOrder("600519", domain.OrderSideBuy, 200)); !res.Success {
		t.Fatalf("buy rejected: %s", res.Message)
	}

	b.SetQuote("600519", 12.00)
	res := b.PlaceOrder(marketOrder("600519", domain.OrderSideSell, 200))
	if !res.Success {
		t.Fatalf("sell rejected: %s", res.Message)
	}

	// Sell at 12 * 0.999 = 11.988, notional 2397.60. Commission hits the 5 CNY
	// floor, stamp duty 2.40, transfer fee 0.02.
	fills := b.Fills()
	sell := fills[len(fills)-1]
	if !approx(sell.StampDuty, 2.40) {
		t.Errorf("stamp duty = %v, want 2.40", sell.StampDuty)
	}
	wantPnL := (11.988-10.01)*200 - (5 + 2.40 + 0.02)
	if !approx(sell.RealizedPnL, wantPnL) {
		t.Errorf("realized pnl = %v, want %v", sell.RealizedPnL, wantPnL)
	}

	if len(b.GetPositions()) != 0 {
		t.Error("position must be removed once fully sold")
	}

	// With no positions, equity is pure cash and reconciles against every
	// cash flow of the round trip.
	acct, _ := b.GetAccount()
	wantCash := 1_000_000 - (2002 + 5 + 0.02) + (2397.60 - 5 - 2.40 - 0.02)
	if !approx(acct.Cash, wantCash) {
		t.Errorf("cash = %v, want %v", acct.Cash, wantCash)
	}
	if !approx(acct.Equity, acct.Cash) {
		t.Errorf("equity = %v, want cash %v", acct.Equity, acct.Cash)
	}

	// Buying on a stamp-duty fill must not have charged duty.
	if fills[0].StampDuty != 0 {
		t.Errorf("buy fill stamp duty = %v, want 0", fills[0].StampDuty)
	}
}

func TestLimitOrderFreezeAndCancel(t *testing.T) {
	b := newTestBroker(t)
	b.SetQuote("600519", 10.50)

	res := b.PlaceOrder(OrderRequest{
		Symbol: "600519",
		Side:   domain.OrderSideBuy,
		Type:   domain.OrderTypeLimit,
		Qty:    200,
		Price:  10.00,
	})
	if !res.Success {
		t.Fatalf("limit buy rejected: %s", res.Message)
	}
	if res.Order.Status != domain.OrderStatusSubmitted {
		t.Fatalf("status = %v, want submitted", res.Order.Status)
	}

	// Frozen = notional 2000 plus the 5 CNY commission floor. Equity is
	// unchanged because frozen cash still counts.
	acct, _ := b.GetAccount()
	if !approx(acct.Frozen, 2005) {
		t.Errorf("frozen = %v, want 2005", acct.Frozen)
	}
	if !approx(acct.Equity, 1_000_000) {
		t.Errorf("equity = %v, want 1000000", acct.Equity)
	}

	cancel := b.CancelOrder(res.Order.ID)
	if !cancel.Success {
		t.Fatalf("cancel failed: %s", cancel.Message)
	}
	if cancel.Order.Status != domain.OrderStatusCancelled {
		t.Errorf("status = %v, want cancelled", cancel.Order.Status)
	}
	acct, _ = b.GetAccount()
	if acct.Frozen != 0 || !approx(acct.Cash, 1_000_000) {
		t.Errorf("after cancel: cash=%v frozen=%v", acct.Cash, acct.Frozen)
	}

	// A filled (or cancelled) order is no longer cancellable.
	again := b.CancelOrder(res.Order.ID)
	if again.Success {
		t.Error("cancelling a cancelled order succeeded")
	}
	if missing := b.CancelOrder("no-such-id"); missing.Success {
		t.Error("cancelling an unknown order succeeded")
	}
}

func TestListenerPanicIsolation(t *testing.T) {
	b := newTestBroker(t)
	b.SetQuote("600519", 10.00)

	var got []domain.OrderStatus
	b.On(EventOrderUpdate, func(Event) { panic("listener bug") })
	b.On(EventOrderUpdate, func(ev Event) {
		got = append(got, ev.Data.(domain.Order).Status)
	})

	res := b.PlaceOrder(marketOrder("600519", domain.OrderSideBuy, 100))
	if !res.Success {
		t.Fatalf("order failed: %s", res.Message)
	}
	if len(got) != 1 || got[0] != domain.OrderStatusFilled {
		t.Errorf("second listener saw %v, want one filled update", got)
	}
}

func TestStatisticsAndReset(t *testing.T) {
	b := newTestBroker(t)
	b.SetQuote("600519", 10.00)
	b.PlaceOrder(marketOrder("600519", domain.OrderSideBuy, 200))
	b.SetQuote("600519", 12.00)
	b.PlaceOrder(marketOrder("600519", domain.OrderSideSell, 200))

	stats := b.Statistics()
	if stats.TotalTrades != 2 {
		t.Errorf("trades = %d, want 2", stats.TotalTrades)
	}
	if stats.TotalCommission <= 0 {
		t.Errorf("total commission = %v, want > 0", stats.TotalCommission)
	}
	if stats.ReturnPct <= 0 {
		t.Errorf("return = %v%%, want > 0 after a profitable round trip", stats.ReturnPct)
	}

	b.Reset()
	stats = b.Statistics()
	if stats.Cash != 1_000_000 || stats.TotalTrades != 0 {
		t.Errorf("after reset: %+v", stats)
	}
	if len(b.GetOrders()) != 0 || len(b.GetPositions()) != 0 || len(b.Fills()) != 0 {
		t.Error("reset must clear orders, positions, and fills")
	}
}
