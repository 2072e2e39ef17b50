// Interactive paper-trading console against the in-memory mock broker.
//
// Usage:
//
//	go run cmd/atrader-paper/main.go [-cash 1000000]
//
// Commands:
//
//	quote <symbol> <price>   set the mock quote for a symbol
//	buy <symbol> <qty>       place a market buy
//	sell <symbol> <qty>      place a market sell
//	positions                show open positions
//	account                  show the account snapshot
//	orders                   show the order history
//	stats                    show session statistics
//	reset                    reset the account
//	quit
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"atrader/internal/broker"
	"atrader/internal/config"
	"atrader/internal/domain"
	"atrader/internal/util"
)

func main() {
	cash := flag.Float64("cash", 0, "initial cash (defaults to the configured value)")
	flag.Parse()

	cfgPath := "config/atrader.yaml"
	if p := os.Getenv("ATRADER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = config.Default()
	}

	logger := util.NewLogger(cfg.Logging.Level, "text")
	util.SetDefault(logger)

	settings := broker.Settings{
		InitialCash:     cfg.Backtest.InitialCapital,
		CommissionRate:  cfg.Costs.CommissionRate,
		MinCommission:   cfg.Costs.MinCommission,
		StampDutyRate:   cfg.Costs.StampDutyRate,
		TransferFeeRate: cfg.Costs.TransferFeeRate,
		SlippageRate:    cfg.Costs.SlippageRate,
	}
	if *cash > 0 {
		settings.InitialCash = *cash
	}

	b := broker.NewMockBroker(logger)
	b.On(broker.EventOrderUpdate, func(ev broker.Event) {
		o := ev.Data.(domain.Order)
		if o.Status == domain.OrderStatusFilled {
			fmt.Printf("  filled: %s %s %v @ %.2f\n", o.Side, o.Symbol, o.FilledQty, o.FilledAvgPrice)
		}
	})
	if err := b.Connect(settings); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer b.Disconnect()

	fmt.Printf("paper trading session: %.2f cash (type 'quit' to exit)\n", settings.InitialCash)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := run(b, fields); err != nil {
			fmt.Printf("  error: %v\n", err)
		}
	}
}

func run(b *broker.MockBroker, fields []string) error {
	switch fields[0] {
	case "quote":
		if len(fields) != 3 {
			return fmt.Errorf("usage: quote <symbol> <price>")
		}
		price, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return err
		}
		b.SetQuote(fields[1], price)
		fmt.Printf("  %s = %.2f\n", fields[1], price)

	case "buy", "sell":
		if len(fields) != 3 {
			return fmt.Errorf("usage: %s <symbol> <qty>", fields[0])
		}
		qty, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return err
		}
		side := domain.OrderSideBuy
		if fields[0] == "sell" {
			side = domain.OrderSideSell
		}
		res := b.PlaceOrder(broker.OrderRequest{
			Symbol: fields[1],
			Side:   side,
			Type:   domain.OrderTypeMarket,
			Qty:    qty,
		})
		if !res.Success {
			fmt.Printf("  rejected: %s\n", res.Message)
		}

	case "positions":
		positions := b.GetPositions()
		if len(positions) == 0 {
			fmt.Println("  no open positions")
		}
		for _, p := range positions {
			fmt.Printf("  %s: %v @ %.2f (now %.2f, pnl %.2f)\n",
				p.Symbol, p.Qty, p.AvgCost, p.CurrentPrice, p.UnrealizedPnL())
		}

	case "account":
		acct, err := b.GetAccount()
		if err != nil {
			return err
		}
		fmt.Printf("  cash %.2f, frozen %.2f, market value %.2f, equity %.2f\n",
			acct.Cash, acct.Frozen, acct.MarketValue, acct.Equity)

	case "orders":
		orders := b.GetOrders()
		if len(orders) == 0 {
			fmt.Println("  no orders")
		}
		for _, o := range orders {
			line := fmt.Sprintf("  %s %s %s %v [%s]", o.ID[:8], o.Side, o.Symbol, o.Qty, o.Status)
			if o.Reason != "" {
				line += " " + o.Reason
			}
			fmt.Println(line)
		}

	case "stats":
		s := b.Statistics()
		fmt.Printf("  trades %d, fees %.2f, unrealized %.2f, return %.2f%%\n",
			s.TotalTrades, s.TotalCommission, s.UnrealizedPnL, s.ReturnPct)

	case "reset":
		b.Reset()
		fmt.Println("  account reset")

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}
