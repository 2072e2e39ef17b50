// Run a strategy backtest over a CSV or Parquet bar series and print the
// summary report.
//
// Usage:
//
//	go run cmd/atrader-backtest/main.go -symbol 600519 -csv data/600519.csv -strategy strategy.txt [-save]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"atrader/internal/backtest"
	"atrader/internal/config"
	"atrader/internal/domain"
	"atrader/internal/store"
	"atrader/internal/util"
)

func main() {
	symbol := flag.String("symbol", "", "symbol to backtest (defaults to the configured symbol)")
	csvPath := flag.String("csv", "", "CSV bar file (date,open,high,low,close,volume); overrides parquet storage")
	strategyPath := flag.String("strategy", "", "file holding the strategy description")
	description := flag.String("desc", "", "inline strategy description (alternative to -strategy)")
	capital := flag.Float64("capital", 0, "initial capital (defaults to the configured value)")
	isST := flag.Bool("st", false, "treat the symbol as ST (5% price limit)")
	save := flag.Bool("save", false, "persist the result to the SQLite store")
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

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if *symbol == "" {
		*symbol = cfg.Backtest.Symbol
	}
	if *symbol == "" {
		log.Fatal("no symbol: pass -symbol or set backtest.symbol in the config")
	}
	if *capital == 0 {
		*capital = cfg.Backtest.InitialCapital
	}

	text := *description
	if *strategyPath != "" {
		data, err := os.ReadFile(*strategyPath)
		if err != nil {
			log.Fatalf("failed to read strategy: %v", err)
		}
		text = string(data)
	}
	if text == "" {
		log.Fatal("no strategy: pass -strategy or -desc")
	}

	bars, err := loadBars(cfg, *symbol, *csvPath)
	if err != nil {
		log.Fatalf("failed to load bars: %v", err)
	}

	runCfg := backtest.Config{
		Symbol:         *symbol,
		InitialCapital: *capital,
		CommissionRate: cfg.Costs.CommissionRate,
		SlippageRate:   cfg.Costs.SlippageRate,
		StartDate:      cfg.Backtest.StartDate,
		EndDate:        cfg.Backtest.EndDate,
		Timeframe:      cfg.Backtest.Timeframe,
		MaxPositionPct: cfg.Backtest.MaxPositionPct,
		IsST:           *isST,
	}

	engine := backtest.NewEngine(logger)
	res, err := engine.Run(runCfg, bars, text)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	printSummary(res)

	if *save {
		st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("failed to open result store: %v", err)
		}
		defer st.Close()

		id, err := st.SaveResult(context.Background(), res)
		if err != nil {
			log.Fatalf("failed to save result: %v", err)
		}
		fmt.Printf("\nresult saved: %s\n", id)
	}
}

// loadBars reads the bar series from the CSV file when given, otherwise from
// the Parquet store over the configured date range.
func loadBars(cfg *config.Config, symbol, csvPath string) ([]domain.Bar, error) {
	if csvPath != "" {
		return store.LoadBarsCSV(csvPath, symbol)
	}

	start, err := parseDate(cfg.Backtest.StartDate, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	end, err := parseDate(cfg.Backtest.EndDate, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	ps := store.NewParquetStore(cfg.Storage.DataDir)
	bars, err := ps.ReadBars(context.Background(), symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s in %s", symbol, cfg.Storage.DataDir)
	}
	return bars, nil
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", s)
}

func printSummary(res *backtest.Result) {
	s := res.Summary
	fmt.Printf("strategy:          %s\n", res.Strategy.Name)
	fmt.Printf("symbol:            %s (lot size %v)\n", res.Config.Symbol, res.LotSize.LotSize)
	fmt.Printf("bars:              %d trading days\n", s.TradingDays)
	fmt.Printf("initial capital:   %.2f\n", s.InitialCapital)
	fmt.Printf("final equity:      %.2f\n", s.FinalEquity)
	fmt.Printf("total return:      %.2f%%\n", s.TotalReturnPct)
	fmt.Printf("annualized return: %.2f%%\n", s.AnnualizedReturnPct)
	fmt.Printf("max drawdown:      %.2f%%\n", s.MaxDrawdownPct)
	fmt.Printf("sharpe / sortino:  %.2f / %.2f\n", s.Sharpe, s.Sortino)
	fmt.Printf("closed trades:     %d (win rate %.1f%%)\n", s.TotalTrades, s.WinRatePct)
	if math.IsInf(s.ProfitFactor, 1) {
		fmt.Printf("profit factor:     inf\n")
	} else {
		fmt.Printf("profit factor:     %.2f\n", s.ProfitFactor)
	}
	fmt.Printf("avg holding:       %.1f days\n", s.AvgHoldingDays)
	fmt.Printf("costs:             commission %.2f, slippage %.2f\n", s.TotalCommission, s.TotalSlippage)

	for _, issue := range res.DataQuality.Issues {
		fmt.Printf("data issue:        %s\n", issue)
	}

	if len(res.Trades) > 0 {
		fmt.Println("\ntrades:")
		for _, tr := range res.Trades {
			date := tr.Date.Format("2006-01-02")
			if tr.Date.IsZero() {
				date = fmt.Sprintf("bar %d", tr.Index)
			}
			fmt.Printf("  %s %-4s %8.0f @ %8.2f  %s\n", date, tr.Side, tr.Qty, tr.Price, tr.Reason)
		}
	}
}
