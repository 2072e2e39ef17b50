// Package lot classifies traded symbols into asset classes and applies each
// class's trading-unit rules: lot-size rounding, min/max lot bounds, and
// cash-constrained position sizing.
package lot

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"atrader/internal/domain"
)

// AssetClass identifies the trading-unit rule set for a symbol.
type AssetClass string

const (
	ClassStock   AssetClass = "stock"
	ClassETF     AssetClass = "etf"
	ClassBond    AssetClass = "bond"
	ClassIndex   AssetClass = "index"
	ClassFutures AssetClass = "futures"
	ClassCrypto  AssetClass = "crypto"
)

// Config holds the trading-unit rules resolved for one symbol. It is constant
// for the duration of a run.
type Config struct {
	Class           AssetClass
	LotSize         float64
	MinLots         int
	MaxLots         int // 0 = unbounded
	AllowFractional bool
	Multiplier      float64 // futures contract multiplier; 1 otherwise
}

// Calculation reports the outcome of rounding a requested quantity to the
// symbol's lot rules.
type Calculation struct {
	RequestedQty    float64
	LotSize         float64
	ActualLots      int
	ActualQty       float64
	RoundingLoss    float64
	RoundingLossPct float64
}

// classConfigs is the rule table keyed by asset class.
var classConfigs = map[AssetClass]Config{
	ClassStock:   {Class: ClassStock, LotSize: 100, MinLots: 1, AllowFractional: false, Multiplier: 1},
	ClassETF:     {Class: ClassETF, LotSize: 100, MinLots: 1, AllowFractional: false, Multiplier: 1},
	ClassBond:    {Class: ClassBond, LotSize: 10, MinLots: 1, AllowFractional: false, Multiplier: 1},
	ClassIndex:   {Class: ClassIndex, LotSize: 1, MinLots: 1, AllowFractional: false, Multiplier: 1},
	ClassFutures: {Class: ClassFutures, LotSize: 1, MinLots: 1, AllowFractional: false, Multiplier: 1},
	ClassCrypto:  {Class: ClassCrypto, LotSize: 0.0001, AllowFractional: true, Multiplier: 1},
}

// futuresMultipliers maps futures product codes to contract multipliers.
// Unknown products default to 1.
var futuresMultipliers = map[string]float64{
	"IF": 300, // CSI 300 index futures
	"IH": 300,
	"IC": 200,
	"IM": 200,
	"RB": 10,
	"CU": 5,
	"AU": 1000,
}

var (
	futuresPattern = regexp.MustCompile(`^[A-Za-z]{1,2}\d{3,4}$`)
	etfPrefixes    = []string{"51", "56", "58", "15", "16"}
	bondPrefixes   = []string{"110", "111", "113", "118", "123", "127", "128"}
	indexPrefixes  = []string{"399", "880"}
	cryptoSuffixes = []string{"USDT", "USDC", "BTC", "ETH", "USD"}
)

// Classify determines the asset class of a symbol using prefix and shape
// heuristics. Anything unrecognised is treated as a stock.
func Classify(symbol string) AssetClass {
	s := strings.TrimSpace(symbol)
	if s == "" {
		return ClassStock
	}
	if strings.Contains(s, "/") {
		return ClassCrypto
	}
	upper := strings.ToUpper(s)
	for _, suf := range cryptoSuffixes {
		if len(upper) > len(suf) && strings.HasSuffix(upper, suf) && !isAllDigits(upper) {
			return ClassCrypto
		}
	}
	if futuresPattern.MatchString(s) {
		return ClassFutures
	}
	// Board-code prefixes are only meaningful for pure numeric tickers.
	if isAllDigits(s) {
		for _, p := range indexPrefixes {
			if strings.HasPrefix(s, p) {
				return ClassIndex
			}
		}
		for _, p := range bondPrefixes {
			if strings.HasPrefix(s, p) {
				return ClassBond
			}
		}
		for _, p := range etfPrefixes {
			if strings.HasPrefix(s, p) {
				return ClassETF
			}
		}
	}
	return ClassStock
}

// Resolve returns the lot-size rules for a symbol, classifying it first.
func Resolve(symbol string) Config {
	return ResolveClass(symbol, Classify(symbol))
}

// ResolveClass returns the lot-size rules for a symbol with the asset class
// forced by the caller. Futures additionally resolve a per-product contract
// multiplier.
func ResolveClass(symbol string, class AssetClass) Config {
	cfg, ok := classConfigs[class]
	if !ok {
		cfg = classConfigs[ClassStock]
	}
	if class == ClassFutures {
		product := strings.ToUpper(strings.TrimRight(symbol, "0123456789"))
		if m, ok := futuresMultipliers[product]; ok {
			cfg.Multiplier = m
		}
	}
	return cfg
}

// RoundToLot rounds a requested quantity to the symbol's tradable units.
// Fractional classes clamp up to the minimum tradable unit and otherwise pass
// the quantity through unchanged; non-fractional classes floor to whole lots
// and enforce the configured min/max lot bounds. Buy and sell use the same
// flooring rule.
func RoundToLot(qty float64, symbol string, side domain.OrderSide) Calculation {
	cfg := Resolve(symbol)
	return roundWithConfig(qty, cfg, side)
}

func roundWithConfig(qty float64, cfg Config, _ domain.OrderSide) Calculation {
	calc := Calculation{
		RequestedQty: qty,
		LotSize:      cfg.LotSize,
	}
	if qty <= 0 {
		return calc
	}

	if cfg.AllowFractional {
		actual := qty
		if actual < cfg.LotSize {
			actual = cfg.LotSize
		}
		calc.ActualQty = actual
		calc.ActualLots = int(actual / cfg.LotSize)
		calc.RoundingLoss = qty - actual
		if qty > 0 {
			calc.RoundingLossPct = calc.RoundingLoss / qty * 100
		}
		return calc
	}

	lots := int(math.Floor(qty / cfg.LotSize))
	if lots < cfg.MinLots {
		lots = 0
	}
	if cfg.MaxLots > 0 && lots > cfg.MaxLots {
		lots = cfg.MaxLots
	}
	calc.ActualLots = lots
	calc.ActualQty = float64(lots) * cfg.LotSize
	calc.RoundingLoss = qty - calc.ActualQty
	calc.RoundingLossPct = calc.RoundingLoss / qty * 100
	return calc
}

// MaxAffordableLots solves cash = qty * price * (1 + commissionRate) for the
// quantity and rounds it down to tradable lots, so the resulting quantity is
// always affordable including commission. Fractional classes return zero when
// the cash does not cover even the minimum tradable unit; the clamp-up in
// RoundToLot applies only to explicit quantity requests.
func MaxAffordableLots(cash, price float64, symbol string, commissionRate float64) Calculation {
	cfg := Resolve(symbol)
	if cash <= 0 || price <= 0 {
		return Calculation{LotSize: cfg.LotSize}
	}
	qty := cash / (price * (1 + commissionRate))
	if cfg.AllowFractional && qty < cfg.LotSize {
		return Calculation{
			RequestedQty:    qty,
			LotSize:         cfg.LotSize,
			RoundingLoss:    qty,
			RoundingLossPct: 100,
		}
	}
	return RoundToLot(qty, symbol, domain.OrderSideBuy)
}

// ValidateQuantity checks an order quantity against the symbol's lot rules.
// Non-positive quantities are always invalid; for non-fractional classes a buy
// must be an exact multiple of the lot size and at least the minimum lots.
func ValidateQuantity(qty float64, symbol string, side domain.OrderSide) (bool, string) {
	if qty <= 0 {
		return false, "quantity must be positive"
	}
	cfg := Resolve(symbol)
	if cfg.AllowFractional {
		if qty < cfg.LotSize {
			return false, fmt.Sprintf("quantity %v below minimum tradable unit %v", qty, cfg.LotSize)
		}
		return true, ""
	}
	if side == domain.OrderSideBuy {
		lots := qty / cfg.LotSize
		if lots != math.Trunc(lots) {
			return false, fmt.Sprintf("quantity %v is not a multiple of lot size %v", qty, cfg.LotSize)
		}
	}
	if qty < float64(cfg.MinLots)*cfg.LotSize {
		return false, fmt.Sprintf("quantity %v below minimum of %d lot(s) of %v", qty, cfg.MinLots, cfg.LotSize)
	}
	return true, ""
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
