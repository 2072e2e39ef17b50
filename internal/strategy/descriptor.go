// Package strategy converts semi-structured strategy descriptions into a
// strict Definition and evaluates that definition bar by bar to produce
// trading signals. All code downstream of the parser works only against the
// structured Definition, never against raw text.
package strategy

import (
	"regexp"
	"strconv"
	"strings"

	"atrader/internal/indicator"
)

// DefaultName is used when a description carries no recognisable strategy
// name.
const DefaultName = "unnamed_strategy"

// Definition is the structured form of a strategy. It is immutable once
// parsed and consumed read-only by the signal generator.
type Definition struct {
	Name       string
	Params     map[string]float64
	Indicators map[indicator.Kind]bool
	EntryLabel string
	ExitLabel  string
}

// Param returns the first defined parameter among the given keys, or the
// fallback when none is present.
func (d *Definition) Param(fallback float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := d.Params[k]; ok {
			return v
		}
	}
	return fallback
}

// Uses reports whether the definition declares the given indicator.
func (d *Definition) Uses(kind indicator.Kind) bool {
	return d.Indicators[kind]
}

var (
	// Named declarations, in priority order. The first match wins.
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`strategy\s*\(\s*"([^"]+)"`),
		regexp.MustCompile(`(?:策略名称|策略名)\s*[:：=]\s*"?([^\s"，,。;；]+)`),
		regexp.MustCompile(`(?im)^\s*(?:name|strategy)\s*[:=]\s*"?([\w\- ]+?)"?\s*$`),
	}

	// identifier = numeric-literal assignments.
	paramPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(-?\d+(?:\.\d+)?)`)
)

// indicatorVocab maps each indicator kind to its keyword vocabulary,
// including localized synonyms. ASCII keywords are matched on word
// boundaries so that "ma" does not match inside "macd".
var indicatorVocab = map[indicator.Kind][]string{
	indicator.KindSMA:  {"sma", "ma", "均线", "移动平均"},
	indicator.KindEMA:  {"ema", "指数均线", "指数移动平均"},
	indicator.KindRSI:  {"rsi", "相对强弱"},
	indicator.KindMACD: {"macd", "指数平滑异同"},
	indicator.KindBOLL: {"boll", "bollinger", "布林"},
}

// ParseDescriptor extracts a Definition from a free-form strategy
// description. It is tolerant of malformed input: an unparseable description
// yields a definition with the default name, empty parameters, and no
// indicators rather than an error.
func ParseDescriptor(text string) *Definition {
	def := &Definition{
		Name:       DefaultName,
		Params:     map[string]float64{},
		Indicators: map[indicator.Kind]bool{},
	}
	if strings.TrimSpace(text) == "" {
		def.EntryLabel, def.ExitLabel = fallbackLabels(def)
		return def
	}

	for _, p := range namePatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			def.Name = strings.TrimSpace(m[1])
			break
		}
	}

	for _, m := range paramPattern.FindAllStringSubmatch(text, -1) {
		ident := m[1]
		if strings.HasPrefix(ident, "_") {
			continue // private/internal-looking identifiers are skipped
		}
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			def.Params[strings.ToLower(ident)] = v // later occurrences overwrite
		}
	}

	lower := strings.ToLower(text)
	for kind, words := range indicatorVocab {
		for _, w := range words {
			if containsKeyword(lower, w) {
				def.Indicators[kind] = true
				break
			}
		}
	}

	def.EntryLabel, def.ExitLabel = deriveLabels(lower, def)
	return def
}

// containsKeyword matches ASCII keywords on word boundaries and non-ASCII
// (localized) keywords by plain substring.
func containsKeyword(lower, word string) bool {
	if isASCII(word) {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
		return re.MatchString(lower)
	}
	return strings.Contains(lower, word)
}

// deriveLabels pattern-matches the description against known comparison
// shapes and falls back to labels synthesized from the indicator set.
func deriveLabels(lower string, def *Definition) (entry, exit string) {
	switch {
	case containsAny(lower, "金叉", "golden cross", "cross above", "crosses above", "上穿"):
		entry = "fast MA crosses above slow MA"
	case def.Uses(indicator.KindRSI) && containsAny(lower, "超卖", "oversold", "rsi < ", "rsi<", "低于"):
		entry = "RSI drops below the oversold threshold"
	case def.Uses(indicator.KindMACD) && containsAny(lower, "翻红", "turns positive", "above zero", "大于0", "大于零"):
		entry = "MACD histogram turns positive"
	case def.Uses(indicator.KindBOLL) && containsAny(lower, "下轨", "lower band"):
		entry = "close touches the lower Bollinger band"
	}

	switch {
	case containsAny(lower, "死叉", "death cross", "cross below", "crosses below", "下穿"):
		exit = "fast MA crosses below slow MA"
	case def.Uses(indicator.KindRSI) && containsAny(lower, "超买", "overbought", "rsi > ", "rsi>", "高于"):
		exit = "RSI rises above the overbought threshold"
	case def.Uses(indicator.KindMACD) && containsAny(lower, "翻绿", "turns negative", "below zero", "小于0", "小于零"):
		exit = "MACD histogram turns negative"
	case def.Uses(indicator.KindBOLL) && containsAny(lower, "上轨", "upper band"):
		exit = "close touches the upper Bollinger band"
	}

	fe, fx := fallbackLabels(def)
	if entry == "" {
		entry = fe
	}
	if exit == "" {
		exit = fx
	}
	return entry, exit
}

func fallbackLabels(def *Definition) (entry, exit string) {
	kinds := make([]string, 0, len(def.Indicators))
	for _, k := range []indicator.Kind{indicator.KindSMA, indicator.KindEMA,
		indicator.KindRSI, indicator.KindMACD, indicator.KindBOLL} {
		if def.Indicators[k] {
			kinds = append(kinds, strings.ToUpper(string(k)))
		}
	}
	if len(kinds) == 0 {
		return "entry signal", "exit signal"
	}
	joined := strings.Join(kinds, "/")
	return "entry signal from " + joined, "exit signal from " + joined
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}
