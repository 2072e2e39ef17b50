package strategy

import (
	"testing"

	"atrader/internal/indicator"
)

func TestParseDescriptorFull(t *testing.T) {
	text := `strategy("双均线策略")
快慢均线金叉买入，死叉卖出。
fast = 5
slow = 20
_internal = 99
slow = 30`

	def := ParseDescriptor(text)
	if def.Name != "双均线策略" {
		t.Errorf("Name = %q, want 双均线策略", def.Name)
	}
	if !def.Uses(indicator.KindSMA) {
		t.Error("均线 keyword not detected as SMA")
	}
	if def.Params["fast"] != 5 {
		t.Errorf("fast = %v, want 5", def.Params["fast"])
	}
	// Later occurrences overwrite earlier ones.
	if def.Params["slow"] != 30 {
		t.Errorf("slow = %v, want 30 (last assignment wins)", def.Params["slow"])
	}
	// Private-looking identifiers are skipped.
	if _, ok := def.Params["_internal"]; ok {
		t.Error("_internal must be excluded from parameters")
	}
	if def.EntryLabel != "fast MA crosses above slow MA" {
		t.Errorf("EntryLabel = %q", def.EntryLabel)
	}
	if def.ExitLabel != "fast MA crosses below slow MA" {
		t.Errorf("ExitLabel = %q", def.ExitLabel)
	}
}

func TestParseDescriptorRSI(t *testing.T) {
	text := `name: rsi_reversal
Buy when RSI is oversold (rsi_period = 14, oversold = 30), sell when overbought (overbought = 70).`

	def := ParseDescriptor(text)
	if def.Name != "rsi_reversal" {
		t.Errorf("Name = %q, want rsi_reversal", def.Name)
	}
	if !def.Uses(indicator.KindRSI) {
		t.Error("RSI keyword not detected")
	}
	if def.Params["rsi_period"] != 14 || def.Params["oversold"] != 30 || def.Params["overbought"] != 70 {
		t.Errorf("params = %v", def.Params)
	}
	if def.EntryLabel != "RSI drops below the oversold threshold" {
		t.Errorf("EntryLabel = %q", def.EntryLabel)
	}
	if def.ExitLabel != "RSI rises above the overbought threshold" {
		t.Errorf("ExitLabel = %q", def.ExitLabel)
	}
}

func TestParseDescriptorKeywordBoundaries(t *testing.T) {
	// "macd" must not switch on SMA through its "ma" substring.
	def := ParseDescriptor("trade on the macd histogram crossing zero")
	if !def.Uses(indicator.KindMACD) {
		t.Error("MACD keyword not detected")
	}
	if def.Uses(indicator.KindSMA) {
		t.Error("\"ma\" inside \"macd\" wrongly detected as SMA")
	}
}

func TestParseDescriptorMultipleIndicators(t *testing.T) {
	def := ParseDescriptor("combine ma crossover with rsi filter and bollinger bands")
	for _, k := range []indicator.Kind{indicator.KindSMA, indicator.KindRSI, indicator.KindBOLL} {
		if !def.Uses(k) {
			t.Errorf("indicator %v not detected", k)
		}
	}
}

func TestParseDescriptorMalformed(t *testing.T) {
	for _, text := range []string{"", "   ", "no structure here at all %%%"} {
		def := ParseDescriptor(text)
		if def == nil {
			t.Fatalf("ParseDescriptor(%q) returned nil", text)
		}
		if def.Name != DefaultName {
			t.Errorf("Name = %q, want default for %q", def.Name, text)
		}
		if def.EntryLabel == "" || def.ExitLabel == "" {
			t.Errorf("labels must be synthesized for %q", text)
		}
	}
}

func TestParamFallback(t *testing.T) {
	def := ParseDescriptor("ma strategy with short = 7")
	if got := def.Param(5, "fast", "short"); got != 7 {
		t.Errorf("Param fallback chain = %v, want 7", got)
	}
	if got := def.Param(20, "slow", "long"); got != 20 {
		t.Errorf("Param default = %v, want 20", got)
	}
}
