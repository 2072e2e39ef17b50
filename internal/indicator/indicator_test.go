package indicator

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	got := SMA(prices, 3)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Error("expected NaN before the warm-up window is complete")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !almostEqual(got[i+2], w) {
			t.Errorf("SMA[%d] = %v, want %v", i+2, got[i+2], w)
		}
	}
}

func TestEMASeedsWithFirstPrice(t *testing.T) {
	prices := []float64{10, 11, 12}
	got := EMA(prices, 3)
	if !almostEqual(got[0], 10) {
		t.Errorf("EMA[0] = %v, want 10", got[0])
	}
	// k = 2/(3+1) = 0.5
	if !almostEqual(got[1], 10.5) {
		t.Errorf("EMA[1] = %v, want 10.5", got[1])
	}
	if !almostEqual(got[2], 11.25) {
		t.Errorf("EMA[2] = %v, want 11.25", got[2])
	}
}

func TestRSI(t *testing.T) {
	// Strictly rising prices: no losses, RSI must be 100 once defined.
	rising := make([]float64, 20)
	for i := range rising {
		rising[i] = 10 + float64(i)
	}
	got := RSI(rising, 14)
	for i := 0; i < 14; i++ {
		if !almostEqual(got[i], 50) {
			t.Errorf("RSI[%d] = %v, want neutral seed 50", i, got[i])
		}
	}
	for i := 14; i < len(got); i++ {
		if !almostEqual(got[i], 100) {
			t.Errorf("RSI[%d] = %v, want 100 for zero average loss", i, got[i])
		}
	}

	// Strictly falling prices: no gains, RSI must be 0 once defined.
	falling := make([]float64, 20)
	for i := range falling {
		falling[i] = 100 - float64(i)
	}
	got = RSI(falling, 14)
	for i := 14; i < len(got); i++ {
		if !almostEqual(got[i], 0) {
			t.Errorf("RSI[%d] = %v, want 0 for zero average gain", i, got[i])
		}
	}
}

func TestMACDIdentities(t *testing.T) {
	prices := []float64{10, 10.5, 11, 10.8, 11.2, 11.5, 11.3, 11.8, 12, 12.2}
	res := MACD(prices, 3, 6, 4)

	fast := EMA(prices, 3)
	slow := EMA(prices, 6)
	for i := range prices {
		if !almostEqual(res.DIF[i], fast[i]-slow[i]) {
			t.Errorf("DIF[%d] = %v, want %v", i, res.DIF[i], fast[i]-slow[i])
		}
		if !almostEqual(res.Histogram[i], (res.DIF[i]-res.DEA[i])*2) {
			t.Errorf("Histogram[%d] does not equal (DIF-DEA)*2", i)
		}
	}
}

func TestBollinger(t *testing.T) {
	// Constant prices: zero deviation, all three bands collapse to the price.
	flat := make([]float64, 25)
	for i := range flat {
		flat[i] = 50
	}
	res := Bollinger(flat, 20, 2)
	if !math.IsNaN(res.Upper[18]) {
		t.Error("expected NaN before the warm-up window is complete")
	}
	for i := 19; i < len(flat); i++ {
		if !almostEqual(res.Middle[i], 50) || !almostEqual(res.Upper[i], 50) || !almostEqual(res.Lower[i], 50) {
			t.Errorf("bands at %d = (%v, %v, %v), want all 50",
				i, res.Lower[i], res.Middle[i], res.Upper[i])
		}
	}

	// Known window: prices 1..5, period 5, k 2.
	prices := []float64{1, 2, 3, 4, 5}
	res = Bollinger(prices, 5, 2)
	sd := math.Sqrt(2) // population stddev of 1..5
	if !almostEqual(res.Middle[4], 3) {
		t.Errorf("Middle[4] = %v, want 3", res.Middle[4])
	}
	if !almostEqual(res.Upper[4], 3+2*sd) {
		t.Errorf("Upper[4] = %v, want %v", res.Upper[4], 3+2*sd)
	}
	if !almostEqual(res.Lower[4], 3-2*sd) {
		t.Errorf("Lower[4] = %v, want %v", res.Lower[4], 3-2*sd)
	}
}

func TestShortSeries(t *testing.T) {
	// Series shorter than the period must yield all-NaN (SMA/BOLL) without
	// panicking.
	short := []float64{1, 2}
	for i, v := range SMA(short, 5) {
		if !math.IsNaN(v) {
			t.Errorf("SMA[%d] = %v, want NaN", i, v)
		}
	}
	res := Bollinger(short, 5, 2)
	for i := range short {
		if !math.IsNaN(res.Upper[i]) || !math.IsNaN(res.Lower[i]) {
			t.Errorf("Bollinger bands at %d defined for short series", i)
		}
	}
}
