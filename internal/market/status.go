// Package market classifies bars against A-share microstructure rules:
// trading suspension, board-dependent price-limit bands, and data
// abnormalities. It also derives per-signal execution status for the
// backtest orchestrator.
package market

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"atrader/internal/domain"
)

// Status is the per-bar market classification. SuspensionDays is only
// meaningful when bars are processed monotonically through DetectSeries; it
// resets to zero on the first non-suspended bar.
type Status struct {
	IsSuspended    bool
	IsLimitUp      bool
	IsLimitDown    bool
	SuspensionDays int
	IsAbnormal     bool
	AbnormalReason string
}

// Detector holds the tunable thresholds for bar classification. The zero
// value is not usable; construct with NewDetector.
type Detector struct {
	// SuspendVolumeThreshold marks a bar as suspended when its volume is
	// strictly below this value.
	SuspendVolumeThreshold float64
	// AbnormalChangeRatio flags a close-to-close move larger than this
	// fraction as abnormal.
	AbnormalChangeRatio float64
	// LimitTolerance is the relative distance from the theoretical limit
	// price within which a close counts as limit-up/limit-down.
	LimitTolerance float64
}

// NewDetector returns a Detector with the standard thresholds: suspension
// below 100 volume, abnormality above a 50% move, and a 0.5% limit-price
// tolerance.
func NewDetector() *Detector {
	return &Detector{
		SuspendVolumeThreshold: 100,
		AbnormalChangeRatio:    0.5,
		LimitTolerance:         0.005,
	}
}

// LimitRatio returns the daily price-limit ratio for a symbol's board.
// ST stocks move 5%, STAR-board and ChiNext 20%, Beijing exchange 30%, and
// the main boards 10%.
func LimitRatio(symbol string, isST bool) float64 {
	if isST {
		return 0.05
	}
	s := strings.TrimSpace(symbol)
	switch {
	case strings.HasPrefix(s, "688"), strings.HasPrefix(s, "689"):
		return 0.20 // STAR board
	case strings.HasPrefix(s, "300"), strings.HasPrefix(s, "301"):
		return 0.20 // ChiNext
	case strings.HasPrefix(s, "43"), strings.HasPrefix(s, "83"),
		strings.HasPrefix(s, "87"), strings.HasPrefix(s, "92"):
		return 0.30 // Beijing exchange
	default:
		return 0.10
	}
}

// LimitPrices computes the theoretical limit-up and limit-down prices from the
// previous close, rounded to 2 decimals the way the exchanges quote them.
func LimitPrices(prevClose float64, symbol string, isST bool) (up, down float64) {
	ratio := decimal.NewFromFloat(LimitRatio(symbol, isST))
	prev := decimal.NewFromFloat(prevClose)
	up, _ = prev.Mul(decimal.NewFromInt(1).Add(ratio)).Round(2).Float64()
	down, _ = prev.Mul(decimal.NewFromInt(1).Sub(ratio)).Round(2).Float64()
	return up, down
}

// Detect classifies a single bar. prev may be nil for the first bar of a
// series, in which case limit and change checks are skipped.
func (d *Detector) Detect(bar domain.Bar, prev *domain.Bar, symbol string, isST bool) Status {
	var st Status

	if bar.Volume < d.SuspendVolumeThreshold {
		st.IsSuspended = true
	}

	if !bar.Consistent() {
		st.IsAbnormal = true
		st.AbnormalReason = "inconsistent OHLC values"
	}

	if prev != nil && prev.Close > 0 {
		change := math.Abs(bar.Close-prev.Close) / prev.Close
		if change > d.AbnormalChangeRatio {
			st.IsAbnormal = true
			st.AbnormalReason = fmt.Sprintf("close-to-close change %.1f%% exceeds %.0f%%",
				change*100, d.AbnormalChangeRatio*100)
		}

		up, down := LimitPrices(prev.Close, symbol, isST)
		if up > 0 && math.Abs(bar.Close-up)/up <= d.LimitTolerance {
			st.IsLimitUp = true
		}
		if down > 0 && math.Abs(bar.Close-down)/down <= d.LimitTolerance {
			st.IsLimitDown = true
		}
	}

	return st
}

// DetectSeries classifies every bar of a series in order, tracking the running
// consecutive-suspension counter across bars.
func (d *Detector) DetectSeries(bars []domain.Bar, symbol string, isST bool) []Status {
	statuses := make([]Status, len(bars))
	days := 0
	for i := range bars {
		var prev *domain.Bar
		if i > 0 {
			prev = &bars[i-1]
		}
		st := d.Detect(bars[i], prev, symbol, isST)
		if st.IsSuspended {
			days++
		} else {
			days = 0
		}
		st.SuspensionDays = days
		statuses[i] = st
	}
	return statuses
}

// FindNextTradableDay scans forward from fromIndex for the first bar that is
// neither suspended nor abnormal, looking at most maxLookAhead bars ahead.
// It returns -1 when no tradable bar is found.
func FindNextTradableDay(statuses []Status, fromIndex, maxLookAhead int) int {
	if maxLookAhead <= 0 {
		maxLookAhead = 30
	}
	for i := fromIndex; i < len(statuses) && i < fromIndex+maxLookAhead; i++ {
		if !statuses[i].IsSuspended && !statuses[i].IsAbnormal {
			return i
		}
	}
	return -1
}

// ValidationReport aggregates data-quality findings over a bar series. Issues
// are non-fatal; IsValid is false only when the series is unusable.
type ValidationReport struct {
	IsValid        bool
	Issues         []string
	ValidCount     int
	SuspendedCount int
	AbnormalCount  int
}

// ValidateKlineData runs the detector over a series and reports aggregate
// quality findings: suspension and abnormality counts, an issue when more
// than 30% of bars are suspended, and an issue for any gap between adjacent
// bars exceeding 10 calendar days.
func (d *Detector) ValidateKlineData(bars []domain.Bar, symbol string, isST bool) ValidationReport {
	report := ValidationReport{}
	if len(bars) == 0 {
		report.Issues = append(report.Issues, "empty bar series")
		return report
	}
	report.IsValid = true

	statuses := d.DetectSeries(bars, symbol, isST)
	for i, st := range statuses {
		// A bar can be both suspended and abnormal; count each flag on its
		// own so neither masks the other.
		if st.IsSuspended {
			report.SuspendedCount++
		}
		if st.IsAbnormal {
			report.AbnormalCount++
			report.Issues = append(report.Issues,
				fmt.Sprintf("bar %d (%s): %s", i, bars[i].Timestamp.Format("2006-01-02"), st.AbnormalReason))
		}
		if !st.IsSuspended && !st.IsAbnormal {
			report.ValidCount++
		}
	}

	if ratio := float64(report.SuspendedCount) / float64(len(bars)); ratio > 0.3 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("suspension ratio %.0f%% exceeds 30%%", ratio*100))
	}

	for i := 1; i < len(bars); i++ {
		gap := bars[i].Timestamp.Sub(bars[i-1].Timestamp)
		if gap > 10*24*time.Hour {
			report.Issues = append(report.Issues,
				fmt.Sprintf("gap of %.0f days between bars %d and %d", gap.Hours()/24, i-1, i))
		}
	}

	return report
}
