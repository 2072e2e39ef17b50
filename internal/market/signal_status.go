package market

import (
	"fmt"

	"atrader/internal/domain"
)

// SignalStatus describes whether a signalled trade could actually be executed
// against the market conditions at its entry and exit bars.
type SignalStatus string

const (
	SignalCompleted  SignalStatus = "completed"
	SignalCannotBuy  SignalStatus = "cannot_buy"
	SignalCannotSell SignalStatus = "cannot_sell"
	SignalHolding    SignalStatus = "holding"
	SignalSuspended  SignalStatus = "suspended"
)

// SignalStatusInfo carries the resolved status plus a human-readable note and
// the exit bar's suspension streak when relevant.
type SignalStatusInfo struct {
	Status         SignalStatus
	Note           string
	SuspensionDays int
}

// DetermineSignalStatus resolves the execution status of one signalled trade:
//
//   - A buy blocked by limit-up or suspension at the entry bar cannot open.
//   - A sell blocked by limit-down or suspension at the entry bar cannot open.
//   - When the holding period extends past the available bars the trade is
//     still open ("holding").
//   - A suspended exit bar delays the exit; the suspension streak is reported.
//   - Otherwise the trade completes, with a note when the exit happens to land
//     on the opposite price limit (the fill still happens at that bar's close).
func DetermineSignalStatus(entry, exit Status, signalType domain.SignalAction, hasEnoughData bool) SignalStatusInfo {
	if signalType == domain.ActionBuy && (entry.IsLimitUp || entry.IsSuspended) {
		return SignalStatusInfo{
			Status: SignalCannotBuy,
			Note:   entryBlockNote(entry, "buy"),
		}
	}
	if signalType == domain.ActionSell && (entry.IsLimitDown || entry.IsSuspended) {
		return SignalStatusInfo{
			Status: SignalCannotSell,
			Note:   entryBlockNote(entry, "sell"),
		}
	}

	if !hasEnoughData {
		return SignalStatusInfo{
			Status: SignalHolding,
			Note:   "holding period extends past available bars",
		}
	}

	if exit.IsSuspended {
		return SignalStatusInfo{
			Status:         SignalSuspended,
			Note:           fmt.Sprintf("exit delayed by suspension (%d day streak)", exit.SuspensionDays),
			SuspensionDays: exit.SuspensionDays,
		}
	}

	info := SignalStatusInfo{Status: SignalCompleted}
	if signalType == domain.ActionBuy && exit.IsLimitDown {
		info.Note = "exit executed at a limit-down close"
	}
	if signalType == domain.ActionSell && exit.IsLimitUp {
		info.Note = "exit executed at a limit-up close"
	}
	return info
}

func entryBlockNote(st Status, side string) string {
	switch {
	case st.IsSuspended:
		return side + " blocked: trading suspended at entry"
	case st.IsLimitUp:
		return side + " blocked: entry bar at limit-up"
	default:
		return side + " blocked: entry bar at limit-down"
	}
}
