// Package ledger derives stock positions from movement history. The ledger is
// the source of truth: a product's quantity at any point in time is the
// immutable baseline plus the sum of signed movement deltas, never a counter
// mutated in place.
package ledger

import "time"

// DayWindow expands calendar days into an inclusive timestamp window:
// start at 00:00:00 of the first day, end at the last nanosecond of the last.
func DayWindow(start, end time.Time) (time.Time, time.Time) {
	if !start.IsZero() {
		y, m, d := start.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, start.Location())
	}
	if !end.IsZero() {
		y, m, d := end.Date()
		end = time.Date(y, m, d, 0, 0, 0, 0, end.Location()).Add(24*time.Hour - time.Nanosecond)
	}
	return start, end
}

// Compute replays movements against the baseline and returns the windowed
// stock summary. A zero start opens the window at time zero; a zero end
// extends it to the end of history. Movements dated exactly on the window
// start count as within the window.
func Compute(baseline float64, movements []Movement, start, end time.Time) ProductStock {
	stock := ProductStock{InitialOpening: baseline}

	opening := baseline
	live := baseline
	for _, mv := range movements {
		delta := signedDelta(mv)
		live += delta
		if !start.IsZero() && mv.At.Before(start) {
			opening += delta
			continue
		}
		if !end.IsZero() && mv.At.After(end) {
			continue
		}
		switch mv.Kind {
		case MovementInward:
			stock.Inward += mv.Qty
		case MovementOutward:
			stock.Outward += mv.Qty
		case MovementAdjustment:
			stock.Adjustment += mv.Qty
		}
	}

	stock.MonthOpening = opening
	stock.ClosingStock = opening + stock.Inward - stock.Outward + stock.Adjustment
	stock.LiveStock = live
	return stock
}

// Live returns the full-history quantity: baseline plus every movement delta.
func Live(baseline float64, movements []Movement) float64 {
	live := baseline
	for _, mv := range movements {
		live += signedDelta(mv)
	}
	return live
}

func signedDelta(mv Movement) float64 {
	switch mv.Kind {
	case MovementOutward:
		return -mv.Qty
	default:
		return mv.Qty
	}
}
