// Package features derives model features from an employee's transaction
// history: rolling spend windows, pay-cycle position, whole-window behavioral
// summaries, EWA withdrawal summaries and the training label.
//
// Every function here is a pure reduction over records strictly before a
// cutoff date. Nothing reads the clock or package state, so the same history
// and cutoff always produce the same features.
package features

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mbd888/ewarisk/internal/txlog"
)

// SpendWindows are the rolling-mean widths, in records.
var SpendWindows = []int{3, 7, 30}

// VelocityWindow is the number of day-over-day differences averaged by
// SpendVelocity.
const VelocityWindow = 7

// Rolling holds the windowed spend features.
type Rolling struct {
	Spend3d    Optional
	Spend7d    Optional
	Spend30d   Optional
	Velocity   Optional
	Volatility Optional
}

func spends(records []txlog.TransactionRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Spend
	}
	return out
}

// SpendMean is the mean spend over the last w records. A window with fewer
// than w records is unavailable rather than averaged over what exists.
func SpendMean(records []txlog.TransactionRecord, w int) Optional {
	if w <= 0 || len(records) < w {
		return None()
	}
	return Some(stat.Mean(spends(records[len(records)-w:]), nil))
}

// SpendVelocity is the mean day-over-day spend change over the trailing
// window: VelocityWindow differences taken from the last VelocityWindow+1
// records.
func SpendVelocity(records []txlog.TransactionRecord) Optional {
	if len(records) < VelocityWindow+1 {
		return None()
	}
	tail := records[len(records)-VelocityWindow-1:]
	diffs := make([]float64, VelocityWindow)
	for i := 1; i < len(tail); i++ {
		diffs[i-1] = tail[i].Spend - tail[i-1].Spend
	}
	return Some(stat.Mean(diffs, nil))
}

// SpendVolatility is the sample standard deviation of spend over every
// record in the window.
func SpendVolatility(records []txlog.TransactionRecord) Optional {
	if len(records) < 2 {
		return None()
	}
	return Some(stat.StdDev(spends(records), nil))
}

// Aggregate computes the rolling features from records before cutoff.
func Aggregate(h txlog.History, cutoff time.Time) Rolling {
	recs := h.Before(cutoff).Records()
	return Rolling{
		Spend3d:    SpendMean(recs, SpendWindows[0]),
		Spend7d:    SpendMean(recs, SpendWindows[1]),
		Spend30d:   SpendMean(recs, SpendWindows[2]),
		Velocity:   SpendVelocity(recs),
		Volatility: SpendVolatility(recs),
	}
}
