package features

import (
	"time"

	"github.com/mbd888/ewarisk/internal/txlog"
)

// Payday anchors: the 1st and the 15th of every month.
const (
	firstPayday  = 1
	secondPayday = 15
)

// MaxPaydayDistance caps DaysToPayday at half of the nominal half-cycle.
const MaxPaydayDistance = 7

// Cycle holds the pay-cycle and calendar features for one day.
type Cycle struct {
	DaysToPayday    int
	IsMonthBoundary bool
}

func daysBetween(from, to time.Time) int {
	return int(txlog.Truncate(to).Sub(txlog.Truncate(from)) / txlog.Day)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// DaysToPayday is the calendar distance to the nearest payday anchor, looking
// both backwards and forwards, capped at MaxPaydayDistance.
func DaysToPayday(t time.Time) int {
	t = txlog.Truncate(t)
	y, m, _ := t.Date()
	best := MaxPaydayDistance
	for _, anchor := range []time.Time{
		time.Date(y, m, firstPayday, 0, 0, 0, 0, time.UTC),
		time.Date(y, m, secondPayday, 0, 0, 0, 0, time.UTC),
		time.Date(y, m+1, firstPayday, 0, 0, 0, 0, time.UTC),
	} {
		if d := absInt(daysBetween(t, anchor)); d < best {
			best = d
		}
	}
	return best
}

// IsMonthBoundary reports whether t is the last calendar day of its month.
func IsMonthBoundary(t time.Time) bool {
	return txlog.Truncate(t).AddDate(0, 0, 1).Day() == 1
}

// PrevPayday returns the latest payday on or before t.
func PrevPayday(t time.Time) time.Time {
	t = txlog.Truncate(t)
	y, m, d := t.Date()
	if d >= secondPayday {
		return time.Date(y, m, secondPayday, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(y, m, firstPayday, 0, 0, 0, 0, time.UTC)
}

// NextPayday returns the earliest payday strictly after t.
func NextPayday(t time.Time) time.Time {
	t = txlog.Truncate(t)
	y, m, d := t.Date()
	if d < secondPayday {
		return time.Date(y, m, secondPayday, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(y, m+1, firstPayday, 0, 0, 0, 0, time.UTC)
}

// ObservedThrough is the last calendar day whose data may inform features
// derived for cutoff.
func ObservedThrough(cutoff time.Time) time.Time {
	return txlog.Truncate(cutoff).AddDate(0, 0, -1)
}

// EncodeCycle computes the cycle features for one day.
func EncodeCycle(t time.Time) Cycle {
	return Cycle{
		DaysToPayday:    DaysToPayday(t),
		IsMonthBoundary: IsMonthBoundary(t),
	}
}
