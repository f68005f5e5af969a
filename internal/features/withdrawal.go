package features

import (
	"time"

	"github.com/mbd888/ewarisk/internal/txlog"
)

// WithdrawalSummary describes an employee's EWA advances up to a reference
// day.
type WithdrawalSummary struct {
	Last30d        int
	Last90d        int
	AvgAmount      float64
	AvgPctOfSalary float64
	LastDaysAgo    Optional
}

// Withdrawals summarizes the advances dated strictly before asOf. Counts
// include advances with asOf-N days <= date < asOf. The average amount is 0
// when there were no advances, and LastDaysAgo is unavailable.
func Withdrawals(records []txlog.TransactionRecord, asOf time.Time, salary float64) WithdrawalSummary {
	asOf = txlog.Truncate(asOf)
	from30 := asOf.AddDate(0, 0, -30)
	from90 := asOf.AddDate(0, 0, -90)

	var s WithdrawalSummary
	var uses int
	var total float64
	var last time.Time
	for _, r := range records {
		if !r.EWAUsed || !r.Date.Before(asOf) {
			continue
		}
		uses++
		total += r.EWAAmount
		if r.Date.After(last) {
			last = r.Date
		}
		if !r.Date.Before(from30) {
			s.Last30d++
		}
		if !r.Date.Before(from90) {
			s.Last90d++
		}
	}

	if uses > 0 {
		s.AvgAmount = total / float64(uses)
		s.LastDaysAgo = Some(float64(daysBetween(last, asOf)))
	}
	if salary > 0 {
		s.AvgPctOfSalary = s.AvgAmount / salary
	}
	return s
}
