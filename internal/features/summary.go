package features

import (
	"gonum.org/v1/gonum/stat"

	"github.com/mbd888/ewarisk/internal/txlog"
)

// Epsilon keeps the ratio features finite on empty denominators. Changing it
// changes feature values, so it is part of the contract calibration.
const Epsilon = 1e-3

// BalanceTrendWindow is the number of records averaged at each end of the
// history by BalanceTrend.
const BalanceTrendWindow = 30

// Summary holds the whole-window behavioral aggregates.
type Summary struct {
	IncomeExpenseRatio float64
	NecessitySpend     float64
	DiscretionarySpend float64
	BalanceTrend       Optional
	EWACount           int
	EWATotal           float64
	RepaymentRate      float64
	FinalBalance       Optional
}

// IncomeExpenseRatio is total deposits over total spend plus Epsilon.
func IncomeExpenseRatio(records []txlog.TransactionRecord) float64 {
	var deposits, spend float64
	for _, r := range records {
		deposits += r.Deposit
		spend += r.Spend
	}
	return deposits / (spend + Epsilon)
}

// CategorySpend partitions total spend by category.
func CategorySpend(records []txlog.TransactionRecord) (necessity, discretionary float64) {
	for _, r := range records {
		switch r.Category {
		case txlog.CategoryNecessity:
			necessity += r.Spend
		case txlog.CategoryDiscretionary:
			discretionary += r.Spend
		}
	}
	return necessity, discretionary
}

// BalanceTrend is the mean balance of the last BalanceTrendWindow records
// minus the mean of the first BalanceTrendWindow. It is unavailable unless
// the two windows are disjoint.
func BalanceTrend(records []txlog.TransactionRecord) Optional {
	k := BalanceTrendWindow
	if len(records) < 2*k {
		return None()
	}
	head := make([]float64, k)
	tail := make([]float64, k)
	for i := 0; i < k; i++ {
		head[i] = records[i].Balance
		tail[i] = records[len(records)-k+i].Balance
	}
	return Some(stat.Mean(tail, nil) - stat.Mean(head, nil))
}

// EWAUsage counts EWA advances and sums their amounts.
func EWAUsage(records []txlog.TransactionRecord) (count int, total float64) {
	for _, r := range records {
		if r.EWAUsed {
			count++
			total += r.EWAAmount
		}
	}
	return count, total
}

// RepaymentRate is total repaid over total advanced plus Epsilon.
func RepaymentRate(records []txlog.TransactionRecord) float64 {
	var repaid, advanced float64
	for _, r := range records {
		repaid += r.Repayment
		advanced += r.EWAAmount
	}
	return repaid / (advanced + Epsilon)
}

// FinalBalance is the balance of the last record.
func FinalBalance(records []txlog.TransactionRecord) Optional {
	if len(records) == 0 {
		return None()
	}
	return Some(records[len(records)-1].Balance)
}

// Summarize computes every summary in a single pass over the records. The
// results equal the individual reductions.
func Summarize(records []txlog.TransactionRecord) Summary {
	var s Summary
	var deposits, spend, repaid float64
	for _, r := range records {
		deposits += r.Deposit
		spend += r.Spend
		repaid += r.Repayment
		switch r.Category {
		case txlog.CategoryNecessity:
			s.NecessitySpend += r.Spend
		case txlog.CategoryDiscretionary:
			s.DiscretionarySpend += r.Spend
		}
		if r.EWAUsed {
			s.EWACount++
			s.EWATotal += r.EWAAmount
		}
	}
	s.IncomeExpenseRatio = deposits / (spend + Epsilon)
	s.RepaymentRate = repaid / (s.EWATotal + Epsilon)
	s.BalanceTrend = BalanceTrend(records)
	s.FinalBalance = FinalBalance(records)
	return s
}
