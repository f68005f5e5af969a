package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/ewarisk/internal/txlog"
)

func summaryRecords() []txlog.TransactionRecord {
	return records("e1", day(2024, 1, 1), 4, func(i int, r *txlog.TransactionRecord) {
		switch i {
		case 0:
			r.Deposit = 1000
			r.Spend = 100
		case 1:
			r.Spend = 50
			r.Category = txlog.CategoryDiscretionary
			useEWA(r, 200)
		case 2:
			r.Spend = 25
			useEWA(r, 100)
		case 3:
			r.Spend = 0
			r.Repayment = 150
			r.Balance = -40
		}
	})
}

func TestIndividualSummaries(t *testing.T) {
	recs := summaryRecords()

	assert.InDelta(t, 1000/(175+Epsilon), IncomeExpenseRatio(recs), 1e-12)

	necessity, discretionary := CategorySpend(recs)
	assert.Equal(t, 125.0, necessity)
	assert.Equal(t, 50.0, discretionary)

	count, total := EWAUsage(recs)
	assert.Equal(t, 2, count)
	assert.Equal(t, 300.0, total)

	assert.InDelta(t, 150/(300+Epsilon), RepaymentRate(recs), 1e-12)

	final := FinalBalance(recs)
	require.True(t, final.Valid)
	assert.Equal(t, -40.0, final.Value)

	assert.False(t, BalanceTrend(recs).Valid)
}

func TestSummarize_MatchesIndividualReductions(t *testing.T) {
	recs := summaryRecords()
	s := Summarize(recs)

	necessity, discretionary := CategorySpend(recs)
	count, total := EWAUsage(recs)

	assert.Equal(t, IncomeExpenseRatio(recs), s.IncomeExpenseRatio)
	assert.Equal(t, necessity, s.NecessitySpend)
	assert.Equal(t, discretionary, s.DiscretionarySpend)
	assert.Equal(t, count, s.EWACount)
	assert.Equal(t, total, s.EWATotal)
	assert.Equal(t, RepaymentRate(recs), s.RepaymentRate)
	assert.Equal(t, FinalBalance(recs), s.FinalBalance)
	assert.Equal(t, BalanceTrend(recs), s.BalanceTrend)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0.0, s.IncomeExpenseRatio)
	assert.Equal(t, 0.0, s.RepaymentRate)
	assert.False(t, s.FinalBalance.Valid)
	assert.False(t, s.BalanceTrend.Valid)
}

func TestBalanceTrend(t *testing.T) {
	recs := records("e1", day(2024, 1, 1), 2*BalanceTrendWindow, func(i int, r *txlog.TransactionRecord) {
		r.Balance = float64(i)
	})
	got := BalanceTrend(recs)
	require.True(t, got.Valid)
	assert.InDelta(t, 30.0, got.Value, 1e-12)

	assert.False(t, BalanceTrend(recs[1:]).Valid, "overlapping windows are unavailable")

	falling := records("e1", day(2024, 1, 1), 90, func(i int, r *txlog.TransactionRecord) {
		r.Balance = 5000 - float64(i)*10
	})
	got = BalanceTrend(falling)
	require.True(t, got.Valid)
	assert.InDelta(t, -600.0, got.Value, 1e-9)
}

func TestWithdrawals(t *testing.T) {
	asOf := day(2024, 4, 1)
	recs := []txlog.TransactionRecord{
		{EmployeeID: "e1", Date: day(2024, 1, 1), EWAUsed: true, EWAAmount: 400},
		{EmployeeID: "e1", Date: day(2024, 1, 2), EWAUsed: true, EWAAmount: 200},
		{EmployeeID: "e1", Date: day(2024, 2, 10)},
		{EmployeeID: "e1", Date: day(2024, 3, 2), EWAUsed: true, EWAAmount: 300},
		{EmployeeID: "e1", Date: day(2024, 3, 31), EWAUsed: true, EWAAmount: 100},
		{EmployeeID: "e1", Date: day(2024, 4, 1), EWAUsed: true, EWAAmount: 1000},
	}

	got := Withdrawals(recs, asOf, 25000)

	assert.Equal(t, 2, got.Last30d)
	assert.Equal(t, 3, got.Last90d)
	assert.Equal(t, 250.0, got.AvgAmount)
	assert.InDelta(t, 0.01, got.AvgPctOfSalary, 1e-12)
	require.True(t, got.LastDaysAgo.Valid)
	assert.Equal(t, 1.0, got.LastDaysAgo.Value)
}

func TestWithdrawals_None(t *testing.T) {
	recs := records("e1", day(2024, 1, 1), 10, nil)
	got := Withdrawals(recs, day(2024, 1, 11), 25000)

	assert.Zero(t, got.Last30d)
	assert.Zero(t, got.Last90d)
	assert.Zero(t, got.AvgAmount)
	assert.Zero(t, got.AvgPctOfSalary)
	assert.False(t, got.LastDaysAgo.Valid)
}
