package txlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/ewarisk/internal/validation"
)

func day(n int) time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func rec(id string, n int, spend float64) TransactionRecord {
	return TransactionRecord{
		EmployeeID: id,
		Date:       day(n),
		Spend:      spend,
		Category:   CategoryNecessity,
		Balance:    1000 - spend,
	}
}

func TestTransactionRecord_Validate(t *testing.T) {
	good := rec("E1", 0, 100)
	require.NoError(t, good.Validate())

	bad := good
	bad.Spend = -5
	bad.Category = "luxury"
	bad.EWAUsed = true

	err := bad.Validate()
	require.Error(t, err)

	var verrs validation.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.ElementsMatch(t, []string{"spend", "category", "ewa_amount"}, verrs.Fields())
}

func TestEmployeeProfile_Validate(t *testing.T) {
	p := EmployeeProfile{EmployeeID: "E1", SalaryMonthly: 30000, TenureDays: 10, SavingsBalance: 0}
	require.NoError(t, p.Validate())

	p.SalaryMonthly = 0
	p.TenureDays = -1
	var verrs validation.ValidationErrors
	require.True(t, errors.As(p.Validate(), &verrs))
	assert.Equal(t, []string{"salary_monthly", "tenure_days"}, verrs.Fields())
}

func TestNewHistory_SortsAndTruncates(t *testing.T) {
	r2 := rec("E1", 2, 30)
	r2.Date = r2.Date.Add(13 * time.Hour)

	h, err := NewHistory("E1", []TransactionRecord{r2, rec("E1", 0, 10), rec("E1", 1, 20)})
	require.NoError(t, err)

	require.Equal(t, 3, h.Len())
	assert.Equal(t, day(0), h.FirstDate())
	assert.Equal(t, day(2), h.LastDate())
	assert.Equal(t, []float64{10, 20, 30}, []float64{h.Records()[0].Spend, h.Records()[1].Spend, h.Records()[2].Spend})
}

func TestNewHistory_RejectsForeignAndDuplicate(t *testing.T) {
	_, err := NewHistory("E1", []TransactionRecord{rec("E2", 0, 10)})
	assert.ErrorContains(t, err, "belongs to")

	_, err = NewHistory("E1", []TransactionRecord{rec("E1", 0, 10), rec("E1", 0, 11)})
	assert.ErrorContains(t, err, "duplicate")
}

func TestNewHistory_DoesNotAliasInput(t *testing.T) {
	in := []TransactionRecord{rec("E1", 1, 20), rec("E1", 0, 10)}
	h, err := NewHistory("E1", in)
	require.NoError(t, err)

	in[0].Spend = 999
	assert.Equal(t, 20.0, h.Records()[1].Spend)
}

func TestHistory_Windows(t *testing.T) {
	var recs []TransactionRecord
	for i := 0; i < 10; i++ {
		if i == 4 {
			continue // a missing day
		}
		recs = append(recs, rec("E1", i, float64(i)))
	}
	h, err := NewHistory("E1", recs)
	require.NoError(t, err)

	before := h.Before(day(5))
	assert.Equal(t, 4, before.Len())
	assert.Equal(t, day(3), before.LastDate())

	assert.Equal(t, 0, h.Before(day(0)).Len())
	assert.Equal(t, 9, h.Before(day(100)).Len())

	between := h.Between(day(3), day(7))
	assert.Equal(t, 3, between.Len())
	assert.Equal(t, day(3), between.FirstDate())
	assert.Equal(t, day(6), between.LastDate())
	assert.Equal(t, 0, h.Between(day(7), day(3)).Len())

	last := h.Last(3)
	require.Len(t, last, 3)
	assert.Equal(t, 7.0, last[0].Spend)
	assert.Len(t, h.Last(50), 9)
	assert.Empty(t, h.Last(0))
}

func TestHistory_BeforeIsCapacityBounded(t *testing.T) {
	h, err := NewHistory("E1", []TransactionRecord{rec("E1", 0, 1), rec("E1", 1, 2), rec("E1", 2, 3)})
	require.NoError(t, err)

	prefix := h.Before(day(1)).Records()
	_ = append(prefix, rec("E1", 9, 500))
	assert.Equal(t, 2.0, h.Records()[1].Spend)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.PutProfiles(ctx, []EmployeeProfile{
		{EmployeeID: "E2", Department: "ops", JobLevel: "mid", SalaryMonthly: 20000},
		{EmployeeID: "E1", Department: "hr", JobLevel: "junior", SalaryMonthly: 15000},
	}))
	require.NoError(t, s.AppendTransactions(ctx, []TransactionRecord{rec("E1", 1, 20), rec("E1", 0, 10)}))

	profiles, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "E1", profiles[0].EmployeeID)

	p, err := s.Profile(ctx, "E2")
	require.NoError(t, err)
	assert.Equal(t, "ops", p.Department)

	h, err := s.History(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, day(0), h.FirstDate())

	empty, err := s.History(ctx, "E2")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	_, err = s.History(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Profile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AppendOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AppendTransactions(ctx, []TransactionRecord{rec("E1", 0, 10)}))

	err := s.AppendTransactions(ctx, []TransactionRecord{rec("E1", 1, 20), rec("E1", 0, 99)})
	assert.ErrorContains(t, err, "already recorded")

	h, err := s.History(ctx, "E1")
	require.NoError(t, err)
	require.Equal(t, 1, h.Len(), "a rejected batch must not be partially applied")
	assert.Equal(t, 10.0, h.Records()[0].Spend)
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.Error(t, s.PutProfiles(ctx, []EmployeeProfile{{EmployeeID: "E1", SalaryMonthly: -1}}))

	bad := rec("E1", 0, 10)
	bad.Repayment = -1
	assert.Error(t, s.AppendTransactions(ctx, []TransactionRecord{bad}))
}
