package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mbd888/ewarisk/internal/txlog"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// records builds n consecutive daily records starting at start. edit may
// adjust each record; it sees the record index.
func records(id string, start time.Time, n int, edit func(i int, r *txlog.TransactionRecord)) []txlog.TransactionRecord {
	out := make([]txlog.TransactionRecord, n)
	for i := range out {
		out[i] = txlog.TransactionRecord{
			EmployeeID: id,
			Date:       start.AddDate(0, 0, i),
			Spend:      100,
			Category:   txlog.CategoryNecessity,
			Balance:    1000,
		}
		if edit != nil {
			edit(i, &out[i])
		}
	}
	return out
}

func history(t *testing.T, id string, recs []txlog.TransactionRecord) txlog.History {
	t.Helper()
	h, err := txlog.NewHistory(id, recs)
	require.NoError(t, err)
	return h
}

func useEWA(r *txlog.TransactionRecord, amount float64) {
	r.EWAUsed = true
	r.EWAAmount = amount
}

func withSpend(spend ...float64) []txlog.TransactionRecord {
	return records("e1", day(2024, 1, 1), len(spend), func(i int, r *txlog.TransactionRecord) {
		r.Spend = spend[i]
	})
}
