// Package txlog models the raw per-employee daily transaction log and the
// static employee profile the feature pipeline reads from.
//
// Records are append-only facts: one per employee per calendar day. A History
// is the ordered arena of one employee's records, sorted by date and indexed
// by position; every windowed feature is a pure reduction over a sub-slice of
// it.
package txlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mbd888/ewarisk/internal/validation"
)

// Category partitions spending.
type Category string

const (
	CategoryNecessity     Category = "necessity"
	CategoryDiscretionary Category = "discretionary"
)

// Day is one calendar day.
const Day = 24 * time.Hour

// ErrNotFound is returned by stores for unknown employees.
var ErrNotFound = errors.New("txlog: employee not found")

// TransactionRecord is one employee's activity for one calendar day.
type TransactionRecord struct {
	EmployeeID string    `json:"employee_id"`
	Date       time.Time `json:"date"`
	Deposit    float64   `json:"deposit"`
	Spend      float64   `json:"spend"`
	Category   Category  `json:"category"`
	Balance    float64   `json:"balance"`
	EWAUsed    bool      `json:"ewa_used"`
	EWAAmount  float64   `json:"ewa_amount"`
	Repayment  float64   `json:"repayment"`
}

// Validate checks the record against its declared domains.
func (r TransactionRecord) Validate() error {
	errs := validation.Validate(
		validation.Required("employee_id", r.EmployeeID),
		validation.Check(!r.Date.IsZero(), "date", "is required"),
		validation.Finite("deposit", r.Deposit),
		validation.NonNegative("deposit", r.Deposit),
		validation.Finite("spend", r.Spend),
		validation.NonNegative("spend", r.Spend),
		validation.OneOf("category", string(r.Category), string(CategoryNecessity), string(CategoryDiscretionary)),
		validation.Finite("balance", r.Balance),
		validation.Finite("ewa_amount", r.EWAAmount),
		validation.NonNegative("ewa_amount", r.EWAAmount),
		validation.Check(r.EWAUsed == (r.EWAAmount > 0), "ewa_amount", "must be positive iff ewa_used is set"),
		validation.Finite("repayment", r.Repayment),
		validation.NonNegative("repayment", r.Repayment),
	)
	return errs.Err()
}

// EmployeeProfile holds static attributes, immutable for an aggregation window.
type EmployeeProfile struct {
	EmployeeID     string  `json:"employee_id"`
	Department     string  `json:"department"`
	JobLevel       string  `json:"job_level"`
	SalaryMonthly  float64 `json:"salary_monthly"`
	TenureDays     int     `json:"tenure_days"`
	SavingsBalance float64 `json:"savings_balance"`
	OtherLoans     bool    `json:"other_loans"`
}

// Validate checks the profile against its declared domains.
func (p EmployeeProfile) Validate() error {
	errs := validation.Validate(
		validation.Required("employee_id", p.EmployeeID),
		validation.MaxLength("employee_id", p.EmployeeID, validation.MaxIDLength),
		validation.Finite("salary_monthly", p.SalaryMonthly),
		validation.Positive("salary_monthly", p.SalaryMonthly),
		validation.NonNegative("tenure_days", float64(p.TenureDays)),
		validation.Finite("savings_balance", p.SavingsBalance),
		validation.NonNegative("savings_balance", p.SavingsBalance),
	)
	return errs.Err()
}

// Truncate normalizes t to midnight UTC of its calendar day.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// History is the date-ordered record sequence of a single employee.
type History struct {
	employeeID string
	records    []TransactionRecord
}

// NewHistory copies, validates and sorts records. Every record must belong to
// employeeID and dates must be unique.
func NewHistory(employeeID string, records []TransactionRecord) (History, error) {
	recs := make([]TransactionRecord, len(records))
	copy(recs, records)

	for i := range recs {
		if recs[i].EmployeeID != employeeID {
			return History{}, fmt.Errorf("record %d belongs to %q, not %q", i, recs[i].EmployeeID, employeeID)
		}
		if err := recs[i].Validate(); err != nil {
			return History{}, fmt.Errorf("record %d (%s): %w", i, recs[i].Date.Format(time.DateOnly), err)
		}
		recs[i].Date = Truncate(recs[i].Date)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	for i := 1; i < len(recs); i++ {
		if recs[i].Date.Equal(recs[i-1].Date) {
			return History{}, fmt.Errorf("duplicate record for %s on %s", employeeID, recs[i].Date.Format(time.DateOnly))
		}
	}
	return History{employeeID: employeeID, records: recs}, nil
}

// EmployeeID returns the owner of the history.
func (h History) EmployeeID() string { return h.employeeID }

// Len returns the number of records.
func (h History) Len() int { return len(h.records) }

// Records returns the ordered records. The slice must be treated as read-only.
func (h History) Records() []TransactionRecord { return h.records }

// FirstDate returns the date of the oldest record, or the zero time.
func (h History) FirstDate() time.Time {
	if len(h.records) == 0 {
		return time.Time{}
	}
	return h.records[0].Date
}

// LastDate returns the date of the newest record, or the zero time.
func (h History) LastDate() time.Time {
	if len(h.records) == 0 {
		return time.Time{}
	}
	return h.records[len(h.records)-1].Date
}

// index returns the position of the first record dated on or after t.
func (h History) index(t time.Time) int {
	return sort.Search(len(h.records), func(i int) bool {
		return !h.records[i].Date.Before(t)
	})
}

// Before returns the prefix of records dated strictly before cutoff.
func (h History) Before(cutoff time.Time) History {
	i := h.index(cutoff)
	return History{employeeID: h.employeeID, records: h.records[:i:i]}
}

// Between returns the records with from <= date < to.
func (h History) Between(from, to time.Time) History {
	lo, hi := h.index(from), h.index(to)
	if hi < lo {
		hi = lo
	}
	return History{employeeID: h.employeeID, records: h.records[lo:hi:hi]}
}

// Last returns the trailing n records, or all of them when fewer exist.
func (h History) Last(n int) []TransactionRecord {
	if n >= len(h.records) {
		return h.records
	}
	if n <= 0 {
		return nil
	}
	return h.records[len(h.records)-n:]
}

// Store is the profile and transaction store the offline pipeline reads from.
type Store interface {
	PutProfiles(ctx context.Context, profiles []EmployeeProfile) error
	AppendTransactions(ctx context.Context, records []TransactionRecord) error
	Profile(ctx context.Context, employeeID string) (*EmployeeProfile, error)
	ListProfiles(ctx context.Context) ([]EmployeeProfile, error)
	History(ctx context.Context, employeeID string) (History, error)
}
