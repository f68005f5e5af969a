package contract

import (
	"fmt"
	"sort"
)

// Contract versions. The two versions carry different labels and were never
// reconciled upstream; they are kept side by side rather than merged.
const (
	// WithdrawalV1 scores from profile attributes plus EWA withdrawal
	// summaries; its label is the next-pay-cycle request flag.
	WithdrawalV1 = "withdrawal-v1"
	// BehavioralV2 scores from profile attributes plus rolling spend, pay
	// cycle and whole-history behavioral summaries; its label is EWA usage
	// in the next 15 days.
	BehavioralV2 = "behavioral-v2"
)

// Label column names.
const (
	LabelRequestNextCycle = "label_request_next_cycle"
	LabelEWANext15        = "ewa_next15"
)

// Known categorical vocabularies.
var (
	Departments = []string{"sales", "ops", "engineering", "hr", "support"}
	JobLevels   = []string{"junior", "mid", "senior"}
)

type fieldOpt func(*Field)

func bound(v float64) *float64 { return &v }

func nonNegative() fieldOpt { return func(f *Field) { f.Min = bound(0) } }

func positive() fieldOpt {
	return func(f *Field) { f.Min = bound(0); f.MinExclusive = true }
}

func between(lo, hi float64) fieldOpt {
	return func(f *Field) { f.Min = bound(lo); f.Max = bound(hi) }
}

func integer() fieldOpt { return func(f *Field) { f.Integer = true } }

func nullable() fieldOpt { return func(f *Field) { f.Nullable = true } }

func flag() fieldOpt {
	return func(f *Field) { f.Integer = true; f.Min = bound(0); f.Max = bound(1) }
}

func numeric(name, desc string, opts ...fieldOpt) Field {
	f := Field{Name: name, Kind: KindNumeric, Description: desc}
	for _, o := range opts {
		o(&f)
	}
	return f
}

func categorical(name, desc string, vocab []string) Field {
	return Field{
		Name:         name,
		Kind:         KindCategorical,
		Vocabulary:   vocab,
		AllowUnknown: true,
		Description:  desc,
	}
}

var registry = map[string]*Contract{
	WithdrawalV1: MustNew(WithdrawalV1, LabelRequestNextCycle,
		numeric("salary_monthly", "monthly salary", positive()),
		numeric("tenure_days", "days since hire", nonNegative(), integer()),
		numeric("num_withdrawals_last_30d", "EWA advances in the trailing 30 days", nonNegative(), integer()),
		numeric("num_withdrawals_last_90d", "EWA advances in the trailing 90 days", nonNegative(), integer()),
		numeric("avg_withdraw_amount", "mean EWA advance amount", nonNegative()),
		numeric("avg_withdraw_pct_of_salary", "mean advance as a fraction of monthly salary", nonNegative()),
		numeric("last_withdraw_days_ago", "days since the latest advance; null if none", nonNegative(), integer(), nullable()),
		numeric("savings_balance", "savings balance", nonNegative()),
		numeric("other_loans", "1 if the employee has other active loans", flag()),
		categorical("department", "department", Departments),
		categorical("job_level", "job level", JobLevels),
	),
	BehavioralV2: MustNew(BehavioralV2, LabelEWANext15,
		categorical("department", "department", Departments),
		categorical("job_level", "job level", JobLevels),
		numeric("salary_monthly", "monthly salary", positive()),
		numeric("tenure_days", "days since hire", nonNegative(), integer()),
		numeric("savings_balance", "savings balance", nonNegative()),
		numeric("other_loans", "1 if the employee has other active loans", flag()),
		numeric("spend_3d_avg", "mean spend over the last 3 records", nonNegative(), nullable()),
		numeric("spend_7d_avg", "mean spend over the last 7 records", nonNegative()),
		numeric("spend_30d_avg", "mean spend over the last 30 records", nonNegative(), nullable()),
		numeric("spend_velocity", "mean day-over-day spend change over the trailing 7-day window", nullable()),
		numeric("days_to_payday", "calendar days to the nearest payday anchor", between(0, 7), integer()),
		numeric("is_month_boundary", "1 on the last day of a month", flag()),
		numeric("income_expense_ratio", "total deposits / (total spend + 1e-3)", nonNegative()),
		numeric("spend_volatility", "sample standard deviation of spend", nonNegative(), nullable()),
		numeric("necessity_spend", "total necessity spend", nonNegative()),
		numeric("discretionary_spend", "total discretionary spend", nonNegative()),
		numeric("balance_trend", "mean balance of the last 30 records minus the first 30", nullable()),
		numeric("ewa_count", "number of EWA advances", nonNegative(), integer()),
		numeric("ewa_total", "total EWA amount", nonNegative()),
		numeric("repayment_rate", "total repaid / (total EWA amount + 1e-3)", nonNegative()),
		numeric("final_balance", "balance at the end of the feature window"),
	),
}

// Lookup returns the contract for a version.
func Lookup(version string) (*Contract, error) {
	c, ok := registry[version]
	if !ok {
		return nil, fmt.Errorf("unknown contract version %q (known: %v)", version, Versions())
	}
	return c, nil
}

// Versions lists the registered contract versions.
func Versions() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
