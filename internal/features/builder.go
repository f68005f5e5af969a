package features

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/txlog"
)

// derivation is the shared state for one employee at one cutoff.
type derivation struct {
	profile     txlog.EmployeeProfile
	rolling     Rolling
	cycle       Cycle
	summary     Summary
	withdrawals WithdrawalSummary
}

// source produces one named feature. need is the record count below which
// the value may be unavailable; it is reported in InsufficientHistoryError.
type source struct {
	need  int
	value func(d *derivation) contract.Value
}

func number(f func(d *derivation) float64) func(d *derivation) contract.Value {
	return func(d *derivation) contract.Value { return contract.Number(f(d)) }
}

func optional(f func(d *derivation) Optional) func(d *derivation) contract.Value {
	return func(d *derivation) contract.Value { return f(d).contractValue() }
}

// catalog maps every feature name any contract may declare to its source.
var catalog = map[string]source{
	"department": {value: func(d *derivation) contract.Value { return contract.Category(d.profile.Department) }},
	"job_level":  {value: func(d *derivation) contract.Value { return contract.Category(d.profile.JobLevel) }},
	"salary_monthly": {value: number(func(d *derivation) float64 {
		return d.profile.SalaryMonthly
	})},
	"tenure_days": {value: number(func(d *derivation) float64 {
		return float64(d.profile.TenureDays)
	})},
	"savings_balance": {value: number(func(d *derivation) float64 {
		return d.profile.SavingsBalance
	})},
	"other_loans": {value: func(d *derivation) contract.Value { return contract.Flag(d.profile.OtherLoans) }},

	"num_withdrawals_last_30d": {value: number(func(d *derivation) float64 {
		return float64(d.withdrawals.Last30d)
	})},
	"num_withdrawals_last_90d": {value: number(func(d *derivation) float64 {
		return float64(d.withdrawals.Last90d)
	})},
	"avg_withdraw_amount": {value: number(func(d *derivation) float64 {
		return d.withdrawals.AvgAmount
	})},
	"avg_withdraw_pct_of_salary": {value: number(func(d *derivation) float64 {
		return d.withdrawals.AvgPctOfSalary
	})},
	"last_withdraw_days_ago": {need: 1, value: optional(func(d *derivation) Optional {
		return d.withdrawals.LastDaysAgo
	})},

	"spend_3d_avg":  {need: SpendWindows[0], value: optional(func(d *derivation) Optional { return d.rolling.Spend3d })},
	"spend_7d_avg":  {need: SpendWindows[1], value: optional(func(d *derivation) Optional { return d.rolling.Spend7d })},
	"spend_30d_avg": {need: SpendWindows[2], value: optional(func(d *derivation) Optional { return d.rolling.Spend30d })},
	"spend_velocity": {need: VelocityWindow + 1, value: optional(func(d *derivation) Optional {
		return d.rolling.Velocity
	})},
	"spend_volatility": {need: 2, value: optional(func(d *derivation) Optional {
		return d.rolling.Volatility
	})},

	"days_to_payday": {value: number(func(d *derivation) float64 {
		return float64(d.cycle.DaysToPayday)
	})},
	"is_month_boundary": {value: func(d *derivation) contract.Value { return contract.Flag(d.cycle.IsMonthBoundary) }},

	"income_expense_ratio": {value: number(func(d *derivation) float64 { return d.summary.IncomeExpenseRatio })},
	"necessity_spend":      {value: number(func(d *derivation) float64 { return d.summary.NecessitySpend })},
	"discretionary_spend":  {value: number(func(d *derivation) float64 { return d.summary.DiscretionarySpend })},
	"balance_trend": {need: 2 * BalanceTrendWindow, value: optional(func(d *derivation) Optional {
		return d.summary.BalanceTrend
	})},
	"ewa_count":      {value: number(func(d *derivation) float64 { return float64(d.summary.EWACount) })},
	"ewa_total":      {value: number(func(d *derivation) float64 { return d.summary.EWATotal })},
	"repayment_rate": {value: number(func(d *derivation) float64 { return d.summary.RepaymentRate })},
	"final_balance": {need: 1, value: optional(func(d *derivation) Optional {
		return d.summary.FinalBalance
	})},
}

// Catalog lists every feature name the builder can derive.
func Catalog() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builder derives contract-conforming feature vectors from raw history.
// It is immutable after construction and safe for concurrent use.
type Builder struct {
	contract *contract.Contract
	sources  []source
}

// NewBuilder binds a source to every field of c. A field with no known
// source is a *contract.ContractMismatchError.
func NewBuilder(c *contract.Contract) (*Builder, error) {
	b := &Builder{contract: c, sources: make([]source, len(c.Fields))}
	var missing []string
	for i, f := range c.Fields {
		src, ok := catalog[f.Name]
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		b.sources[i] = src
	}
	if len(missing) > 0 {
		return nil, &contract.ContractMismatchError{
			Version: c.Version,
			Reason:  "no feature source for contract fields",
			Missing: missing,
		}
	}
	return b, nil
}

// Contract returns the contract the builder conforms to.
func (b *Builder) Contract() *contract.Contract { return b.contract }

// Derive computes the feature vector for one employee from the records
// dated strictly before cutoff. A required field that cannot be computed
// from that history is an *InsufficientHistoryError.
func (b *Builder) Derive(profile txlog.EmployeeProfile, h txlog.History, cutoff time.Time) (contract.FeatureVector, error) {
	if h.EmployeeID() != "" && h.EmployeeID() != profile.EmployeeID {
		return contract.FeatureVector{}, fmt.Errorf("history of %q does not belong to profile %q", h.EmployeeID(), profile.EmployeeID)
	}
	if err := profile.Validate(); err != nil {
		return contract.FeatureVector{}, fmt.Errorf("profile %s: %w", profile.EmployeeID, err)
	}

	cutoff = txlog.Truncate(cutoff)
	recs := h.Before(cutoff).Records()
	d := &derivation{
		profile:     profile,
		rolling:     Aggregate(h, cutoff),
		cycle:       EncodeCycle(ObservedThrough(cutoff)),
		summary:     Summarize(recs),
		withdrawals: Withdrawals(recs, cutoff, profile.SalaryMonthly),
	}

	named := make(map[string]contract.Value, len(b.sources))
	for i, f := range b.contract.Fields {
		src := b.sources[i]
		v := src.value(d)
		if v.Null && !f.Nullable {
			return contract.FeatureVector{}, &InsufficientHistoryError{
				EmployeeID: profile.EmployeeID,
				Field:      f.Name,
				Need:       src.need,
				Have:       len(recs),
			}
		}
		named[f.Name] = v
	}

	fv, err := b.contract.FromDerived(named)
	if err != nil {
		var mismatch *contract.ContractMismatchError
		if errors.As(err, &mismatch) {
			return contract.FeatureVector{}, err
		}
		return contract.FeatureVector{}, fmt.Errorf("employee %s: derived features out of domain: %w", profile.EmployeeID, err)
	}
	return fv, nil
}
