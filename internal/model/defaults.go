package model

import (
	"fmt"

	"github.com/mbd888/ewarisk/internal/contract"
)

type numericParams struct {
	mean, scale, weight, impute float64
}

// Built-in coefficients. Recent or large advances, low savings and other
// active loans push the score up; income, tenure and savings pull it down.
var (
	builtinIntercepts = map[string]float64{
		contract.WithdrawalV1: -1.2,
		contract.BehavioralV2: -1.0,
	}

	builtinNumeric = map[string]numericParams{
		"salary_monthly":             {27000, 10000, -0.4, 0},
		"tenure_days":                {300, 300, -0.2, 0},
		"savings_balance":            {5000, 5000, -0.6, 0},
		"other_loans":                {0.15, 0.36, 0.35, 0},
		"num_withdrawals_last_30d":   {1, 1.5, 0.5, 0},
		"num_withdrawals_last_90d":   {3, 3, 0.3, 0},
		"avg_withdraw_amount":        {300, 300, 0.1, 0},
		"avg_withdraw_pct_of_salary": {0.02, 0.05, 0.6, 0},
		"last_withdraw_days_ago":     {30, 25, -0.5, 45},
		"spend_3d_avg":               {500, 200, 0.05, 500},
		"spend_7d_avg":               {500, 120, 0.1, 500},
		"spend_30d_avg":              {500, 60, 0.05, 500},
		"spend_velocity":             {0, 40, 0.05, 0},
		"days_to_payday":             {3.5, 2.3, 0.15, 3.5},
		"is_month_boundary":          {0.03, 0.18, 0.05, 0},
		"income_expense_ratio":       {1, 0.5, -0.5, 1},
		"spend_volatility":           {200, 60, 0.05, 200},
		"necessity_spend":            {30000, 20000, 0.05, 0},
		"discretionary_spend":        {13000, 9000, 0.1, 0},
		"balance_trend":              {0, 5000, -0.3, 0},
		"ewa_count":                  {3, 3, 0.9, 0},
		"ewa_total":                  {900, 900, 0.3, 0},
		"repayment_rate":             {0.8, 0.4, -0.2, 0.8},
		"final_balance":              {5000, 8000, -0.4, 5000},
	}

	builtinCategorical = map[string]map[string]float64{
		"department": {"support": 0.1, "engineering": -0.05},
		"job_level":  {"junior": 0.2, "senior": -0.25},
	}
)

// Default returns the built-in artifact for a contract version. It is used
// when no artifact path is configured.
func Default(version string) (*Artifact, error) {
	c, err := contract.Lookup(version)
	if err != nil {
		return nil, err
	}
	a := &Artifact{
		ID:        "builtin-" + version,
		Contract:  c.Version,
		Intercept: builtinIntercepts[c.Version],
		Features:  make([]Feature, 0, len(c.Fields)),
	}
	for _, f := range c.Fields {
		switch f.Kind {
		case contract.KindCategorical:
			cats, ok := builtinCategorical[f.Name]
			if !ok {
				return nil, fmt.Errorf("no built-in weights for %s field %q", version, f.Name)
			}
			a.Features = append(a.Features, Feature{Name: f.Name, Kind: f.Kind, Categories: copyWeights(cats)})
		default:
			p, ok := builtinNumeric[f.Name]
			if !ok {
				return nil, fmt.Errorf("no built-in weights for %s field %q", version, f.Name)
			}
			a.Features = append(a.Features, Feature{
				Name:   f.Name,
				Kind:   f.Kind,
				Weight: p.weight,
				Mean:   p.mean,
				Scale:  p.scale,
				Impute: p.impute,
			})
		}
	}
	return a, a.Validate()
}

func copyWeights(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
