// Package synth generates synthetic employee profiles and daily transaction
// logs for exercising the feature pipeline end to end. Output is a pure
// function of the Config: the same seed always yields the same data.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/txlog"
)

// Defaults mirror the size of the reference training set.
const (
	DefaultSeed      = 42
	DefaultEmployees = 2000
	DefaultDays      = 90
)

// DefaultStart is the first simulated day.
var DefaultStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

var (
	salaries       = []float64{15000, 20000, 25000, 35000, 50000}
	salaryWeights  = []float64{0.2, 0.25, 0.25, 0.2, 0.1}
	jobLevelWeight = []float64{0.5, 0.35, 0.15}
)

const (
	meanTenureDays   = 300
	meanSavings      = 5000
	otherLoansRate   = 0.15
	spendMean        = 500
	spendStdDev      = 200
	necessityShare   = 0.7
	ewaRate          = 0.04
	ewaRateLowFunds  = 0.15
	lowFundsBalance  = 500
	ewaMinAmount     = 100
	ewaMaxAmount     = 500
	persistBatchSize = 5000
)

// Config controls a generation run.
type Config struct {
	Seed      uint64
	Employees int
	Days      int
	Start     time.Time
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{Seed: DefaultSeed, Employees: DefaultEmployees, Days: DefaultDays, Start: DefaultStart}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Employees <= 0 {
		return fmt.Errorf("employees must be positive, got %d", c.Employees)
	}
	if c.Days <= 0 {
		return fmt.Errorf("days must be positive, got %d", c.Days)
	}
	if c.Start.IsZero() {
		return errors.New("start date is required")
	}
	return nil
}

// Dataset is the generated data.
type Dataset struct {
	Profiles     []txlog.EmployeeProfile
	Transactions []txlog.TransactionRecord
}

// generator holds the distributions drawn from a single seeded source.
type generator struct {
	uniform     distuv.Uniform
	department  distuv.Categorical
	jobLevel    distuv.Categorical
	salary      distuv.Categorical
	tenure      distuv.Exponential
	savings     distuv.Exponential
	otherLoans  distuv.Bernoulli
	spend       distuv.Normal
	necessity   distuv.Bernoulli
	ewaAmount   distuv.Uniform
	payday      distuv.Bernoulli
	ewaNormal   distuv.Bernoulli
	ewaLowFunds distuv.Bernoulli
}

func newGenerator(seed uint64) *generator {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	uniformWeights := make([]float64, len(contract.Departments))
	for i := range uniformWeights {
		uniformWeights[i] = 1
	}
	return &generator{
		uniform:     distuv.Uniform{Min: 0.5, Max: 1.5, Src: src},
		department:  distuv.NewCategorical(uniformWeights, src),
		jobLevel:    distuv.NewCategorical(jobLevelWeight, src),
		salary:      distuv.NewCategorical(salaryWeights, src),
		tenure:      distuv.Exponential{Rate: 1.0 / meanTenureDays, Src: src},
		savings:     distuv.Exponential{Rate: 1.0 / meanSavings, Src: src},
		otherLoans:  distuv.Bernoulli{P: otherLoansRate, Src: src},
		spend:       distuv.Normal{Mu: spendMean, Sigma: spendStdDev, Src: src},
		necessity:   distuv.Bernoulli{P: necessityShare, Src: src},
		ewaAmount:   distuv.Uniform{Min: ewaMinAmount, Max: ewaMaxAmount, Src: src},
		payday:      distuv.Bernoulli{P: 0.5, Src: src},
		ewaNormal:   distuv.Bernoulli{P: ewaRate, Src: src},
		ewaLowFunds: distuv.Bernoulli{P: ewaRateLowFunds, Src: src},
	}
}

// Generate produces profiles and transactions for cfg.
func Generate(cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := newGenerator(cfg.Seed)
	start := txlog.Truncate(cfg.Start)

	ds := &Dataset{
		Profiles:     make([]txlog.EmployeeProfile, 0, cfg.Employees),
		Transactions: make([]txlog.TransactionRecord, 0, cfg.Employees*cfg.Days),
	}
	for i := 0; i < cfg.Employees; i++ {
		p := g.profile(fmt.Sprintf("E%05d", i))
		ds.Profiles = append(ds.Profiles, p)
		ds.Transactions = append(ds.Transactions, g.history(p, start, cfg.Days)...)
	}
	return ds, nil
}

func (g *generator) profile(id string) txlog.EmployeeProfile {
	return txlog.EmployeeProfile{
		EmployeeID:     id,
		Department:     contract.Departments[int(g.department.Rand())],
		JobLevel:       contract.JobLevels[int(g.jobLevel.Rand())],
		SalaryMonthly:  salaries[int(g.salary.Rand())],
		TenureDays:     int(g.tenure.Rand()),
		SavingsBalance: g.savings.Rand(),
		OtherLoans:     g.otherLoans.Rand() == 1,
	}
}

// history simulates one employee's days. Half the salary lands on the
// employee's payday; advances outstanding at a payday are repaid from it.
func (g *generator) history(p txlog.EmployeeProfile, start time.Time, days int) []txlog.TransactionRecord {
	payday := 1
	if g.payday.Rand() == 1 {
		payday = 15
	}
	balance := p.SavingsBalance + p.SalaryMonthly*g.uniform.Rand()
	var outstanding float64

	out := make([]txlog.TransactionRecord, days)
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d)
		r := txlog.TransactionRecord{
			EmployeeID: p.EmployeeID,
			Date:       date,
			Category:   txlog.CategoryDiscretionary,
		}

		if date.Day() == payday {
			r.Deposit = p.SalaryMonthly / 2
			r.Repayment = outstanding
			outstanding = 0
		}
		r.Spend = max(0, g.spend.Rand())
		if g.necessity.Rand() == 1 {
			r.Category = txlog.CategoryNecessity
		}
		balance += r.Deposit - r.Spend - r.Repayment

		use := g.ewaNormal
		if balance <= lowFundsBalance {
			use = g.ewaLowFunds
		}
		if use.Rand() == 1 {
			r.EWAUsed = true
			r.EWAAmount = g.ewaAmount.Rand()
			balance += r.EWAAmount
			outstanding += r.EWAAmount
		}
		r.Balance = balance
		out[d] = r
	}
	return out
}

// Persist writes a dataset to a store in batches.
func Persist(ctx context.Context, store txlog.Store, ds *Dataset) error {
	if err := store.PutProfiles(ctx, ds.Profiles); err != nil {
		return fmt.Errorf("store profiles: %w", err)
	}
	for lo := 0; lo < len(ds.Transactions); lo += persistBatchSize {
		hi := min(lo+persistBatchSize, len(ds.Transactions))
		if err := store.AppendTransactions(ctx, ds.Transactions[lo:hi]); err != nil {
			return fmt.Errorf("store transactions %d-%d: %w", lo, hi, err)
		}
	}
	return nil
}
