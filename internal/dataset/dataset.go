// Package dataset builds the offline training table: one row of
// contract-conforming features plus a label per employee, derived from the
// transaction store with the same builder the serving contract is checked
// against.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/features"
	"github.com/mbd888/ewarisk/internal/logging"
	"github.com/mbd888/ewarisk/internal/metrics"
	"github.com/mbd888/ewarisk/internal/traces"
	"github.com/mbd888/ewarisk/internal/txlog"
)

// DefaultWorkers is the per-run derivation concurrency.
const DefaultWorkers = 8

// Row is one training example.
type Row struct {
	EmployeeID string
	Features   contract.FeatureVector
	Label      int
	Window     features.Window
}

// Report summarizes a generation run.
type Report struct {
	RunID      string        `json:"run_id"`
	Contract   string        `json:"contract"`
	Policy     string        `json:"label_policy"`
	Employees  int           `json:"employees"`
	Rows       int           `json:"rows"`
	Positives  int           `json:"positives"`
	Skipped    int           `json:"skipped"`
	SkippedIDs []string      `json:"skipped_ids,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Generator derives rows for every employee in Store.
type Generator struct {
	Store   txlog.Store
	Builder *features.Builder
	// Policy defaults to features.PolicyFor(Builder.Contract()).
	Policy  features.LabelPolicy
	Workers int
	// Strict turns an employee with insufficient history into a run failure
	// instead of a skipped row.
	Strict bool
	Logger *slog.Logger
}

type outcome struct {
	row     *Row
	skipped bool
}

// Generate derives one row per employee, in parallel, sorted by employee ID.
func (g *Generator) Generate(ctx context.Context) ([]Row, *Report, error) {
	if g.Store == nil || g.Builder == nil {
		return nil, nil, errors.New("dataset: store and builder are required")
	}
	c := g.Builder.Contract()
	policy := g.Policy
	if policy == nil {
		p, err := features.PolicyFor(c)
		if err != nil {
			return nil, nil, err
		}
		policy = p
	}
	workers := g.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := g.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	report := &Report{RunID: uuid.NewString(), Contract: c.Version, Policy: policy.Name()}
	logger = logger.With("run_id", report.RunID, "contract", c.Version)
	started := time.Now()

	ctx, span := traces.StartSpan(ctx, "dataset.Generate", traces.ContractVersion(c.Version))
	defer span.End()

	profiles, err := g.Store.ListProfiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list profiles: %w", err)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].EmployeeID < profiles[j].EmployeeID })
	report.Employees = len(profiles)
	logger.Info("dataset generation started", "employees", len(profiles), "workers", workers, "label_policy", policy.Name())

	outcomes := make([]outcome, len(profiles))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, p := range profiles {
		eg.Go(func() error {
			row, err := g.derive(egctx, policy, p)
			var insufficient *features.InsufficientHistoryError
			switch {
			case err == nil:
				outcomes[i] = outcome{row: row}
				metrics.DerivationsTotal.WithLabelValues(c.Version, "ok").Inc()
				return nil
			case errors.As(err, &insufficient) && !g.Strict:
				outcomes[i] = outcome{skipped: true}
				metrics.DerivationsTotal.WithLabelValues(c.Version, "skipped").Inc()
				logger.Warn("employee skipped", "employee_id", p.EmployeeID, "reason", err)
				return nil
			default:
				metrics.DerivationsTotal.WithLabelValues(c.Version, "failed").Inc()
				return err
			}
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	rows := make([]Row, 0, len(profiles))
	for i, o := range outcomes {
		if o.skipped {
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, profiles[i].EmployeeID)
			continue
		}
		rows = append(rows, *o.row)
		report.Positives += o.row.Label
	}
	report.Rows = len(rows)
	report.Duration = time.Since(started)
	metrics.DatasetDuration.Observe(report.Duration.Seconds())

	logger.Info("dataset generation finished",
		"rows", report.Rows,
		"positives", report.Positives,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)
	return rows, report, nil
}

func (g *Generator) derive(ctx context.Context, policy features.LabelPolicy, p txlog.EmployeeProfile) (*Row, error) {
	h, err := g.Store.History(ctx, p.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", p.EmployeeID, err)
	}
	w, err := policy.Window(h)
	if err != nil {
		return nil, err
	}
	fv, err := g.Builder.Derive(p, h, w.Cutoff())
	if err != nil {
		return nil, err
	}
	return &Row{
		EmployeeID: p.EmployeeID,
		Features:   fv,
		Label:      features.Label(h, w),
		Window:     w,
	}, nil
}
