package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/logging"
	"github.com/mbd888/ewarisk/internal/metrics"
	"github.com/mbd888/ewarisk/internal/model"
	"github.com/mbd888/ewarisk/internal/traces"
	"github.com/mbd888/ewarisk/internal/validation"
)

// batchConcurrency bounds parallel classifier calls within one batch.
const batchConcurrency = 8

// ErrBatchSize is returned for empty or oversized batches.
var ErrBatchSize = fmt.Errorf("batch must contain between 1 and %d requests", MaxBatchSize)

// Service scores requests against one contract with one classifier. It holds
// no mutable state and is safe for concurrent use.
type Service struct {
	contract   *contract.Contract
	classifier model.Classifier
	thresholds Thresholds
	logger     *slog.Logger
}

// NewService verifies that the classifier was built for c and returns a
// ready service. A layout difference is a *contract.ContractMismatchError.
func NewService(c *contract.Contract, classifier model.Classifier, thresholds Thresholds, logger *slog.Logger) (*Service, error) {
	if c == nil || classifier == nil {
		return nil, errors.New("scoring: contract and classifier are required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if err := verifyClassifier(c, classifier); err != nil {
		return nil, fmt.Errorf("classifier %s: %w", classifier.Name(), err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		contract:   c,
		classifier: classifier,
		thresholds: thresholds,
		logger:     logger,
	}, nil
}

// Contract returns the contract requests are validated against.
func (s *Service) Contract() *contract.Contract { return s.contract }

// Classifier returns the loaded classifier.
func (s *Service) Classifier() model.Classifier { return s.classifier }

// Thresholds returns the configured tier boundaries.
func (s *Service) Thresholds() Thresholds { return s.thresholds }

func (s *Service) log(ctx context.Context) *slog.Logger {
	if id := logging.RequestID(ctx); id != "" {
		return s.logger.With("request_id", id)
	}
	return s.logger
}

func (s *Service) transition(ctx context.Context, employeeID string, state State) {
	metrics.ScoringTransitionsTotal.WithLabelValues(string(state)).Inc()
	s.log(ctx).Debug("scoring transition", "employee_id", employeeID, "state", state)
}

// validate runs the received → validated step.
func (s *Service) validate(req Request) (contract.FeatureVector, error) {
	errs := validation.Validate(
		validation.Required("employee_id", req.EmployeeID),
		validation.MaxLength("employee_id", req.EmployeeID, validation.MaxIDLength),
	)
	fv, err := s.contract.FromRequest(req.Features)
	if err != nil {
		var ferrs validation.ValidationErrors
		if !errors.As(err, &ferrs) {
			return contract.FeatureVector{}, err
		}
		errs = append(errs, ferrs...)
	}
	if len(errs) > 0 {
		return contract.FeatureVector{}, errs
	}
	return fv, nil
}

// Assess validates, scores and classifies one request. Invalid input returns
// validation.ValidationErrors without calling the classifier; a classifier
// failure or an out-of-range probability returns *ScoringError.
func (s *Service) Assess(ctx context.Context, req Request) (*RiskAssessment, error) {
	req.EmployeeID = validation.SanitizeString(req.EmployeeID, validation.MaxIDLength+1)
	s.transition(ctx, req.EmployeeID, StateReceived)

	fv, err := s.validate(req)
	if err != nil {
		s.transition(ctx, req.EmployeeID, StateRejected)
		s.log(ctx).Info("scoring request rejected", "employee_id", req.EmployeeID, "error", err)
		return nil, err
	}
	s.transition(ctx, req.EmployeeID, StateValidated)

	unknown := fv.UnknownFields()
	for _, field := range unknown {
		metrics.UnknownCategoryTotal.WithLabelValues(field).Inc()
	}

	ctx, span := traces.StartSpan(ctx, "scoring.Assess",
		traces.EmployeeID(req.EmployeeID),
		traces.ContractVersion(s.contract.Version),
		traces.ModelName(s.classifier.Name()),
	)
	defer span.End()

	timer := prometheus.NewTimer(metrics.ScoringDuration)
	score, err := s.classifier.PredictProbability(ctx, fv)
	timer.ObserveDuration()
	if err == nil && (math.IsNaN(score) || score < 0 || score > 1) {
		err = fmt.Errorf("probability %v outside [0, 1]", score)
	}
	if err != nil {
		s.transition(ctx, req.EmployeeID, StateFailed)
		span.RecordError(err)
		s.log(ctx).Error("classifier failed", "employee_id", req.EmployeeID, "model", s.classifier.Name(), "error", err)
		return nil, &ScoringError{EmployeeID: req.EmployeeID, Model: s.classifier.Name(), Err: err}
	}
	s.transition(ctx, req.EmployeeID, StateScored)

	tier := s.thresholds.Tier(score)
	s.transition(ctx, req.EmployeeID, StateClassified)

	metrics.AssessmentsTotal.WithLabelValues(string(tier)).Inc()
	metrics.RiskScore.Observe(score)
	span.SetAttributes(traces.RiskScore(score), traces.RiskTier(string(tier)))

	out := &RiskAssessment{
		EmployeeID:    req.EmployeeID,
		RiskScore:     score,
		RiskLabel:     tier,
		UnknownFields: unknown,
	}
	s.transition(ctx, req.EmployeeID, StateReturned)
	return out, nil
}

// BatchItem is the outcome of one request in a batch. Exactly one of
// Assessment and Err is set.
type BatchItem struct {
	Index      int
	EmployeeID string
	Assessment *RiskAssessment
	Err        error
}

// AssessBatch scores independent requests in parallel. Per-item failures are
// reported on the item; the call itself only fails for a bad batch size.
func (s *Service) AssessBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	if len(reqs) == 0 || len(reqs) > MaxBatchSize {
		return nil, ErrBatchSize
	}

	ctx, span := traces.StartSpan(ctx, "scoring.AssessBatch", traces.BatchSize(len(reqs)))
	defer span.End()

	items := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			a, err := s.Assess(ctx, req)
			items[i] = BatchItem{Index: i, EmployeeID: req.EmployeeID, Assessment: a, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

// CheckContract reports whether the classifier still matches the contract.
func (s *Service) CheckContract(context.Context) error {
	return verifyClassifier(s.contract, s.classifier)
}

// verifyClassifier checks the classifier's version, field order and, when it
// declares them, field kinds against c.
func verifyClassifier(c *contract.Contract, classifier model.Classifier) error {
	if err := c.Verify(classifier.ContractVersion(), classifier.FeatureNames()); err != nil {
		return err
	}
	k, ok := classifier.(model.FeatureKinder)
	if !ok {
		return nil
	}
	if kinds := k.FeatureKinds(); kinds != nil {
		return c.VerifyKinds(kinds)
	}
	return nil
}

// CheckClassifier scores a synthetic in-domain vector and verifies that the
// classifier answers with a probability.
func (s *Service) CheckClassifier(ctx context.Context) error {
	fv, err := probeVector(s.contract)
	if err != nil {
		return err
	}
	p, err := s.classifier.PredictProbability(ctx, fv)
	if err != nil {
		return err
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("classifier %s returned %v for probe", s.classifier.Name(), p)
	}
	return nil
}

// probeVector builds the smallest in-domain vector for c.
func probeVector(c *contract.Contract) (contract.FeatureVector, error) {
	named := make(map[string]contract.Value, len(c.Fields))
	for _, f := range c.Fields {
		switch {
		case f.Kind == contract.KindCategorical:
			named[f.Name] = contract.Category(f.Vocabulary[0])
		case f.Nullable:
			named[f.Name] = contract.Null()
		case f.Min == nil:
			named[f.Name] = contract.Number(0)
		case f.MinExclusive:
			named[f.Name] = contract.Number(*f.Min + 1)
		default:
			named[f.Name] = contract.Number(*f.Min)
		}
	}
	return c.FromDerived(named)
}
