package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbd888/ewarisk/internal/circuitbreaker"
	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/metrics"
)

// Guarded wraps a Classifier with a circuit breaker so a failing model is
// not called on every request. Caller cancellations do not trip the circuit.
type Guarded struct {
	inner   Classifier
	breaker *circuitbreaker.Breaker
}

var (
	_ Classifier    = (*Guarded)(nil)
	_ FeatureKinder = (*Guarded)(nil)
)

// NewGuarded wraps inner. Breaker transitions are exported as metrics.
func NewGuarded(inner Classifier, breaker *circuitbreaker.Breaker) *Guarded {
	breaker.OnTransition(func(from, to circuitbreaker.State) {
		metrics.ClassifierCircuitTransitions.WithLabelValues(from.String(), to.String()).Inc()
	})
	return &Guarded{inner: inner, breaker: breaker}
}

func (g *Guarded) PredictProbability(ctx context.Context, fv contract.FeatureVector) (float64, error) {
	var p float64
	err := g.breaker.Execute(func() error {
		var err error
		p, err = g.inner.PredictProbability(ctx, fv)
		return err
	}, countable)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return 0, fmt.Errorf("classifier %s unavailable: %w", g.inner.Name(), err)
	}
	return p, err
}

func countable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// State reports the breaker state.
func (g *Guarded) State() circuitbreaker.State { return g.breaker.State() }

func (g *Guarded) ContractVersion() string { return g.inner.ContractVersion() }
func (g *Guarded) FeatureNames() []string  { return g.inner.FeatureNames() }
func (g *Guarded) Name() string            { return g.inner.Name() }

// FeatureKinds delegates to the wrapped classifier, or returns nil when it
// declares no kinds.
func (g *Guarded) FeatureKinds() []contract.Kind {
	if k, ok := g.inner.(FeatureKinder); ok {
		return k.FeatureKinds()
	}
	return nil
}
