// Package model holds the risk classifier consumed by the scoring service.
//
// The service depends only on the Classifier interface. Artifact is the
// shipped implementation: a versioned logistic model over standardized
// numeric features and one-hot categorical features, serialized as JSON or
// msgpack and shared read-only across requests.
package model

import (
	"context"
	"fmt"
	"math"

	"github.com/mbd888/ewarisk/internal/contract"
)

// Classifier maps a contract-conforming feature vector to a probability in
// [0, 1]. Implementations must be safe for concurrent use.
type Classifier interface {
	PredictProbability(ctx context.Context, fv contract.FeatureVector) (float64, error)
	// ContractVersion and FeatureNames describe the vector layout the
	// classifier was trained on.
	ContractVersion() string
	FeatureNames() []string
	Name() string
}

// FeatureKinder is implemented by classifiers that declare whether each
// input, in FeatureNames order, is numeric or categorical.
type FeatureKinder interface {
	FeatureKinds() []contract.Kind
}

// Feature is one model input. Numeric features are standardized as
// (x - Mean) / Scale; a null input is replaced by Impute first. Categorical
// features contribute Categories[value], so unseen categories add nothing.
type Feature struct {
	Name       string             `json:"name" msgpack:"name"`
	Kind       contract.Kind      `json:"kind" msgpack:"kind"`
	Weight     float64            `json:"weight,omitempty" msgpack:"weight,omitempty"`
	Mean       float64            `json:"mean,omitempty" msgpack:"mean,omitempty"`
	Scale      float64            `json:"scale,omitempty" msgpack:"scale,omitempty"`
	Impute     float64            `json:"impute,omitempty" msgpack:"impute,omitempty"`
	Categories map[string]float64 `json:"categories,omitempty" msgpack:"categories,omitempty"`
}

// Artifact is a serialized logistic classifier bound to one contract version.
type Artifact struct {
	ID        string    `json:"id" msgpack:"id"`
	Contract  string    `json:"contract" msgpack:"contract"`
	Intercept float64   `json:"intercept" msgpack:"intercept"`
	Features  []Feature `json:"features" msgpack:"features"`
}

var (
	_ Classifier    = (*Artifact)(nil)
	_ FeatureKinder = (*Artifact)(nil)
)

// Validate checks that the artifact is internally consistent.
func (a *Artifact) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("model artifact has no id")
	}
	if a.Contract == "" {
		return fmt.Errorf("model %s: contract version is required", a.ID)
	}
	if !finite(a.Intercept) {
		return fmt.Errorf("model %s: intercept must be finite", a.ID)
	}
	seen := make(map[string]bool, len(a.Features))
	for _, f := range a.Features {
		if f.Name == "" {
			return fmt.Errorf("model %s: feature with no name", a.ID)
		}
		if seen[f.Name] {
			return fmt.Errorf("model %s: duplicate feature %q", a.ID, f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case contract.KindNumeric:
			if !finite(f.Weight) || !finite(f.Mean) || !finite(f.Impute) {
				return fmt.Errorf("model %s: feature %q has non-finite parameters", a.ID, f.Name)
			}
			if !finite(f.Scale) || f.Scale <= 0 {
				return fmt.Errorf("model %s: feature %q scale must be positive", a.ID, f.Name)
			}
		case contract.KindCategorical:
			for cat, w := range f.Categories {
				if !finite(w) {
					return fmt.Errorf("model %s: feature %q category %q has non-finite weight", a.ID, f.Name, cat)
				}
			}
		default:
			return fmt.Errorf("model %s: feature %q has unknown kind %q", a.ID, f.Name, f.Kind)
		}
	}
	return nil
}

// Name identifies the artifact in logs and health output.
func (a *Artifact) Name() string { return a.ID }

// ContractVersion returns the contract the artifact was trained against.
func (a *Artifact) ContractVersion() string { return a.Contract }

// FeatureNames returns the input names in training order.
func (a *Artifact) FeatureNames() []string {
	names := make([]string, len(a.Features))
	for i, f := range a.Features {
		names[i] = f.Name
	}
	return names
}

// FeatureKinds returns the input kinds in training order.
func (a *Artifact) FeatureKinds() []contract.Kind {
	kinds := make([]contract.Kind, len(a.Features))
	for i, f := range a.Features {
		kinds[i] = f.Kind
	}
	return kinds
}

// PredictProbability scores one feature vector.
func (a *Artifact) PredictProbability(ctx context.Context, fv contract.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if fv.Version() != a.Contract {
		return 0, fmt.Errorf("model %s expects contract %s, got %s", a.ID, a.Contract, fv.Version())
	}
	if fv.Len() != len(a.Features) {
		return 0, fmt.Errorf("model %s expects %d features, got %d", a.ID, len(a.Features), fv.Len())
	}

	z := a.Intercept
	for i, f := range a.Features {
		z += f.contribution(fv.At(i))
	}
	p := sigmoid(z)
	if math.IsNaN(p) {
		return 0, fmt.Errorf("model %s produced NaN", a.ID)
	}
	return p, nil
}

func (f Feature) contribution(v contract.Value) float64 {
	if f.Kind == contract.KindCategorical {
		if v.Null {
			return 0
		}
		return f.Categories[v.Cat]
	}
	x := v.Num
	if v.Null {
		x = f.Impute
	}
	return f.Weight * (x - f.Mean) / f.Scale
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
