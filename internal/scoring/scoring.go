// Package scoring implements the online risk scoring service: validate a
// request against the feature contract, score it with the classifier and map
// the probability to a risk tier.
package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Tier is a discrete risk bucket.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Default tier boundaries.
const (
	DefaultMediumThreshold = 0.3
	DefaultHighThreshold   = 0.6
)

// MaxBatchSize bounds the number of requests in one batch call.
const MaxBatchSize = 100

// Thresholds are the lower bounds of the medium and high tiers.
type Thresholds struct {
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// DefaultThresholds returns the stock tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: DefaultMediumThreshold, High: DefaultHighThreshold}
}

// Validate requires 0 <= Medium <= High <= 1.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Medium, t.High} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("risk thresholds must be within [0, 1], got medium=%v high=%v", t.Medium, t.High)
		}
	}
	if t.Medium > t.High {
		return fmt.Errorf("medium threshold %v must not exceed high threshold %v", t.Medium, t.High)
	}
	return nil
}

// Tier maps a probability to its tier. Boundaries belong to the upper tier.
func (t Thresholds) Tier(score float64) Tier {
	switch {
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// State is a step in the lifecycle of one scoring request.
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateScored     State = "scored"
	StateClassified State = "classified"
	StateReturned   State = "returned"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// Request is one scoring request: the employee and the raw feature values.
// On the wire it is a flat JSON object with employee_id next to the
// feature fields.
type Request struct {
	EmployeeID string
	Features   map[string]any
}

// UnmarshalJSON decodes the flat wire form. Numbers are kept as json.Number
// so integer checks see the value as sent.
func (r *Request) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("request must be a JSON object")
	}

	r.EmployeeID = ""
	if id, ok := raw["employee_id"]; ok {
		s, ok := id.(string)
		if !ok {
			return fmt.Errorf("employee_id must be a string")
		}
		r.EmployeeID = s
		delete(raw, "employee_id")
	}
	r.Features = raw
	return nil
}

// MarshalJSON encodes the flat wire form.
func (r Request) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Features)+1)
	for k, v := range r.Features {
		out[k] = v
	}
	out["employee_id"] = r.EmployeeID
	return json.Marshal(out)
}

// RiskAssessment is the service's answer for one employee.
type RiskAssessment struct {
	EmployeeID    string   `json:"employee_id"`
	RiskScore     float64  `json:"risk_score"`
	RiskLabel     Tier     `json:"risk_label"`
	UnknownFields []string `json:"unknown_fields,omitempty"`
}

// ScoringError reports a classifier failure or an invalid classifier output.
// It is not retried.
type ScoringError struct {
	EmployeeID string
	Model      string
	Err        error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring %s with model %s: %v", e.EmployeeID, e.Model, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }
