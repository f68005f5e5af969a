// Package contract defines the Feature Vector Contract: the single, versioned
// schema (ordered field names, kinds and domains) shared by offline feature
// generation and online inference.
//
// Both paths build a FeatureVector only through a Contract, so the set and
// order of fields is identical by construction. Serving input goes through
// FromRequest and fails with validation.ValidationErrors; derived training
// input goes through FromDerived, where a differing field set is a
// *ContractMismatchError.
package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mbd888/ewarisk/internal/validation"
)

// Kind distinguishes numeric from categorical fields.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// UnknownCategory is the bucket for categorical values outside the vocabulary.
const UnknownCategory = "unknown"

// Field declares one column of the contract.
type Field struct {
	Name         string   `json:"name"`
	Kind         Kind     `json:"kind"`
	Integer      bool     `json:"integer,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	MinExclusive bool     `json:"min_exclusive,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Vocabulary   []string `json:"vocabulary,omitempty"`
	AllowUnknown bool     `json:"allow_unknown,omitempty"`
	Nullable     bool     `json:"nullable,omitempty"`
	Description  string   `json:"description,omitempty"`
}

func (f Field) isFlag() bool {
	return f.Integer && f.Min != nil && *f.Min == 0 && f.Max != nil && *f.Max == 1
}

// check validates v against the field's domain and returns the normalized
// value. unknown reports whether a categorical value fell into the unknown
// bucket.
func (f Field) check(v Value) (out Value, unknown bool, verr *validation.ValidationError) {
	fail := func(msg string) (Value, bool, *validation.ValidationError) {
		return Value{}, false, &validation.ValidationError{Field: f.Name, Message: msg}
	}

	if f.Kind == KindCategorical {
		if v.Null || strings.TrimSpace(v.Cat) == "" {
			if f.Nullable {
				return Null(), false, nil
			}
			return fail("is required")
		}
		cat := strings.ToLower(strings.TrimSpace(v.Cat))
		for _, known := range f.Vocabulary {
			if cat == known {
				return Category(cat), false, nil
			}
		}
		if f.AllowUnknown {
			return Category(UnknownCategory), true, nil
		}
		return fail("must be one of " + strings.Join(f.Vocabulary, ", "))
	}

	if v.Null {
		if f.Nullable {
			return Null(), false, nil
		}
		return fail("is required")
	}
	x := v.Num
	switch {
	case math.IsNaN(x) || math.IsInf(x, 0):
		return fail("must be a finite number")
	case f.Integer && x != math.Trunc(x):
		return fail("must be an integer")
	case f.Min != nil && f.MinExclusive && x <= *f.Min:
		return fail("must be greater than " + formatFloat(*f.Min))
	case f.Min != nil && x < *f.Min:
		return fail("must be at least " + formatFloat(*f.Min))
	case f.Max != nil && x > *f.Max:
		return fail("must be at most " + formatFloat(*f.Max))
	}
	return Number(x), false, nil
}

// Contract is one versioned feature schema. Field order is the canonical
// column order for classifiers and dataset exports.
type Contract struct {
	Version string
	Label   string
	Fields  []Field

	index map[string]int
}

// New validates a field list and builds a contract.
func New(version, label string, fields ...Field) (*Contract, error) {
	if version == "" {
		return nil, fmt.Errorf("contract version is required")
	}
	c := &Contract{
		Version: version,
		Label:   label,
		Fields:  fields,
		index:   make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("contract %s: field %d has no name", version, i)
		}
		if _, dup := c.index[f.Name]; dup {
			return nil, fmt.Errorf("contract %s: duplicate field %q", version, f.Name)
		}
		if f.Kind == KindCategorical && len(f.Vocabulary) == 0 {
			return nil, fmt.Errorf("contract %s: categorical field %q has no vocabulary", version, f.Name)
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return nil, fmt.Errorf("contract %s: field %q has min above max", version, f.Name)
		}
		c.index[f.Name] = i
	}
	return c, nil
}

// MustNew is New for package-level definitions.
func MustNew(version, label string, fields ...Field) *Contract {
	c, err := New(version, label, fields...)
	if err != nil {
		panic(err)
	}
	return c
}

// Names returns the ordered field names.
func (c *Contract) Names() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name.
func (c *Contract) Field(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// FromRequest builds a vector from a decoded serving request. Every field
// problem is reported, and keys the contract does not declare are rejected.
func (c *Contract) FromRequest(raw map[string]any) (FeatureVector, error) {
	var errs validation.ValidationErrors

	var extra []string
	for key := range raw {
		if _, ok := c.index[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		errs = append(errs, validation.ValidationError{
			Field:   key,
			Message: "is not part of contract " + c.Version,
		})
	}

	fv := c.newVector()
	for i, f := range c.Fields {
		v, err := decode(f, raw[f.Name])
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		out, unknown, verr := f.check(v)
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}
		fv.values[i] = out
		if unknown {
			fv.unknown = append(fv.unknown, f.Name)
		}
	}

	if len(errs) > 0 {
		return FeatureVector{}, errs
	}
	return fv, nil
}

// FromDerived builds a vector from values computed by the feature pipeline.
// The derived names must match the contract exactly.
func (c *Contract) FromDerived(named map[string]Value) (FeatureVector, error) {
	var missing, unexpected []string
	for _, f := range c.Fields {
		if _, ok := named[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	for name := range named {
		if _, ok := c.index[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(unexpected)
		return FeatureVector{}, &ContractMismatchError{
			Version:    c.Version,
			Reason:     "derived feature set differs from contract",
			Missing:    missing,
			Unexpected: unexpected,
		}
	}

	var errs validation.ValidationErrors
	fv := c.newVector()
	for i, f := range c.Fields {
		out, unknown, verr := f.check(named[f.Name])
		if verr != nil {
			errs = append(errs, *verr)
			continue
		}
		fv.values[i] = out
		if unknown {
			fv.unknown = append(fv.unknown, f.Name)
		}
	}
	if len(errs) > 0 {
		return FeatureVector{}, errs
	}
	return fv, nil
}

// Verify checks that a consumer (a classifier artifact, a dataset reader)
// expects exactly this contract version and field order.
func (c *Contract) Verify(version string, names []string) error {
	if version != c.Version {
		return &ContractMismatchError{
			Version: c.Version,
			Reason:  fmt.Sprintf("consumer expects contract %q", version),
		}
	}

	want := c.Names()
	if len(names) == len(want) {
		same := true
		for i := range want {
			if names[i] != want[i] {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}

	got := make(map[string]bool, len(names))
	for _, n := range names {
		got[n] = true
	}
	var missing, unexpected []string
	for _, n := range want {
		if !got[n] {
			missing = append(missing, n)
		}
	}
	for _, n := range names {
		if _, ok := c.index[n]; !ok {
			unexpected = append(unexpected, n)
		}
	}
	reason := "field order differs"
	if len(missing) > 0 || len(unexpected) > 0 {
		reason = "field set differs"
	}
	return &ContractMismatchError{
		Version:    c.Version,
		Reason:     reason,
		Missing:    missing,
		Unexpected: unexpected,
	}
}

// VerifyKinds checks that a consumer treats every field with the kind the
// contract declares. kinds is in contract field order, so call Verify first.
func (c *Contract) VerifyKinds(kinds []Kind) error {
	if len(kinds) != len(c.Fields) {
		return &ContractMismatchError{
			Version: c.Version,
			Reason:  fmt.Sprintf("consumer declares %d field kinds, contract has %d fields", len(kinds), len(c.Fields)),
		}
	}
	var differs []string
	for i, f := range c.Fields {
		if kinds[i] != f.Kind {
			differs = append(differs, fmt.Sprintf("%s (%s, want %s)", f.Name, kinds[i], f.Kind))
		}
	}
	if len(differs) > 0 {
		return &ContractMismatchError{Version: c.Version, Reason: "field kind differs", KindDiffers: differs}
	}
	return nil
}

// Schema is the JSON description of a contract exposed to API callers.
type Schema struct {
	Version string  `json:"version"`
	Label   string  `json:"label"`
	Fields  []Field `json:"fields"`
}

// Schema returns the public description of the contract.
func (c *Contract) Schema() Schema {
	fields := make([]Field, len(c.Fields))
	copy(fields, c.Fields)
	return Schema{Version: c.Version, Label: c.Label, Fields: fields}
}

func (c *Contract) newVector() FeatureVector {
	return FeatureVector{
		version: c.Version,
		names:   c.Names(),
		values:  make([]Value, len(c.Fields)),
	}
}

// decode converts a JSON-decoded value into a Value for field f.
func decode(f Field, raw any) (Value, *validation.ValidationError) {
	if raw == nil {
		return Null(), nil
	}

	if f.Kind == KindCategorical {
		s, ok := raw.(string)
		if !ok {
			return Value{}, &validation.ValidationError{Field: f.Name, Message: "must be a string"}
		}
		return Category(s), nil
	}

	switch x := raw.(type) {
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Value{}, &validation.ValidationError{Field: f.Name, Message: "must be a number"}
		}
		return Number(n), nil
	case bool:
		if !f.isFlag() {
			return Value{}, &validation.ValidationError{Field: f.Name, Message: "must be a number"}
		}
		if x {
			return Number(1), nil
		}
		return Number(0), nil
	default:
		return Value{}, &validation.ValidationError{Field: f.Name, Message: "must be a number"}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
