package contract

import "strconv"

// Value is one feature value: a number, a category, or null (unavailable).
type Value struct {
	Num  float64
	Cat  string
	Null bool
}

// Number wraps a numeric value.
func Number(v float64) Value { return Value{Num: v} }

// Category wraps a categorical value.
func Category(s string) Value { return Value{Cat: s} }

// Null is an unavailable value.
func Null() Value { return Value{Null: true} }

// Flag encodes a boolean as 0/1.
func Flag(b bool) Value {
	if b {
		return Number(1)
	}
	return Number(0)
}

// Interface returns nil, a float64 or a string.
func (v Value) Interface() any {
	switch {
	case v.Null:
		return nil
	case v.Cat != "":
		return v.Cat
	default:
		return v.Num
	}
}

// String formats the value for tabular export; null is the empty string.
func (v Value) String() string {
	switch {
	case v.Null:
		return ""
	case v.Cat != "":
		return v.Cat
	default:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
}

// FeatureVector is an immutable, ordered set of values conforming to one
// contract version. It can only be built through a Contract.
type FeatureVector struct {
	version string
	names   []string
	values  []Value
	unknown []string
}

// Version returns the contract version the vector was built against.
func (fv FeatureVector) Version() string { return fv.version }

// Len returns the number of fields.
func (fv FeatureVector) Len() int { return len(fv.values) }

// Names returns a copy of the ordered field names.
func (fv FeatureVector) Names() []string {
	out := make([]string, len(fv.names))
	copy(out, fv.names)
	return out
}

// Values returns a copy of the ordered values.
func (fv FeatureVector) Values() []Value {
	out := make([]Value, len(fv.values))
	copy(out, fv.values)
	return out
}

// At returns the i-th value in contract order.
func (fv FeatureVector) At(i int) Value { return fv.values[i] }

// Get returns a value by field name.
func (fv FeatureVector) Get(name string) (Value, bool) {
	for i, n := range fv.names {
		if n == name {
			return fv.values[i], true
		}
	}
	return Value{}, false
}

// UnknownFields lists categorical fields whose input was mapped to the
// unknown bucket.
func (fv FeatureVector) UnknownFields() []string {
	out := make([]string, len(fv.unknown))
	copy(out, fv.unknown)
	return out
}

// Map returns the vector as a name → value map suitable for JSON.
func (fv FeatureVector) Map() map[string]any {
	out := make(map[string]any, len(fv.values))
	for i, n := range fv.names {
		out[n] = fv.values[i].Interface()
	}
	return out
}
