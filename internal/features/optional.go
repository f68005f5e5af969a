package features

import "github.com/mbd888/ewarisk/internal/contract"

// Optional is a feature value that may be unavailable, for example a rolling
// mean over a window longer than the observed history.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps an available value.
func Some(v float64) Optional { return Optional{Value: v, Valid: true} }

// None is an unavailable value.
func None() Optional { return Optional{} }

func (o Optional) contractValue() contract.Value {
	if !o.Valid {
		return contract.Null()
	}
	return contract.Number(o.Value)
}
