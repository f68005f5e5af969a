package features

import "fmt"

// InsufficientHistoryError reports that a required feature (or a label
// window) cannot be computed from the records available before the cutoff.
// The offline pipeline skips such employees or fails, depending on its mode.
type InsufficientHistoryError struct {
	EmployeeID string
	Field      string
	Need       int
	Have       int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: %s needs %d records, have %d",
		e.EmployeeID, e.Field, e.Need, e.Have)
}
