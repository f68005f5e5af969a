package features

import (
	"fmt"
	"time"

	"github.com/mbd888/ewarisk/internal/contract"
	"github.com/mbd888/ewarisk/internal/txlog"
)

// Window is a half-open label interval [Start, End) of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days is the window length in calendar days.
func (w Window) Days() int { return daysBetween(w.Start, w.End) }

// Cutoff is the feature cutoff for this window. Features never see records
// dated on or after it.
func (w Window) Cutoff() time.Time { return w.Start }

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}

// Label is 1 if any EWA advance falls inside the window, else 0.
func Label(h txlog.History, w Window) int {
	for _, r := range h.Between(w.Start, w.End).Records() {
		if r.EWAUsed {
			return 1
		}
	}
	return 0
}

// LabelPolicy chooses the label window for an employee's history.
type LabelPolicy interface {
	Name() string
	Window(h txlog.History) (Window, error)
}

// ForwardDays labels the final Days calendar days of the observed period.
type ForwardDays struct {
	Days int
}

func (p ForwardDays) Name() string { return fmt.Sprintf("forward-%dd", p.Days) }

func (p ForwardDays) Window(h txlog.History) (Window, error) {
	if p.Days <= 0 {
		return Window{}, fmt.Errorf("forward label window must be positive, got %d", p.Days)
	}
	if h.Len() == 0 {
		return Window{}, &InsufficientHistoryError{EmployeeID: h.EmployeeID(), Field: "label window", Need: p.Days + 1}
	}
	end := h.LastDate().AddDate(0, 0, 1)
	w := Window{Start: end.AddDate(0, 0, -p.Days), End: end}
	if !w.Start.After(h.FirstDate()) {
		return Window{}, &InsufficientHistoryError{
			EmployeeID: h.EmployeeID(),
			Field:      "label window",
			Need:       p.Days + 1,
			Have:       daysBetween(h.FirstDate(), end),
		}
	}
	return w, nil
}

// NextPayCycle labels the last complete pay half-cycle in the history, from
// one payday anchor up to the next.
type NextPayCycle struct{}

func (NextPayCycle) Name() string { return "next-pay-cycle" }

func (NextPayCycle) Window(h txlog.History) (Window, error) {
	if h.Len() == 0 {
		return Window{}, &InsufficientHistoryError{EmployeeID: h.EmployeeID(), Field: "label window", Need: 1}
	}
	end := PrevPayday(h.LastDate().AddDate(0, 0, 1))
	w := Window{Start: PrevPayday(end.AddDate(0, 0, -1)), End: end}
	if !w.Start.After(h.FirstDate()) {
		return Window{}, &InsufficientHistoryError{
			EmployeeID: h.EmployeeID(),
			Field:      "label window",
			Need:       daysBetween(w.Start, w.End) + 1,
			Have:       daysBetween(h.FirstDate(), h.LastDate()) + 1,
		}
	}
	return w, nil
}

// PolicyFor returns the label policy that matches a contract's label column.
func PolicyFor(c *contract.Contract) (LabelPolicy, error) {
	switch c.Label {
	case contract.LabelEWANext15:
		return ForwardDays{Days: 15}, nil
	case contract.LabelRequestNextCycle:
		return NextPayCycle{}, nil
	default:
		return nil, fmt.Errorf("no label policy for %q (contract %s)", c.Label, c.Version)
	}
}
