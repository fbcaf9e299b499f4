package constraints

import (
	"errors"
	"fmt"

	"github.com/san-kum/rocketland/internal/dynamo"
)

var ErrRange = errors.New("constraints: index range outside trajectory")

// Range is the half-open set of knot indices [Start, Stop).
type Range struct {
	Start, Stop int
}

// Knots returns the range [start, stop).
func Knots(start, stop int) Range { return Range{Start: start, Stop: stop} }

func (r Range) Len() int {
	if r.Stop <= r.Start {
		return 0
	}
	return r.Stop - r.Start
}

func (r Range) Contains(k int) bool { return k >= r.Start && k < r.Stop }

func (r Range) String() string { return fmt.Sprintf("[%d, %d)", r.Start, r.Stop) }

// Entry is a constraint together with the knots it applies to.
type Entry struct {
	Constraint Constraint
	Range      Range
}

// List is the ordered constraint set of a problem with N knots.
type List struct {
	n, m, N int
	entries []Entry
}

func NewList(n, m, N int) *List {
	return &List{n: n, m: m, N: N}
}

func (l *List) StateDim() int   { return l.n }
func (l *List) ControlDim() int { return l.m }
func (l *List) Knots() int      { return l.N }
func (l *List) Len() int        { return len(l.entries) }
func (l *List) Entry(i int) Entry {
	return l.entries[i]
}

func (l *List) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Add appends c over the knots r. Control-dependent constraints may not
// touch the terminal knot.
func (l *List) Add(c Constraint, r Range) error {
	if err := dynamo.CheckDim("constraint state", l.n, c.StateDim()); err != nil {
		return err
	}
	if err := dynamo.CheckDim("constraint control", l.m, c.ControlDim()); err != nil {
		return err
	}
	if r.Start < 0 || r.Stop > l.maxStop(c) || r.Len() == 0 {
		return fmt.Errorf("%w: %s for %s constraint with %d knots", ErrRange, r, c.Domain(), l.N)
	}
	l.entries = append(l.entries, Entry{Constraint: c, Range: r})
	return nil
}

func (l *List) maxStop(c Constraint) int {
	if c.Domain() == StateOnly {
		return l.N
	}
	return l.N - 1
}

// OutputDims returns the total number of constraint outputs at every knot.
func (l *List) OutputDims() []int {
	dims := make([]int, l.N)
	for _, e := range l.entries {
		for k := e.Range.Start; k < e.Range.Stop; k++ {
			dims[k] += e.Constraint.OutputDim()
		}
	}
	return dims
}

// Clip returns a copy of the list for a horizon of N knots. Ranges are cut
// to the horizon; entries left empty are returned separately.
func (l *List) Clip(N int) (*List, []Entry) {
	out := NewList(l.n, l.m, N)
	var dropped []Entry
	for _, e := range l.entries {
		r := e.Range
		r.Stop = min(r.Stop, out.maxStop(e.Constraint))
		if r.Start < 0 {
			r.Start = 0
		}
		if r.Len() == 0 {
			dropped = append(dropped, e)
			continue
		}
		out.entries = append(out.entries, Entry{Constraint: e.Constraint, Range: r})
	}
	return out, dropped
}

// MaxViolation returns the largest violation over the trajectory.
func (l *List) MaxViolation(xs []dynamo.State, us []dynamo.Control) float64 {
	worst := 0.0
	for _, e := range l.entries {
		for k := e.Range.Start; k < e.Range.Stop; k++ {
			var u dynamo.Control
			if k < len(us) {
				u = us[k]
			}
			worst = max(worst, Violation(e.Constraint.Sense(), e.Constraint.Evaluate(xs[k], u)))
		}
	}
	return worst
}
