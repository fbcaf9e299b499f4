package constraints

import (
	"fmt"
)

// Block names a sub-vector of the stacked knot vector z = (x, u).
type Block int

const (
	StateBlock Block = iota
	ControlBlock
	IndexBlock
)

// Selector picks a sub-vector of z = (x, u) by tag or explicit indices.
type Selector struct {
	block   Block
	indices []int
}

func SelectState() Selector   { return Selector{block: StateBlock} }
func SelectControl() Selector { return Selector{block: ControlBlock} }

// SelectIndices selects explicit positions of z = (x, u).
func SelectIndices(idx ...int) Selector {
	return Selector{block: IndexBlock, indices: append([]int(nil), idx...)}
}

// ParseSelector maps the tags "state" and "control" to their selectors.
func ParseSelector(tag string) (Selector, error) {
	switch tag {
	case "state":
		return SelectState(), nil
	case "control":
		return SelectControl(), nil
	default:
		return Selector{}, fmt.Errorf("constraints: unknown selector %q", tag)
	}
}

// ResolveSelector returns the concrete positions of sel inside z = (x, u)
// for n states and m controls.
func ResolveSelector(sel Selector, n, m int) ([]int, error) {
	switch sel.block {
	case StateBlock:
		return span(0, n), nil
	case ControlBlock:
		return span(n, n+m), nil
	default:
		if len(sel.indices) == 0 {
			return nil, fmt.Errorf("constraints: empty index selector")
		}
		seen := make(map[int]bool, len(sel.indices))
		for _, i := range sel.indices {
			if i < 0 || i >= n+m {
				return nil, fmt.Errorf("constraints: index %d outside [0, %d)", i, n+m)
			}
			if seen[i] {
				return nil, fmt.Errorf("constraints: duplicate index %d", i)
			}
			seen[i] = true
		}
		return append([]int(nil), sel.indices...), nil
	}
}

// domainOf reports which parts of z the resolved indices touch.
func domainOf(idx []int, n int) Domain {
	var hasX, hasU bool
	for _, i := range idx {
		if i < n {
			hasX = true
		} else {
			hasU = true
		}
	}
	switch {
	case hasX && hasU:
		return Stage
	case hasU:
		return ControlOnly
	default:
		return StateOnly
	}
}

func span(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
