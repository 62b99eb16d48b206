package sat

import (
	"io"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
	"github.com/limaJavier/modelbrowser/internal/failure"
)

type giniEnumerator struct {
	gini      *gini.Gini
	exhausted bool
}

func newGiniEnumerator(r io.Reader) (*giniEnumerator, error) {
	g, err := gini.NewDimacs(r)
	if err != nil {
		return nil, failure.Wrap(failure.Protocol, "cannot parse clause file", err)
	}
	return &giniEnumerator{gini: g}, nil
}

func (e *giniEnumerator) Next() (Solution, bool, error) {
	// 1 is sat, -1 unsat, 0 cancelled
	if e.exhausted || e.gini.Solve() != 1 {
		e.exhausted = true
		return nil, false, nil
	}

	maxVar := e.gini.MaxVar()
	solution := make(Solution, 0, int(maxVar))
	for v := z.Var(1); v <= maxVar; v++ {
		if e.gini.Value(v.Pos()) {
			solution = append(solution, int64(v))
			e.gini.Add(v.Neg())
		} else {
			solution = append(solution, -int64(v))
			e.gini.Add(v.Pos())
		}
	}

	if maxVar == 0 {
		e.exhausted = true
	} else {
		e.gini.Add(z.LitNull)
	}
	return solution, true, nil
}
