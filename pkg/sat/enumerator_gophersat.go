package sat

import (
	"io"

	"github.com/crillab/gophersat/solver"
	"github.com/limaJavier/modelbrowser/internal/failure"
)

type gophersatEnumerator struct {
	solver    *solver.Solver
	exhausted bool
}

func newGophersatEnumerator(r io.Reader) (*gophersatEnumerator, error) {
	problem, err := solver.ParseCNF(r)
	if err != nil {
		return nil, failure.Wrap(failure.Protocol, "cannot parse clause file", err)
	}
	return &gophersatEnumerator{solver: solver.New(problem)}, nil
}

func (e *gophersatEnumerator) Next() (Solution, bool, error) {
	if e.exhausted || e.solver.Solve() != solver.Sat {
		e.exhausted = true
		return nil, false, nil
	}

	model := e.solver.Model()
	solution := make(Solution, len(model))
	blocking := make([]solver.Lit, len(model))
	for i, value := range model {
		variable := i + 1
		if value {
			solution[i] = int64(variable)
			blocking[i] = solver.IntToLit(int32(-variable))
		} else {
			solution[i] = -int64(variable)
			blocking[i] = solver.IntToLit(int32(variable))
		}
	}

	if len(blocking) == 0 {
		// The only model of a problem without variables
		e.exhausted = true
	} else {
		e.solver.AppendClause(solver.NewClause(blocking))
	}
	return solution, true, nil
}
