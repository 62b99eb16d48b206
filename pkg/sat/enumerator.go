package sat

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Engines accepted by NewEnumerator.
const (
	EngineGophersat = "gophersat"
	EngineGini      = "gini"
	EngineKissat    = "kissat"
)

// Enumerator produces the models of a CNF one at a time. Every model returned
// is blocked before the next search, so no model is produced twice.
type Enumerator interface {
	// Next returns the next model, or ok=false once none remain.
	Next() (solution Solution, ok bool, err error)
}

// NewEnumerator parses a DIMACS problem from r for the given engine.
func NewEnumerator(engine string, r io.Reader) (Enumerator, error) {
	switch engine {
	case EngineGophersat:
		return newGophersatEnumerator(r)
	case EngineGini:
		return newGiniEnumerator(r)
	case EngineKissat:
		return newKissatEnumerator(r)
	}
	return nil, fmt.Errorf("unknown engine %q, expected one of %v", engine, Engines())
}

func Engines() []string {
	return []string{EngineGophersat, EngineGini, EngineKissat}
}

// FormatSolution renders a solution the way the session protocol expects it:
// signed codes terminated by 0.
func FormatSolution(solution Solution) string {
	tokens := lo.Map(solution, func(literal int64, _ int) string { return strconv.FormatInt(literal, 10) })
	return strings.Join(append(tokens, "0"), " ")
}
