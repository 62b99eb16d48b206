package sat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/pkg/literal"
)

// Solution is an assignment as signed DIMACS codes.
type Solution []int64

type SAT struct {
	Variables uint64
	Clauses   [][]int64
}

func (s SAT) ToDIMACS() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "p cnf %d %d\n", s.Variables, len(s.Clauses))
	for _, clause := range s.Clauses {
		for _, literal := range clause {
			fmt.Fprintf(&builder, "%d ", literal)
		}
		builder.WriteString("0\n")
	}
	return builder.String()
}

// Satisfied reports whether the solution has no duplicate or contradictory
// literals and satisfies every clause.
func (s SAT) Satisfied(solution Solution) bool {
	literals := make(map[int64]bool)
	for _, literal := range solution {
		if literals[literal] || literals[-literal] {
			return false
		}
		literals[literal] = true
	}

	for _, clause := range s.Clauses {
		satisfied := false
		for _, literal := range clause {
			if literals[literal] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}

	return true
}

func ParseDIMACS(r io.Reader) (SAT, error) {
	var sat SAT
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var clause []int64
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip comments
		if line == "" || strings.HasPrefix(line, "c") {
			continue
		}
		// SATLIB end marker
		if strings.HasPrefix(line, "%") {
			break
		}
		// Problem line
		if strings.HasPrefix(line, "p") {
			parts := strings.Fields(line)
			if len(parts) != 4 || parts[1] != "cnf" {
				return SAT{}, failure.Newf(failure.Protocol, "invalid problem line: %s", line)
			}
			vars, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				return SAT{}, failure.Wrap(failure.Protocol, "invalid variable count", err)
			}
			sat.Variables = vars
			continue
		}
		// Clauses may span several lines, 0 terminates them
		for _, litStr := range strings.Fields(line) {
			lit, err := strconv.ParseInt(litStr, 10, 64)
			if err != nil {
				return SAT{}, failure.Wrap(failure.Protocol, fmt.Sprintf("invalid literal %q", litStr), err)
			}
			if lit == 0 {
				sat.Clauses = append(sat.Clauses, clause)
				clause = nil
				continue
			}
			clause = append(clause, lit)
		}
	}
	if err := scanner.Err(); err != nil {
		return SAT{}, failure.Wrap(failure.IO, "cannot read clause file", err)
	}
	if len(clause) > 0 {
		sat.Clauses = append(sat.Clauses, clause)
	}

	return sat, nil
}

func ParseDIMACSFile(path string) (SAT, error) {
	file, err := os.Open(path)
	if err != nil {
		return SAT{}, failure.Wrap(failure.IO, "cannot open clause file", err)
	}
	defer file.Close()
	return ParseDIMACS(file)
}

// ModelSolution maps a model back to signed codes through the table.
func ModelSolution(model Model, table *literal.Table) (Solution, error) {
	solution := make(Solution, 0, len(model))
	for _, l := range model {
		code, ok := table.Code(l.Name)
		if !ok {
			return nil, failure.Newf(failure.UnknownLiteralCode, "literal %q is not in the literal table", l.Name)
		}
		if l.Value {
			solution = append(solution, int64(code))
		} else {
			solution = append(solution, -int64(code))
		}
	}
	return solution, nil
}
