package sat

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/samber/lo"
)

// KissatPath is the kissat executable run by the kissat engine.
var KissatPath = "kissat"

// kissatEnumerator runs kissat once per model, feeding it the problem plus
// the blocking clauses of every model found so far.
type kissatEnumerator struct {
	problem   SAT
	exhausted bool
}

func newKissatEnumerator(r io.Reader) (*kissatEnumerator, error) {
	problem, err := ParseDIMACS(r)
	if err != nil {
		return nil, err
	}
	return &kissatEnumerator{problem: problem}, nil
}

func (e *kissatEnumerator) Next() (Solution, bool, error) {
	if e.exhausted {
		return nil, false, nil
	}

	cmd := exec.Command(KissatPath, "-q", "--relaxed")
	cmd.Stdin = strings.NewReader(e.problem.ToDIMACS())

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	// Exit-code of 10 stands for satisfiable and exit-code 20 stands for unsatisfiable
	if cmd.ProcessState == nil {
		return nil, false, failure.Wrap(failure.LaunchFailure, "cannot start kissat", err)
	} else if code := cmd.ProcessState.ExitCode(); code == 20 {
		e.exhausted = true
		return nil, false, nil
	} else if code != 10 {
		return nil, false, failure.Newf(failure.Protocol, "kissat exited with code %d: %v", code, stderr.String())
	}

	solution, err := parseSolution(stdout.String())
	if err != nil {
		return nil, false, err
	}

	if len(solution) == 0 {
		e.exhausted = true
	} else {
		e.problem.Clauses = append(e.problem.Clauses, lo.Map(solution, func(literal int64, _ int) int64 { return -literal }))
	}
	return solution, true, nil
}

// parseSolution collects the values of the "v" lines of a solver output,
// dropping the terminating 0.
func parseSolution(output string) (Solution, error) {
	values := lo.FlatMap(
		lo.Filter(strings.Split(output, "\n"), func(line string, _ int) bool {
			return len(line) > 0 && line[0] == 'v'
		}),
		func(line string, _ int) []string {
			return strings.Fields(line[1:])
		},
	)

	solution := make(Solution, 0, len(values))
	for _, valueStr := range values {
		value, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return nil, failure.Wrap(failure.Protocol, fmt.Sprintf("invalid literal %q in solver output", valueStr), err)
		}
		if value == 0 {
			break
		}
		solution = append(solution, value)
	}
	return solution, nil
}
