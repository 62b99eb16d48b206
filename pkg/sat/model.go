package sat

import (
	"slices"
	"strconv"
	"strings"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/pkg/literal"
	"github.com/samber/lo"
)

// Literal is one named proposition together with its truth value in a model.
type Literal struct {
	Name  string
	Value bool
}

func (l Literal) String() string {
	if l.Value {
		return l.Name
	}
	return "¬" + l.Name
}

// Model is one satisfying assignment in the order the solver emitted it.
type Model []Literal

func (model Model) Names() []string {
	return lo.Map(model, func(l Literal, _ int) string { return l.Name })
}

// True returns the names of the literals assigned true.
func (model Model) True() []string {
	return lo.FilterMap(model, func(l Literal, _ int) (string, bool) { return l.Name, l.Value })
}

func (model Model) String() string {
	return strings.Join(lo.Map(model, func(l Literal, _ int) string { return l.String() }), " ")
}

func (model Model) clone() Model {
	return slices.Clone(model)
}

// parseModel turns one round of solver output into a Model. Without a table
// every token is a literal name, "-name" being its negation. With a table every
// token is a signed code. In both forms 0 terminates the clause-style line.
func parseModel(line string, table *literal.Table) (Model, error) {
	tokens := strings.Fields(line)
	model := make(Model, 0, len(tokens))

	for _, token := range tokens {
		if token == "0" {
			continue
		}
		if table == nil {
			if name, negated := strings.CutPrefix(token, "-"); negated && name != "" {
				model = append(model, Literal{Name: name, Value: false})
			} else {
				model = append(model, Literal{Name: token, Value: true})
			}
			continue
		}

		code, err := strconv.Atoi(token)
		if err != nil {
			return nil, failure.Newf(failure.UnknownLiteralCode, "solver token %q is not a literal code", token)
		}
		value := code > 0
		if code < 0 {
			code = -code
		}
		name, ok := table.Name(code)
		if !ok {
			return nil, failure.Newf(failure.UnknownLiteralCode, "solver emitted code %d which is not in the literal table", code)
		}
		model = append(model, Literal{Name: name, Value: value})
	}

	return model, nil
}
