package navigation

import (
	"context"
	"fmt"
)

// Action is an event together with its argument.
type Action struct {
	Event Event
	// Text is the formula added by AddFormula.
	Text string
	// Path is the file read by ImportFormulas.
	Path string
	// Index is the formula removed by RemoveFormula.
	Index int
}

type Reply struct {
	Outcome Outcome
	Err     error
}

// Apply performs the action on the caller's goroutine.
func (m *Machine) Apply(ctx context.Context, action Action) (Outcome, error) {
	switch action.Event {
	case RunTest:
		return m.RunTest(ctx)
	case ShowNext:
		return m.ShowNext(ctx)
	case ShowPrevious:
		return m.ShowPrevious()
	case ReturnToEditor:
		return m.ReturnToEditor()
	case AddFormula:
		return m.AddFormula(action.Text)
	case ImportFormulas:
		return m.ImportFormulas(action.Path)
	case RemoveFormula:
		return m.RemoveFormula(action.Index)
	}
	return Outcome{}, fmt.Errorf("%w: unknown event %v", ErrInvalidTransition, action.Event)
}

// Dispatch performs the action on its own goroutine. The returned channel
// receives exactly one Reply and is then closed.
func (m *Machine) Dispatch(ctx context.Context, action Action) <-chan Reply {
	replies := make(chan Reply, 1)
	go func() {
		defer close(replies)
		outcome, err := m.Apply(ctx, action)
		replies <- Reply{Outcome: outcome, Err: err}
	}()
	return replies
}
