package navigation

import (
	"errors"
	"fmt"
	"slices"
)

type State int

const (
	// EditSingle: exactly one formula is being edited.
	EditSingle State = iota
	// EditMultiple: two or more formulas are being edited.
	EditMultiple
	// SingleResult: the solver produced exactly one model.
	SingleResult
	// FirstResult: the first of two or more models is shown.
	FirstResult
	// InterResult: a model strictly after the first is shown and another one is known to follow.
	InterResult
	// LastResult: the shown model is the last the solver could produce.
	LastResult
)

func (state State) String() string {
	switch state {
	case EditSingle:
		return "edit_single"
	case EditMultiple:
		return "edit_multiple"
	case SingleResult:
		return "single_result"
	case FirstResult:
		return "first_result"
	case InterResult:
		return "inter_result"
	case LastResult:
		return "last_result"
	}
	return fmt.Sprintf("state(%d)", int(state))
}

// Editing reports whether the state belongs to the editor view.
func (state State) Editing() bool {
	return state == EditSingle || state == EditMultiple
}

type Event int

const (
	RunTest Event = iota
	ShowNext
	ShowPrevious
	ReturnToEditor
	AddFormula
	ImportFormulas
	RemoveFormula
)

func (event Event) String() string {
	switch event {
	case RunTest:
		return "run_test"
	case ShowNext:
		return "show_next"
	case ShowPrevious:
		return "show_previous"
	case ReturnToEditor:
		return "return_to_editor"
	case AddFormula:
		return "add_formula"
	case ImportFormulas:
		return "import_formulas"
	case RemoveFormula:
		return "remove_formula"
	}
	return fmt.Sprintf("event(%d)", int(event))
}

// transitions lists the events each state accepts. Anything else is rejected.
var transitions = map[State][]Event{
	EditSingle:   {RunTest, AddFormula, ImportFormulas},
	EditMultiple: {RunTest, AddFormula, ImportFormulas, RemoveFormula},
	SingleResult: {ReturnToEditor},
	FirstResult:  {ShowNext, ReturnToEditor},
	InterResult:  {ShowNext, ShowPrevious, ReturnToEditor},
	LastResult:   {ShowPrevious, ReturnToEditor},
}

func allowed(state State, event Event) bool {
	return slices.Contains(transitions[state], event)
}

// editState is the editor state matching a formula count.
func editState(count int) State {
	if count > 1 {
		return EditMultiple
	}
	return EditSingle
}

var ErrInvalidTransition = errors.New("invalid transition")

// TransitionError is returned when an event is dispatched in a state that
// does not accept it.
type TransitionError struct {
	State State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %v is not allowed in %v", ErrInvalidTransition, e.Event, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
