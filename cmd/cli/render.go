package main

import (
	"fmt"
	"strings"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/pkg/navigation"
	"github.com/limaJavier/modelbrowser/pkg/sat"
	"github.com/limaJavier/modelbrowser/pkg/translation"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

func renderDiagnostics(source string, diagnostics []translation.Diagnostic) {
	for _, diagnostic := range diagnostics {
		printer := lo.Ternary(diagnostic.Severity == translation.SeverityError, pterm.Error, pterm.Warning)
		printer.Printf("%v:%d:%d: %v\n", source, diagnostic.Line, diagnostic.Column, diagnostic.Message)
	}
}

// describeActionError tells a misbehaving translator or solver, which only a
// configuration change fixes, from errors worth retrying.
func describeActionError(event navigation.Event, err error) (string, bool) {
	if failure.Fatal(err) {
		return fmt.Sprintf("%v failed: %v (check the translator and solver commands in the configuration)", event, err), true
	}
	return fmt.Sprintf("%v failed, try again: %v", event, err), false
}

func renderActionError(event navigation.Event, err error) {
	message, fatal := describeActionError(event, err)
	lo.Ternary(fatal, &pterm.Error, &pterm.Warning).Println(message)
}

func formatModel(model sat.Model) string {
	if len(model) == 0 {
		return pterm.FgGray.Sprint("(no literals)")
	}
	return strings.Join(lo.Map(model, func(l sat.Literal, _ int) string {
		if l.Value {
			return pterm.FgGreen.Sprint(l.Name)
		}
		return pterm.FgGray.Sprint("¬" + l.Name)
	}), " ")
}

func renderModel(model sat.Model, index int) {
	pterm.Printf("%v %v\n", pterm.Bold.Sprintf("model %d:", index+1), formatModel(model))
}

func renderFormulas(formulas []string) {
	data := pterm.TableData{{"#", "Formula"}}
	for i, formula := range formulas {
		data = append(data, []string{fmt.Sprint(i + 1), lo.Ternary(formula == "", "(empty)", formula)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err)
	}
}

// stateHints describes each navigation state for the prompt.
var stateHints = map[navigation.State]string{
	navigation.EditSingle:   "editing one formula",
	navigation.EditMultiple: "editing several formulas",
	navigation.SingleResult: "the only model",
	navigation.FirstResult:  "first model, more follow",
	navigation.InterResult:  "more models follow",
	navigation.LastResult:   "last model",
}

func renderOutcome(source string, outcome navigation.Outcome) {
	if outcome.Translation != nil {
		renderDiagnostics(source, outcome.Translation.Diagnostics())
		if !outcome.Translation.Success {
			pterm.Error.Printf("%v: fix the formulas and run again\n", outcome.Translation.Status)
			return
		}
	}

	switch {
	case outcome.Unsatisfiable:
		pterm.Warning.Println("unsatisfiable: the solver produced no model")
	case outcome.Model != nil:
		renderModel(outcome.Model, outcome.Index)
		pterm.Info.Println(stateHints[outcome.To])
	default:
		pterm.Info.Println(stateHints[outcome.To])
	}
}

func renderHelp(allowed []navigation.Event) {
	commands := map[navigation.Event]string{
		navigation.RunTest:        "run             translate and solve the formulas",
		navigation.ShowNext:       "next            show the next model",
		navigation.ShowPrevious:   "prev            show the previous model",
		navigation.ReturnToEditor: "edit            go back to the formulas",
		navigation.AddFormula:     "add <text>      append a formula",
		navigation.ImportFormulas: "import <path>   replace the formulas with a file's blocks",
		navigation.RemoveFormula:  "remove <n>      remove the n-th formula",
	}
	for _, event := range allowed {
		pterm.Println("  " + commands[event])
	}
	pterm.Println("  set <n> <text>  replace the n-th formula while editing")
	pterm.Println("  list            show the formulas")
	pterm.Println("  quit            leave")
}
