package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/limaJavier/modelbrowser/pkg/document"
	"github.com/limaJavier/modelbrowser/pkg/navigation"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type commandKind int

const (
	commandAction commandKind = iota
	commandSet
	commandList
	commandHelp
	commandQuit
)

type browseCommand struct {
	kind   commandKind
	action navigation.Action
	index  int
	text   string
}

// parseBrowseCommand reads one line typed at the browse prompt. Formula
// numbers are 1-based.
func parseBrowseCommand(line string) (browseCommand, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	action := func(event navigation.Event) (browseCommand, error) {
		return browseCommand{kind: commandAction, action: navigation.Action{Event: event}}, nil
	}
	number := func() (int, string, error) {
		value, text, _ := strings.Cut(rest, " ")
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return 0, "", fmt.Errorf("%v expects a formula number, got %q", name, value)
		}
		return n - 1, strings.TrimSpace(text), nil
	}

	switch strings.ToLower(name) {
	case "run", "r":
		return action(navigation.RunTest)
	case "next", "n":
		return action(navigation.ShowNext)
	case "prev", "previous", "p":
		return action(navigation.ShowPrevious)
	case "edit", "e":
		return action(navigation.ReturnToEditor)
	case "add", "a":
		return browseCommand{kind: commandAction, action: navigation.Action{Event: navigation.AddFormula, Text: rest}}, nil
	case "import", "i":
		if rest == "" {
			return browseCommand{}, errors.New("import expects a file path")
		}
		return browseCommand{kind: commandAction, action: navigation.Action{Event: navigation.ImportFormulas, Path: rest}}, nil
	case "remove", "rm":
		index, _, err := number()
		if err != nil {
			return browseCommand{}, err
		}
		return browseCommand{kind: commandAction, action: navigation.Action{Event: navigation.RemoveFormula, Index: index}}, nil
	case "set", "s":
		index, text, err := number()
		if err != nil {
			return browseCommand{}, err
		}
		return browseCommand{kind: commandSet, index: index, text: text}, nil
	case "list", "ls":
		return browseCommand{kind: commandList}, nil
	case "help", "?", "":
		return browseCommand{kind: commandHelp}, nil
	case "quit", "q", "exit":
		return browseCommand{kind: commandQuit}, nil
	}
	return browseCommand{}, fmt.Errorf("unknown command %q, type help", name)
}

var browseCmd = &cobra.Command{
	Use:   "browse [source]",
	Short: "Edit formulas, run them and browse their models interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := document.New()
		opener := navigation.SolverOpener{Command: cfg.Solver.Command, Options: sessionOptions()}
		machine := navigation.New(doc, newTranslationService(), opener,
			navigation.WithWorkDir(cfg.WorkDir),
			navigation.WithLogger(logger),
			navigation.WithMetrics(observer),
		)
		defer machine.Close()

		source := "formulas"
		if len(args) == 1 {
			source = args[0]
			if _, err := machine.ImportFormulas(source); err != nil {
				return err
			}
		}
		interactive := term.IsTerminal(int(os.Stdin.Fd()))

		renderFormulas(doc.Formulas())
		renderHelp(machine.AllowedEvents())

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			if interactive {
				pterm.Printf("%v > ", machine.State())
			}
			if !scanner.Scan() {
				break
			}
			command, err := parseBrowseCommand(scanner.Text())
			if err != nil {
				pterm.Warning.Println(err)
				continue
			}

			switch command.kind {
			case commandQuit:
				return machine.Close()
			case commandList:
				renderFormulas(doc.Formulas())
			case commandHelp:
				renderHelp(machine.AllowedEvents())
			case commandSet:
				if !machine.State().Editing() {
					pterm.Warning.Println("return to the editor before changing formulas")
					continue
				}
				if err := doc.Set(command.index, command.text); err != nil {
					pterm.Warning.Println(err)
				}
			case commandAction:
				var spinner *pterm.SpinnerPrinter
				if interactive && command.action.Event == navigation.RunTest {
					spinner, _ = pterm.DefaultSpinner.Start("translating and solving")
				}
				reply := <-machine.Dispatch(cmd.Context(), command.action)
				if spinner != nil {
					_ = spinner.Stop()
				}

				if errors.Is(reply.Err, navigation.ErrInvalidTransition) {
					pterm.Warning.Printf("%v is not available now\n", command.action.Event)
					continue
				} else if reply.Err != nil {
					renderActionError(command.action.Event, reply.Err)
					continue
				}
				renderOutcome(source, reply.Outcome)
				if command.action.Event == navigation.AddFormula || command.action.Event == navigation.ImportFormulas || command.action.Event == navigation.RemoveFormula {
					renderFormulas(doc.Formulas())
				}
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		return machine.Close()
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
