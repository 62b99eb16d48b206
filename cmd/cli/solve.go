package main

import (
	"errors"
	"fmt"

	"github.com/limaJavier/modelbrowser/pkg/literal"
	"github.com/limaJavier/modelbrowser/pkg/sat"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var solveCmd = &cobra.Command{
	Use:   "solve <clause-file>",
	Short: "Enumerate the models of a clause file through the solver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tablePath, _ := cmd.Flags().GetString("table")
		limit, _ := cmd.Flags().GetInt("limit")
		verify, _ := cmd.Flags().GetBool("verify")
		clauseFile := args[0]

		// Validate arguments
		if limit < 0 {
			return fmt.Errorf("limit must not be negative: %v", limit)
		} else if verify && tablePath == "" {
			return errors.New("--verify needs --table to map models back to codes")
		}

		var table *literal.Table
		var instance sat.SAT
		var err error
		if tablePath != "" {
			if table, err = literal.ParseFile(tablePath); err != nil {
				return err
			}
		}
		if verify {
			if instance, err = sat.ParseDIMACSFile(clauseFile); err != nil {
				return err
			}
		}

		session, err := sat.Open(cfg.Solver.Command, clauseFile, append(sessionOptions(), sat.WithTable(table))...)
		if err != nil {
			return err
		}
		defer session.Close()

		count := 0
		for limit == 0 || count < limit {
			model, ok, err := session.Next(cmd.Context())
			if err != nil {
				return err
			} else if !ok {
				break
			}
			renderModel(model, count)
			count++
		}

		if verify {
			// Replays the buffered models, the solver is not asked again
			session.Rewind()
			for session.Cursor() < count {
				model, _, err := session.Next(cmd.Context())
				if err != nil {
					return err
				}
				solution, err := sat.ModelSolution(model, table)
				if err != nil {
					return err
				}
				if !instance.Satisfied(solution) {
					return fmt.Errorf("model %d does not satisfy %v", session.Cursor(), clauseFile)
				}
			}
			pterm.Info.Printf("%d model(s) verified\n", count)
		}

		switch {
		case count == 0:
			pterm.Warning.Println("unsatisfiable: the solver produced no model")
		case session.State() == sat.StateExhausted:
			pterm.Success.Printf("%d model(s), no more models\n", count)
		default:
			pterm.Success.Printf("%d model(s), limit reached\n", count)
		}
		return session.Close()
	},
}

func init() {
	rootCmd.AddCommand(solveCmd)

	solveCmd.Flags().String("table", "", "Literal table mapping solver codes to names; without it tokens are read as names")
	solveCmd.Flags().Int("limit", 0, "Stop after this many models, 0 means all")
	solveCmd.Flags().Bool("verify", false, "Check every model against the clause file")
}
