package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate <source>",
	Short: "Translate a formula file and report its diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetBool("keep")
		source := args[0]

		result, err := newTranslationService().Translate(cmd.Context(), source)
		if err != nil {
			return err
		}
		renderDiagnostics(source, result.Diagnostics())
		if !result.Success {
			return fmt.Errorf("%v: %d error(s) in %v", result.Status, len(result.Errors()), source)
		}

		pterm.Success.Printf("%v translated, %d literal(s)\n", source, result.LiteralTable().Len())
		if !keep {
			return result.Cleanup()
		}
		pterm.Info.Printf("clause file: %v\n", result.ClauseFilePath())
		pterm.Info.Printf("table file: %v\n", result.TableFilePath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().Bool("keep", false, "Keep the clause and table files and print their paths")
}
