package main

import (
	"fmt"
	"io"

	"github.com/2beens/fitcoach/internal/catalog"

	"github.com/spf13/cobra"
)

var exercisesCmd = &cobra.Command{
	Use:   "exercises [id]",
	Short: "List the exercise catalog, or show one exercise",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return printExercise(cmd.OutOrStdout(), catalog.New(), args[0])
		}
		for _, e := range catalog.New().List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%d feedback messages)\n", e.ID, e.DisplayName, len(e.FeedbackScript))
		}
		return nil
	},
}

func printExercise(w io.Writer, c *catalog.Catalog, idStr string) error {
	id, ok := catalog.ParseExerciseID(idStr)
	if !ok {
		return fmt.Errorf("unknown exercise %q", idStr)
	}
	entry, _ := c.Lookup(id)

	fmt.Fprintf(w, "%s\n\nInstructions:\n", entry.DisplayName)
	for i, step := range entry.InstructionSteps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step)
	}
	fmt.Fprintln(w, "\nCommon errors:")
	for _, e := range entry.CommonErrors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	fmt.Fprintln(w, "\nFeedback script:")
	for i, msg := range entry.FeedbackScript {
		fmt.Fprintf(w, "  %d. %s\n", i+1, msg)
	}
	return nil
}
