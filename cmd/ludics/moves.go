package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/ludics/internal/presentation/tui"
)

func newMovesCmd(a *app) *cobra.Command {
	var dialogueID string
	cmd := &cobra.Command{
		Use:   "moves",
		Short: "Compile the dialogue moves of a fixture into acts",
		Long: `Plays the moves listed in the fixture (ASSERT, WHY, GROUNDS, CONCEDE, RETRACT,
CLOSE) one by one, appending the acts they compile to on the dialogue's P and O
designs. Stops at the first illegal move.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.loaded == nil {
				return fmt.Errorf("moves requires --fixture")
			}
			if dialogueID == "" {
				dialogueID = a.loaded.Dialogue
			}
			eng, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			dl, err := eng.OpenDialogue(cmd.Context(), dialogueID)
			if err != nil {
				return err
			}
			var applyErr error
			for i, m := range a.loaded.Moves {
				if _, err := eng.ApplyMove(cmd.Context(), dl, m); err != nil {
					applyErr = fmt.Errorf("move %d (%s): %w", i+1, m.Kind, err)
					break
				}
			}
			if err := a.print(cmd, dl, func() string {
				return tui.MovesReport(dl.ID, dl.Steps, dl.Closed, dl.ClosedAt)
			}); err != nil {
				return err
			}
			return applyErr
		},
	}
	cmd.Flags().StringVar(&dialogueID, "dialogue", "", "Dialogue ID (default: the fixture's)")
	return cmd
}

