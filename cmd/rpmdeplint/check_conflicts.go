package main

import (
	"os"

	"github.com/spf13/cobra"
)

var checkConflictsCmd = &cobra.Command{
	Use:   "check-conflicts RPMPATH...",
	Short: "Report undeclared file conflicts involving the given PUTs (spec §4.4.3)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckConflicts,
}

func runCheckConflicts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := buildSession(ctx, args)
	if err != nil {
		return err
	}

	conflicts, err := sess.analyzer.FindConflicts(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		printBlock(os.Stderr, "Undeclared file conflicts:", conflicts)
		return errDefectsFound
	}
	return nil
}
