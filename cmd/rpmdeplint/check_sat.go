package main

import (
	"os"

	"github.com/spf13/cobra"
)

var checkSatCmd = &cobra.Command{
	Use:   "check-sat RPMPATH...",
	Short: "Report unsatisfiable dependencies among the given PUTs (spec §4.4.1)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckSat,
}

func runCheckSat(cmd *cobra.Command, args []string) error {
	sess, err := buildSession(cmd.Context(), args)
	if err != nil {
		return err
	}

	ok, set := sess.analyzer.TryToInstallAll()
	if !ok {
		printBlock(os.Stderr, "Problems with dependency set:", set.OverallProblems())
		return errDefectsFound
	}
	return nil
}
