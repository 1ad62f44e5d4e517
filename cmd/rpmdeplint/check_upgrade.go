package main

import (
	"os"

	"github.com/spf13/cobra"
)

var checkUpgradeCmd = &cobra.Command{
	Use:   "check-upgrade RPMPATH...",
	Short: "Report upgrade/obsolete regressions the given PUTs would suffer (spec §4.4.4)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckUpgrade,
}

func runCheckUpgrade(cmd *cobra.Command, args []string) error {
	sess, err := buildSession(cmd.Context(), args)
	if err != nil {
		return err
	}

	if problems := sess.analyzer.FindUpgradeProblems(); len(problems) > 0 {
		printBlock(os.Stderr, "Upgrade problems:", problems)
		return errDefectsFound
	}
	return nil
}
