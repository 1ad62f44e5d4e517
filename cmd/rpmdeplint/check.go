package main

import (
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check RPMPATH...",
	Short: "Run all four dependency checks and aggregate their diagnostics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := buildSession(ctx, args)
	if err != nil {
		return err
	}

	defects := false

	if ok, set := sess.analyzer.TryToInstallAll(); !ok {
		defects = true
		printBlock(os.Stderr, "Problems with dependency set:", set.OverallProblems())
	}

	if problems := sess.analyzer.FindRepoclosureProblems(ctx); len(problems) > 0 {
		defects = true
		printBlock(os.Stderr, "Dependency problems with repos:", problems)
	}

	conflicts, err := sess.analyzer.FindConflicts(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		defects = true
		printBlock(os.Stderr, "Undeclared file conflicts:", conflicts)
	}

	if problems := sess.analyzer.FindUpgradeProblems(); len(problems) > 0 {
		defects = true
		printBlock(os.Stderr, "Upgrade problems:", problems)
	}

	if defects {
		return errDefectsFound
	}
	return nil
}
