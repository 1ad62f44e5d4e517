package main

import (
	"os"

	"github.com/spf13/cobra"
)

var checkRepoclosureCmd = &cobra.Command{
	Use:   "check-repoclosure RPMPATH...",
	Short: "Report repo closure breakage caused by the given PUTs (spec §4.4.2)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheckRepoclosure,
}

func runCheckRepoclosure(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := buildSession(ctx, args)
	if err != nil {
		return err
	}

	if problems := sess.analyzer.FindRepoclosureProblems(ctx); len(problems) > 0 {
		printBlock(os.Stderr, "Dependency problems with repos:", problems)
		return errDefectsFound
	}
	return nil
}
