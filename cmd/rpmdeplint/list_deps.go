package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	deplint "github.com/default-to-open/rpmdeplint"
)

var listDepsCmd = &cobra.Command{
	Use:   "list-deps RPMPATH...",
	Short: "Run check-sat, then print each PUT's transitive dependency closure",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runListDeps,
}

func runListDeps(cmd *cobra.Command, args []string) error {
	sess, err := buildSession(cmd.Context(), args)
	if err != nil {
		return err
	}

	ok, set := sess.analyzer.TryToInstallAll()
	if !ok {
		printBlock(os.Stderr, "Problems with dependency set:", set.OverallProblems())
		return errDefectsFound
	}

	info := set.PackageDependencies()
	puts := make([]*deplint.Package, len(sess.puts))
	copy(puts, sess.puts)
	sort.Slice(puts, func(i, j int) bool { return puts[i].NEVRA() < puts[j].NEVRA() })

	for _, put := range puts {
		names := map[string]struct{}{put.NEVRA(): {}}
		for _, dep := range info[put.NEVRA()].Dependencies {
			names[dep.NEVRA()] = struct{}{}
		}
		sorted := make([]string, 0, len(names))
		for n := range names {
			sorted = append(sorted, n)
		}
		sort.Strings(sorted)

		fmt.Printf("%s has %d dependencies:\n", put.NEVRA(), len(sorted))
		for _, n := range sorted {
			fmt.Printf("\t%s\n", n)
		}
		fmt.Println()
	}
	return nil
}
