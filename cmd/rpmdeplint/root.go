package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/quay/zlog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	deplint "github.com/default-to-open/rpmdeplint"
)

var rootCmd = &cobra.Command{
	Use:   "rpmdeplint",
	Short: "Find dependency, conflict, and upgrade defects in a set of RPMs",
	Long: `rpmdeplint checks a set of candidate RPM packages ("PUTs") against one
or more package repositories, reporting unsatisfiable dependencies, repo
closure breakage, undeclared file conflicts, and upgrade regressions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// commonFlags is shared by every check-* / list-deps subcommand; bound as
// persistent flags on rootCmd so each subcommand inherits them, matching
// the cobra PersistentFlags idiom the corpus uses for its own RPM-adjacent
// CLI tool.
type commonFlags struct {
	repos           []string
	reposFromSystem bool
	arch            string
	debug           bool
	configPath      string
}

var flags commonFlags

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&flags.repos, "repo", nil,
		"NAME,PATH_OR_URL repo definition (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flags.reposFromSystem, "repos-from-system", false,
		"also read /etc/yum.conf and /etc/yum.repos.d/*.repo")
	rootCmd.PersistentFlags().StringVar(&flags.arch, "arch", "",
		"target architecture (auto-determined from the PUTs if omitted)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "",
		"optional path to a YAML config file supplying the cache directory and a default --arch value (it supplies no --repo values)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(checkCmd, checkSatCmd, checkRepoclosureCmd,
		checkConflictsCmd, checkUpgradeCmd, listDepsCmd, manCmd)
}

func initLogging() {
	level := zerolog.InfoLevel
	if flags.debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
		With().Timestamp().Logger().Level(level)
	zlog.Set(&log)
}

// Execute runs the command tree and translates the returned error into the
// stable exit-code contract of spec.md §6:
//
//	0 — no defects
//	1 — operational failure (repodata download, unreadable RPM, ...)
//	2 — CLI usage error
//	3 — defects found; diagnostics already written to stderr
func Execute() int {
	ctx := zlog.ContextWithValues(context.Background(), "component", "cmd/rpmdeplint")

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errDefectsFound):
		return 3
	}

	// Only the three named operational-failure kinds get exit 1; every
	// other error (a malformed --repo, an unknown flag from cobra's own
	// flag parsing, an incompatible arch set) is a usage error.
	var unreadable *deplint.UnreadablePackageError
	var repoErr *deplint.RepoDownloadError
	var pkgErr *deplint.PackageDownloadError
	if errors.As(err, &unreadable) || errors.As(err, &repoErr) || errors.As(err, &pkgErr) {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	fmt.Fprintf(os.Stderr, "usage: %s\n%s\n", rootCmd.UseLine(), err.Error())
	return 2
}
