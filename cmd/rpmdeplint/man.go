package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// manCmd generates man pages for the whole command tree. Hidden since it is
// a packaging-time tool, not part of the checked diagnostic surface.
var manCmd = &cobra.Command{
	Use:    "man DIR",
	Short:  "Generate man pages into DIR",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		header := &doc.GenManHeader{Title: "RPMDEPLINT", Section: "1"}
		return doc.GenManTree(rootCmd, header, args[0])
	},
}
