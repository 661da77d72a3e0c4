package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openlms/sequent"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sequent",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sequent version %s\n", sequent.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
