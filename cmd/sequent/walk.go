package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlms/sequent/internal/cli"
)

var walkCmd = &cobra.Command{
	Use:   "walk",
	Short: "Walk a course interactively on the terminal",
	Long:  `Starts a sequencing session on the manifest and drives it from stdin: navigate, report progress, and watch rollup happen.`,
	Run: func(cmd *cobra.Command, args []string) {
		manifest, _ := cmd.Flags().GetString("manifest")
		browse, _ := cmd.Flags().GetBool("browse")
		debug, _ := cmd.Flags().GetBool("debug")

		opts := cli.WalkOptions{
			ManifestPath: manifest,
			Browse:       browse,
			Debug:        debug,
		}
		if err := cli.Walk(cmd.Context(), opts, os.Stdin, os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(walkCmd)
	walkCmd.Flags().Bool("browse", false, "Bypass sequencing restrictions (content inspection)")
	walkCmd.Flags().Bool("debug", false, "Enable debug logging")
}
