package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sequent",
	Short: "Sequent is a sequencing and navigation engine for learning content",
	Long:  `Sequent compiles a course manifest into an activity tree and mediates learner navigation against its sequencing rules.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("manifest", "m", "course.yaml", "Path to the course manifest (YAML or JSON)")
}
