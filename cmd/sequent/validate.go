package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlms/sequent/internal/validator"
	"github.com/openlms/sequent/pkg/adapters/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a course manifest for consistency",
	Long:  `Parses the manifest and reports structural problems (duplicate identifiers, empty organizations, cyclic nesting) and definitions the engine would degrade.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("manifest")
		if len(args) > 0 {
			path = args[0]
		}
		if err := runValidate(cmd.Context(), path); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Manifest is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(ctx context.Context, path string) error {
	m, err := file.NewLoader(path).Load(ctx)
	if err != nil {
		return err
	}

	report := validator.Validate(m)
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return report.Err()
}
