package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func validatePaperCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-paper FILE...",
		Short: "Check catalog or question upload files offline",
		Long: "Runs the same strict checks as the admin upload endpoint: every " +
			"question's options must decode and its answer key must resolve to " +
			"exactly one option. No database is needed.",
		Args: cobra.MinimumNArgs(1),
		RunE: runValidatePaper,
	}
}

func runValidatePaper(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		f, err := openSeed(path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		if len(f.Exams) == 0 && len(f.Questions) == 0 {
			fmt.Fprintf(out, "%s: no exams or questions\n", path)
			failed++
			continue
		}
		problems := checkSeed(f)
		for _, p := range problems {
			fmt.Fprintf(out, "%s: %v\n", path, p)
		}
		if len(problems) > 0 {
			failed++
			continue
		}
		fmt.Fprintf(out, "%s: ok\n", path)
	}
	if failed > 0 {
		return errors.New("validation failed")
	}
	return nil
}
