package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"squadutils/internal/artifact"
	"squadutils/internal/invocation"
	"squadutils/internal/logging"
)

var planFlags struct {
	name    string
	output  string
	workers int
}

var planCmd = &cobra.Command{
	Use:   "plan <reproducer-file|url>",
	Short: "Convert tuxsuite test submissions into a tuxsuite plan",
	Long: "Convert every 'tuxsuite test submit' line of a reproducer script into a test\n" +
		"entry of a tuxsuite plan. Lines that cannot be parsed are reported and skipped.",
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planFlags.name, "name", "", "Plan name (required)")
	f.StringVarP(&planFlags.output, "output", "o", "", "Write the plan here instead of stdout")
	f.IntVar(&planFlags.workers, "workers", 4, "Lines converted concurrently")

	_ = planCmd.MarkFlagRequired("name")
}

func runPlan(cmd *cobra.Command, args []string) error {
	logger := logging.New("plan")
	data, err := artifact.New(artifact.WithLogger(logger)).Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	entries, lineErrs, err := invocation.ConvertLines(cmd.Context(), lines, planFlags.workers)
	if err != nil {
		return err
	}
	for _, le := range lineErrs {
		logger.Warn("skipping line", "line", le.Line, "error", le.Err)
	}
	for i, e := range entries {
		for _, c := range e.Conflicts {
			logger.Warn("repeated entry ignored", "test", i+1, "conflict", c)
		}
	}
	if len(entries) == 0 {
		if len(lineErrs) > 0 {
			return fmt.Errorf("no usable tuxsuite test submissions in %s: %w", args[0], lineErrs[0])
		}
		return fmt.Errorf("no tuxsuite test submissions in %s", args[0])
	}

	yml, err := invocation.NewPlan(planFlags.name, entries).Marshal()
	if err != nil {
		return err
	}
	if planFlags.output == "" {
		_, err = cmd.OutOrStdout().Write(yml)
		return err
	}
	if err := artifact.Save(planFlags.output, yml, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tests to %s\n", len(entries), planFlags.output)
	return nil
}
