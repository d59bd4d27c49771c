package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squadutils/internal/format"
	"squadutils/internal/logging"
	"squadutils/internal/stability"
)

var suiteRunsFlags struct {
	suite  string
	builds int
	format string
}

var suiteRunsCmd = &cobra.Command{
	Use:   "suite-runs",
	Short: "Summarise a suite's results across every project of a group",
	Long: "List the projects of the group that run the suite. With --builds N, also show\n" +
		"per-environment status counts and test results for their N latest builds.",
	RunE: runSuiteRuns,
}

func init() {
	f := suiteRunsCmd.Flags()
	f.StringVar(&suiteRunsFlags.suite, "suite", "", "Suite slug, e.g. kunit (required)")
	f.IntVar(&suiteRunsFlags.builds, "builds", 0, "Latest builds to show per project (0 lists projects only)")
	f.StringVar(&suiteRunsFlags.format, "format", "text", "Output format: text, markdown or csv")

	_ = suiteRunsCmd.MarkFlagRequired("suite")
}

func runSuiteRuns(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(suiteRunsFlags.format)
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	runs, err := stability.SuiteRuns(cmd.Context(), client, settings.Squad.Group, suiteRunsFlags.suite, suiteRunsFlags.builds, logging.New("suite-runs"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no project in group %s has a suite named %q", settings.Squad.Group, suiteRunsFlags.suite)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), stability.RenderRuns(runs, mode))
	return err
}
