package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squadutils/internal/format"
	"squadutils/internal/logging"
	"squadutils/internal/stability"
)

var stableFlags struct {
	project      string
	builds       []string
	count        int
	environments []string
	pool         bool
	suites       []string
	tests        []string
	color        bool
	format       string
	parallel     int
}

var stableCmd = &cobra.Command{
	Use:   "stable",
	Short: "Show how consistently each test passes across builds",
	Long: "For every test, show the share of its results that passed in the selected\n" +
		"builds, per environment, followed by the share of fully stable tests per suite.",
	RunE: runStable,
}

func init() {
	f := stableCmd.Flags()
	f.StringVar(&stableFlags.project, "project", "", "SQUAD project slug (default from config)")
	f.StringSliceVar(&stableFlags.builds, "builds", nil, "Build versions to examine (default: the latest -n builds)")
	f.IntVarP(&stableFlags.count, "number", "n", stability.DefaultBuilds, "Number of latest builds when --builds is not given")
	f.StringSliceVar(&stableFlags.environments, "environments", nil, "Environment slugs to show (default: all)")
	f.BoolVar(&stableFlags.pool, "no-environments", false, "Pool results across environments")
	f.StringSliceVar(&stableFlags.suites, "suites", nil, "Suite slugs to include (default: all)")
	f.StringSliceVar(&stableFlags.tests, "tests", nil, "Test names to include (default: all)")
	f.BoolVar(&stableFlags.color, "color", false, "Colour ratios: green 100%, yellow above 80%, red otherwise")
	f.StringVar(&stableFlags.format, "format", "text", "Output format: text, markdown or csv")
	f.IntVar(&stableFlags.parallel, "parallel", 0, "Builds fetched concurrently (default from config)")

	stableCmd.MarkFlagsMutuallyExclusive("environments", "no-environments")
}

func runStable(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(stableFlags.format)
	if err != nil {
		return err
	}
	project := stableFlags.project
	if project == "" {
		project = settings.Squad.Project
	}
	if project == "" {
		return fmt.Errorf("--project is required (or set squad.project in the config)")
	}
	parallel := stableFlags.parallel
	if parallel <= 0 {
		parallel = settings.Search.Parallel
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	scope, err := client.Project(cmd.Context(), settings.Squad.Group, project)
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	tests, envs, err := stability.Collect(cmd.Context(), scope, stability.Query{
		Versions:         stableFlags.builds,
		Count:            stableFlags.count,
		Suites:           stableFlags.suites,
		Environments:     stableFlags.environments,
		PoolEnvironments: stableFlags.pool,
		Tests:            stableFlags.tests,
		Parallel:         parallel,
	}, logging.New("stable"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), stability.NewTable(tests, envs).Render(mode, stableFlags.color))
	return err
}
