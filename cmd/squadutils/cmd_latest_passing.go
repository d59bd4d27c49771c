package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squadutils/internal/logging"
	"squadutils/internal/search"
	"squadutils/internal/squad"
)

var latestPassingFlags struct {
	project     string
	build       string
	environment string
	suite       string
	test        string
}

var latestPassingCmd = &cobra.Command{
	Use:   "latest-passing",
	Short: "Find the newest build before a bad one on which a test passed",
	Long: "Given a build where a test fails, find the most recent earlier build of the\n" +
		"same project in which that test passed on the same environment.",
	RunE: runLatestPassing,
}

func init() {
	f := latestPassingCmd.Flags()
	f.StringVar(&latestPassingFlags.project, "project", "", "SQUAD project slug (default from config)")
	f.StringVar(&latestPassingFlags.build, "build", "", "Version of the bad build, e.g. next-20201204 (required)")
	f.StringVar(&latestPassingFlags.environment, "environment", "", "Environment slug, e.g. arm64 (required)")
	f.StringVar(&latestPassingFlags.suite, "suite", "", "Suite slug, e.g. build (required)")
	f.StringVar(&latestPassingFlags.test, "test", "", "Test name without the suite, e.g. gcc-10-defconfig (required)")

	for _, name := range []string{"build", "environment", "suite", "test"} {
		_ = latestPassingCmd.MarkFlagRequired(name)
	}
}

func runLatestPassing(cmd *cobra.Command, _ []string) error {
	project := latestPassingFlags.project
	if project == "" {
		project = settings.Squad.Project
	}
	if project == "" {
		return fmt.Errorf("--project is required (or set squad.project in the config)")
	}
	ctx := cmd.Context()
	client, err := newClient()
	if err != nil {
		return err
	}
	scope, err := client.Project(ctx, settings.Squad.Group, project)
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	bad, err := scope.BuildByVersion(ctx, latestPassingFlags.build)
	if err != nil {
		return fmt.Errorf("resolve build: %w", err)
	}
	env, err := scope.Environment(ctx, latestPassingFlags.environment)
	if err != nil {
		return fmt.Errorf("resolve environment: %w", err)
	}
	suites, err := scope.Suites(ctx, latestPassingFlags.suite)
	if err != nil {
		return fmt.Errorf("resolve suite: %w", err)
	}
	if len(suites) == 0 {
		return fmt.Errorf("resolve suite %s: %w", latestPassingFlags.suite, squad.ErrNoSuchEntity)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Looking for the latest good build in %s/%s before %s\n",
		scope.Group().Slug, scope.Info().Slug, bad.Version)
	baseline, err := search.LatestPassing(ctx, client, search.BaselineQuery{
		Bad:         *bad,
		Environment: *env,
		Suite:       suites[0],
		Test:        latestPassingFlags.test,
		Logger:      logging.New("latest-passing"),
	})
	if err != nil {
		return err
	}
	v := baseline.Build.Version
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s/%s/%s/build/%s\n",
		v, client.BaseURL(), scope.Group().Slug, scope.Info().Slug, v)
	return err
}
