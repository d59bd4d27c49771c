package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squadutils/internal/logging"
	"squadutils/internal/search"
	"squadutils/internal/squad"
)

var findFlags searchOptions

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find the most recent test run matching build names, suites and environments",
	RunE:  runFind,
}

func init() {
	findFlags.register(findCmd.Flags(), "environment")
	_ = findCmd.MarkFlagRequired("environment")
	_ = findCmd.MarkFlagRequired("suite")
	_ = findCmd.MarkFlagRequired("build-names")
}

func runFind(cmd *cobra.Command, _ []string) error {
	if err := findFlags.resolve(); err != nil {
		return err
	}
	completion, err := findFlags.completionPredicate()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client, err := newClient()
	if err != nil {
		return err
	}
	scope, err := client.Project(ctx, settings.Squad.Group, findFlags.project)
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	suites, err := scope.SuitesInGroup(ctx, findFlags.suites...)
	if err != nil {
		return fmt.Errorf("resolve suites: %w", err)
	}
	var envs []squad.Environment
	for _, slug := range findFlags.environments {
		env, err := scope.Environment(ctx, slug)
		if err != nil {
			return fmt.Errorf("resolve environment: %w", err)
		}
		envs = append(envs, *env)
	}
	criteria, err := search.NewCriteria(search.CriteriaSpec{
		BuildNames:      findFlags.buildNames,
		Suites:          suites,
		Environments:    envs,
		AllowUnfinished: findFlags.allowUnfinished,
		Window:          findFlags.count,
		Completion:      completion,
	})
	if err != nil {
		return err
	}
	builds, err := scope.Builds(ctx, squad.BuildQuery{Count: criteria.Window(), Ordering: "-id"})
	if err != nil {
		return fmt.Errorf("list builds: %w", err)
	}

	finder := search.NewFinder(scope, search.WithParallel(findFlags.parallel), search.WithLogger(logging.New("search")))
	match, err := finder.Find(ctx, criteria, builds)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Build:       %s (#%d)\n", match.Build.Version, match.Build.ID)
	fmt.Fprintf(out, "Test run:    #%d\n", match.TestRun.ID)
	fmt.Fprintf(out, "Build name:  %s\n", match.Metadata.BuildName)
	fmt.Fprintf(out, "Environment: %s\n", match.Environment.Slug)
	if match.Metadata.JobURL != "" {
		fmt.Fprintf(out, "Job:         %s\n", match.Metadata.JobURL)
	}
	if match.Metadata.DownloadURL != "" {
		fmt.Fprintf(out, "Artifacts:   %s\n", match.Metadata.DownloadURL)
	}
	return nil
}
