package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"squadutils/internal/format"
	"squadutils/internal/logging"
	"squadutils/internal/stability"
)

var metricsFlags struct {
	project  string
	count    int
	before   string
	format   string
	parallel int
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List the metrics recorded for the latest builds of a project",
	RunE:  runMetrics,
}

func init() {
	f := metricsCmd.Flags()
	f.StringVar(&metricsFlags.project, "project", "", "SQUAD project slug (default from config)")
	f.IntVarP(&metricsFlags.count, "number", "n", stability.DefaultBuilds, "Number of latest builds")
	f.StringVar(&metricsFlags.before, "before", "", "Only builds created before this RFC 3339 time")
	f.StringVar(&metricsFlags.format, "format", "text", "Output format: text, markdown or csv")
	f.IntVar(&metricsFlags.parallel, "parallel", 0, "Builds fetched concurrently (default from config)")
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(metricsFlags.format)
	if err != nil {
		return err
	}
	var before time.Time
	if metricsFlags.before != "" {
		before, err = time.Parse(time.RFC3339, metricsFlags.before)
		if err != nil {
			return fmt.Errorf("--before: %w", err)
		}
	}
	project := metricsFlags.project
	if project == "" {
		project = settings.Squad.Project
	}
	if project == "" {
		return fmt.Errorf("--project is required (or set squad.project in the config)")
	}
	parallel := metricsFlags.parallel
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
	results, err := stability.CollectMetrics(cmd.Context(), scope, stability.MetricQuery{
		Count:    metricsFlags.count,
		Before:   before,
		Parallel: parallel,
	}, logging.New("metrics"))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no builds in %s/%s", settings.Squad.Group, project)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), stability.RenderMetrics(results, mode))
	return err
}
