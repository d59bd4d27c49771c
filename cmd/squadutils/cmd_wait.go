package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"squadutils/internal/logging"
	"squadutils/internal/search"
)

var waitFlags struct {
	project     string
	interval    time.Duration
	backoff     float64
	maxInterval time.Duration
	timeout     time.Duration
}

var waitCmd = &cobra.Command{
	Use:   "wait <build-version>...",
	Short: "Wait until the given builds are marked finished",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWait,
}

func init() {
	defaults := search.DefaultPollOptions()
	f := waitCmd.Flags()
	f.StringVar(&waitFlags.project, "project", "", "SQUAD project slug (default from config)")
	f.DurationVar(&waitFlags.interval, "interval", defaults.Interval, "Delay between checks")
	f.Float64Var(&waitFlags.backoff, "backoff", defaults.Backoff, "Multiply the delay by this after every check")
	f.DurationVar(&waitFlags.maxInterval, "max-interval", 0, "Upper bound for the grown delay (0 = none)")
	f.DurationVar(&waitFlags.timeout, "timeout", defaults.Timeout, "Give up after this long")
}

func runWait(cmd *cobra.Command, args []string) error {
	project := waitFlags.project
	if project == "" {
		project = settings.Squad.Project
	}
	if project == "" {
		return fmt.Errorf("--project is required (or set squad.project in the config)")
	}
	client, err := newClient()
	if err != nil {
		return err
	}
	scope, err := client.Project(cmd.Context(), settings.Squad.Group, project)
	if err != nil {
		return fmt.Errorf("resolve project: %w", err)
	}
	err = search.WaitForBuilds(cmd.Context(), scope, args, search.PollOptions{
		Interval:    waitFlags.interval,
		Backoff:     waitFlags.backoff,
		MaxInterval: waitFlags.maxInterval,
		Timeout:     waitFlags.timeout,
		Logger:      logging.New("wait"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "All %d builds finished\n", len(args))
	return nil
}
