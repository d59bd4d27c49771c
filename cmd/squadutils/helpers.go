package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"squadutils/internal/logging"
	"squadutils/internal/search"
	"squadutils/internal/squad"
)

// searchOptions are the flags shared by commands that run a candidate search.
type searchOptions struct {
	project         string
	environments    []string
	suites          []string
	buildNames      []string
	count           int
	allowUnfinished bool
	completion      string
	parallel        int
}

func (o *searchOptions) register(f *pflag.FlagSet, envFlag string) {
	f.StringVar(&o.project, "project", "", "SQUAD project slug, e.g. linux-next-master (default from config)")
	f.StringSliceVar(&o.environments, envFlag, nil, "Environment slugs in preference order (required)")
	f.StringSliceVar(&o.suites, "suite", nil, "Suite slugs the test run must contain (required)")
	f.StringSliceVar(&o.buildNames, "build-names", nil, "build_name regular expressions in preference order (required)")
	f.IntVar(&o.count, "count", 0, "Number of most recent builds to search (default from config)")
	f.BoolVar(&o.allowUnfinished, "allow-unfinished", false, "Also consider builds not yet marked finished")
	f.StringVar(&o.completion, "completion", "", "Completion predicate: completed or result (default from config)")
	f.IntVar(&o.parallel, "parallel", 0, "Builds examined concurrently (default from config)")
}

func (o *searchOptions) resolve() error {
	if o.project == "" {
		o.project = settings.Squad.Project
	}
	if o.project == "" {
		return fmt.Errorf("--project is required (or set squad.project in the config)")
	}
	if o.count <= 0 {
		o.count = settings.Search.Window
	}
	if o.parallel <= 0 {
		o.parallel = settings.Search.Parallel
	}
	if !o.allowUnfinished {
		o.allowUnfinished = settings.Search.AllowUnfinished
	}
	if o.completion == "" {
		o.completion = settings.Search.Completion
	}
	if o.completion == "" {
		return fmt.Errorf("--completion is required: completed (run marked complete) or result (pass/fail recorded)")
	}
	return nil
}

func (o *searchOptions) completionPredicate() (search.Completion, error) {
	return search.ParseCompletion(o.completion)
}

func newClient() (*squad.Client, error) {
	opts := []squad.Option{
		squad.WithLogger(logging.New("squad")),
		squad.WithTimeout(settings.Squad.Timeout),
	}
	if settings.Squad.RequestsPerSecond > 0 {
		opts = append(opts, squad.WithRateLimit(settings.Squad.RequestsPerSecond, settings.Squad.Burst))
	}
	return squad.New(settings.Squad.URL, settings.Squad.Token, opts...)
}
