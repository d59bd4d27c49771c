// Package stability summarises how consistently tests pass across builds
// and environments, and lists the metrics recorded for recent builds.
package stability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

// DefaultBuilds is the number of latest builds examined when no versions
// are given.
const DefaultBuilds = 10

// ignoredPrefix marks pseudo-tests generated from boot logs.
const ignoredPrefix = "linux-log-parser"

// Stableness returns the share of results equal to target, or -1 when
// there are no results.
func Stableness[T comparable](results []T, target T) float64 {
	if len(results) == 0 {
		return -1
	}
	n := 0
	for _, r := range results {
		if r == target {
			n++
		}
	}
	return float64(n) / float64(len(results))
}

// Row is one test of a Table.
type Row struct {
	Suite string
	Test  string
	// Cells holds one ratio per environment column, or a single ratio when
	// the table is not split by environment. -1 means no results.
	Cells []float64
}

// SuiteSummary is the share of a suite's cells that are fully stable.
type SuiteSummary struct {
	Suite string
	Ratio float64
}

// Table is the stableness of every test, per environment.
type Table struct {
	Environments []string
	Rows         []Row
	Suites       []SuiteSummary
}

// NewTable computes stableness from a flat list of test results. When envs
// is empty results are pooled across environments; otherwise tests on
// environments outside envs are ignored.
func NewTable(tests []squad.Test, envs []squad.Environment) *Table {
	t := &Table{}
	slugByID := make(map[int]string, len(envs))
	for _, e := range envs {
		slugByID[e.ID] = e.Slug
		t.Environments = append(t.Environments, e.Slug)
	}
	slices.Sort(t.Environments)
	t.Environments = slices.Compact(t.Environments)

	statuses := map[string]map[string][]string{}
	for _, test := range tests {
		env := ""
		if len(envs) > 0 {
			slug, ok := slugByID[test.EnvironmentID()]
			if !ok {
				continue
			}
			env = slug
		}
		if statuses[test.Name] == nil {
			statuses[test.Name] = map[string][]string{}
		}
		statuses[test.Name][env] = append(statuses[test.Name][env], test.Status)
	}

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	slices.Sort(names)

	columns := t.Environments
	if len(columns) == 0 {
		columns = []string{""}
	}
	perSuite := map[string][]float64{}
	for _, name := range names {
		suite, test := squad.SplitTestName(name)
		if _, seen := perSuite[suite]; !seen {
			t.Suites = append(t.Suites, SuiteSummary{Suite: suite})
			perSuite[suite] = nil
		}
		row := Row{Suite: suite, Test: test}
		for _, env := range columns {
			n := Stableness(statuses[name][env], squad.StatusPass)
			row.Cells = append(row.Cells, n)
			perSuite[suite] = append(perSuite[suite], n)
		}
		t.Rows = append(t.Rows, row)
	}
	for i := range t.Suites {
		t.Suites[i].Ratio = Stableness(perSuite[t.Suites[i].Suite], 1.0)
	}
	return t
}

// Source is the project view Collect reads from. *squad.ProjectScope
// implements it.
type Source interface {
	Builds(ctx context.Context, q squad.BuildQuery) ([]squad.Build, error)
	Suites(ctx context.Context, slugs ...string) ([]squad.Suite, error)
	Environments(ctx context.Context, slugs ...string) ([]squad.Environment, error)
	BuildTests(ctx context.Context, buildID int, filter squad.TestFilter) ([]squad.Test, error)
}

// Query selects the results Collect gathers.
type Query struct {
	// Versions lists builds by version; when empty the latest Count builds
	// are used.
	Versions []string
	Count    int
	Suites   []string
	// Environments restricts results to these slugs; empty means all.
	Environments []string
	// PoolEnvironments merges results across environments.
	PoolEnvironments bool
	Tests            []string
	Parallel         int
}

// Collect fetches the test results of the selected builds, in build order.
// The returned environments are the table columns (nil when pooled).
func Collect(ctx context.Context, src Source, q Query, logger *slog.Logger) ([]squad.Test, []squad.Environment, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	bq := squad.BuildQuery{Versions: q.Versions}
	if len(q.Versions) == 0 {
		bq.Count = q.Count
		if bq.Count <= 0 {
			bq.Count = DefaultBuilds
		}
		bq.Ordering = "-id"
	}
	filter := squad.TestFilter{Names: q.Tests}

	if len(q.Suites) > 0 {
		suites, err := src.Suites(ctx, q.Suites...)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve suites: %w", err)
		}
		if len(suites) == 0 {
			return nil, nil, fmt.Errorf("resolve suites %s: %w", strings.Join(q.Suites, ","), squad.ErrNoSuchEntity)
		}
		for _, s := range suites {
			filter.SuiteIDs = append(filter.SuiteIDs, s.ID)
		}
	}

	var envs []squad.Environment
	if !q.PoolEnvironments {
		var err error
		envs, err = src.Environments(ctx, q.Environments...)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve environments: %w", err)
		}
		if len(q.Environments) > 0 {
			for _, e := range envs {
				filter.EnvironmentIDs = append(filter.EnvironmentIDs, e.ID)
			}
		}
	}

	builds, err := src.Builds(ctx, bq)
	if err != nil {
		return nil, nil, fmt.Errorf("list builds: %w", err)
	}
	logger.InfoContext(ctx, "collecting test results", "builds", len(builds))

	perBuild := make([][]squad.Test, len(builds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(q.Parallel, 1))
	for i, b := range builds {
		g.Go(func() error {
			tests, err := src.BuildTests(gctx, b.ID, filter)
			if err != nil {
				return fmt.Errorf("build %s: %w", b.Version, err)
			}
			kept := tests[:0]
			for _, t := range tests {
				if !strings.HasPrefix(t.Name, ignoredPrefix) {
					kept = append(kept, t)
				}
			}
			logger.DebugContext(gctx, "fetched build tests", "build", b.Version, "tests", len(kept))
			perBuild[i] = kept
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	var all []squad.Test
	for _, tests := range perBuild {
		all = append(all, tests...)
	}
	return all, envs, nil
}
