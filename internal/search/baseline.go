package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

// BaselineSource is what LatestPassing reads. *squad.Client implements it.
type BaselineSource interface {
	TestsMatching(ctx context.Context, filter squad.TestFilter) ([]squad.Test, error)
	Build(ctx context.Context, id int) (*squad.Build, error)
	TestRun(ctx context.Context, id int) (*squad.TestRun, error)
}

// BaselineQuery names a failing test on a known bad build.
type BaselineQuery struct {
	Bad         squad.Build
	Environment squad.Environment
	Suite       squad.Suite
	// Test is the test name without the suite prefix.
	Test   string
	Logger *slog.Logger
}

// Baseline is the newest earlier build on which the test passed.
type Baseline struct {
	Build squad.Build
	Test  squad.Test
}

// LatestPassing returns the most recent build created before q.Bad in which
// q.Test passed on q.Environment. ErrNotFound means no earlier build passed.
func LatestPassing(ctx context.Context, src BaselineSource, q BaselineQuery) (*Baseline, error) {
	if q.Bad.CreatedAt.IsZero() {
		return nil, fmt.Errorf("latest passing: bad build %q has no creation time", q.Bad.Version)
	}
	if q.Test == "" {
		return nil, errors.New("latest passing: test name is required")
	}
	logger := q.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	tests, err := src.TestsMatching(ctx, squad.TestFilter{
		SuiteIDs:           []int{q.Suite.ID},
		EnvironmentIDs:     []int{q.Environment.ID},
		Names:              []string{q.Test},
		Passed:             true,
		BuildCreatedBefore: q.Bad.CreatedAt,
		Ordering:           "-build_id",
		Limit:              1,
	})
	if err != nil {
		return nil, fmt.Errorf("latest passing: %w", err)
	}
	if len(tests) == 0 {
		logger.InfoContext(ctx, "no passing build", "before", q.Bad.Version, "test", q.Test, "environment", q.Environment.Slug)
		return nil, fmt.Errorf("%s passing on %s before %s: %w", q.Test, q.Environment.Slug, q.Bad.Version, ErrNotFound)
	}
	t := tests[0]

	buildID := t.BuildID()
	if buildID == 0 {
		run, err := src.TestRun(ctx, t.TestRunID())
		if err != nil {
			return nil, fmt.Errorf("latest passing: resolve test run: %w", err)
		}
		buildID = run.BuildID()
	}
	b, err := src.Build(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("latest passing: resolve build: %w", err)
	}
	logger.InfoContext(ctx, "found passing build", "build", b.Version, "test_id", t.ID)
	return &Baseline{Build: *b, Test: t}, nil
}
