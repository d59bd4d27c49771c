package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

// ErrNotFound is returned by Find when no build in the window holds a
// qualifying test run. It is an expected outcome, not a fault.
var ErrNotFound = errors.New("no test run matches the search criteria")

// Source is the read-only view of the reporting service Find needs.
// *squad.ProjectScope implements it.
type Source interface {
	TestRuns(ctx context.Context, buildID int, envIDs []int) ([]squad.TestRun, error)
	TestRunMetadata(ctx context.Context, testRunID int) (squad.TestRunMetadata, error)
	Tests(ctx context.Context, testRunID int, filter squad.TestFilter) ([]squad.Test, error)
}

// Match is the test run Find selected, with the context it was found in.
type Match struct {
	Build       squad.Build
	TestRun     squad.TestRun
	Metadata    squad.TestRunMetadata
	Environment squad.Environment
}

// Finder runs searches against one Source.
type Finder struct {
	src      Source
	parallel int
	logger   *slog.Logger
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithParallel bounds the number of builds (and, within a build, test runs)
// evaluated concurrently. Values below 1 mean sequential.
func WithParallel(n int) FinderOption {
	return func(f *Finder) {
		if n < 1 {
			n = 1
		}
		f.parallel = n
	}
}

// WithLogger sets the logger used for skipped and degraded candidates.
func WithLogger(l *slog.Logger) FinderOption {
	return func(f *Finder) { f.logger = l }
}

// NewFinder returns a Finder reading from src.
func NewFinder(src Source, opts ...FinderOption) *Finder {
	f := &Finder{src: src, parallel: 1, logger: logging.Discard()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find is shorthand for NewFinder(src).Find(ctx, c, builds).
func Find(ctx context.Context, src Source, c Criteria, builds []squad.Build) (*Match, error) {
	return NewFinder(src).Find(ctx, c, builds)
}

// Find walks builds in the given order, at most c.Window() of them, and
// returns the qualifying test run of the first build that has one. Within a
// build, the run whose build_name matches the earliest pattern wins, then
// the run on the earliest environment.
//
// Builds may be evaluated concurrently; the result is the same as a
// sequential walk. Once a build yields a match, every later build still in
// flight is cancelled. A failed query only disqualifies the candidate it
// was issued for.
func (f *Finder) Find(ctx context.Context, c Criteria, builds []squad.Build) (*Match, error) {
	if len(builds) > c.window {
		builds = builds[:c.window]
	}

	var candidates []squad.Build
	for _, b := range builds {
		if !b.Finished && !c.allowUnfinished {
			f.logger.DebugContext(ctx, "skipping unfinished build", "build", b.Version, "build_id", b.ID)
			continue
		}
		candidates = append(candidates, b)
	}

	var (
		mu      sync.Mutex
		best    = len(candidates)
		results = make([]*Match, len(candidates))
		cancels = make([]context.CancelFunc, len(candidates))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallel)
	for i, b := range candidates {
		mu.Lock()
		if best < i {
			mu.Unlock()
			break
		}
		bctx, cancel := context.WithCancel(gctx)
		cancels[i] = cancel
		mu.Unlock()

		g.Go(func() error {
			defer cancel()
			f.logger.DebugContext(bctx, "checking build", "build", b.Version, "build_id", b.ID)
			m := f.evaluateBuild(bctx, c, b)
			if m == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			results[i] = m
			if i < best {
				best = i
				for j := i + 1; j < len(cancels); j++ {
					if cancels[j] != nil {
						cancels[j]()
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait() // candidates never fail the group

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, m := range results {
		if m != nil {
			f.logger.InfoContext(ctx, "found test run",
				"build", m.Build.Version, "testrun_id", m.TestRun.ID,
				"build_name", m.Metadata.BuildName, "environment", m.Environment.Slug)
			return m, nil
		}
	}
	f.logger.InfoContext(ctx, "no matching test run", "builds", len(builds), "candidates", len(candidates))
	return nil, ErrNotFound
}

type candidate struct {
	match   Match
	pattern int
	env     int
	order   int
}

func (a *candidate) before(b *candidate) bool {
	if a.pattern != b.pattern {
		return a.pattern < b.pattern
	}
	if a.env != b.env {
		return a.env < b.env
	}
	return a.order < b.order
}

// evaluateBuild returns the best qualifying run of b, or nil.
func (f *Finder) evaluateBuild(ctx context.Context, c Criteria, b squad.Build) *Match {
	runs, err := f.src.TestRuns(ctx, b.ID, c.environmentIDs())
	if err != nil {
		f.logger.WarnContext(ctx, "list testruns failed, skipping build", "build", b.Version, "error", err)
		return nil
	}

	found := make([]*candidate, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallel)
	for i, run := range runs {
		g.Go(func() error {
			found[i] = f.evaluateRun(gctx, c, b, run, i)
			return nil
		})
	}
	_ = g.Wait()

	var winner *candidate
	for _, cand := range found {
		if cand != nil && (winner == nil || cand.before(winner)) {
			winner = cand
		}
	}
	if winner == nil {
		return nil
	}
	return &winner.match
}

func (f *Finder) evaluateRun(ctx context.Context, c Criteria, b squad.Build, run squad.TestRun, order int) *candidate {
	env := c.environmentIndex(run.EnvironmentID())
	if env < 0 {
		return nil
	}
	log := f.logger.With("build", b.Version, "testrun_id", run.ID)
	if !c.completion.admits(run) {
		log.DebugContext(ctx, "testrun not completed")
		return nil
	}

	md, err := f.src.TestRunMetadata(ctx, run.ID)
	if err != nil {
		log.WarnContext(ctx, "testrun metadata unavailable", "error", err)
		return nil
	}
	pattern := c.patternIndex(md.BuildName)
	if pattern < 0 {
		log.DebugContext(ctx, "build name not accepted", "build_name", md.BuildName)
		return nil
	}

	suiteIDs := c.suiteIDs()
	tests, err := f.src.Tests(ctx, run.ID, c.completion.filter(suiteIDs))
	if err != nil {
		log.WarnContext(ctx, "list tests failed", "error", err)
		return nil
	}
	for _, t := range tests {
		if !containsID(suiteIDs, t.SuiteID()) {
			continue
		}
		if c.completion.Match(run, t) {
			return &candidate{
				match: Match{
					Build:       b,
					TestRun:     run,
					Metadata:    md,
					Environment: c.environments[env],
				},
				pattern: pattern,
				env:     env,
				order:   order,
			}
		}
	}
	log.DebugContext(ctx, "no usable test in requested suites", "completion", c.completion.String())
	return nil
}

func containsID(ids []int, id int) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
