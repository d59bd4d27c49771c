package reproducer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"squadutils/internal/artifact"
	"squadutils/internal/invocation"
	"squadutils/internal/logging"
	"squadutils/internal/search"
	"squadutils/internal/squad"
)

// Request describes which test run's reproducer to fetch.
type Request struct {
	Group       string
	Project     string
	Environment string
	Suite       string
	// BuildNames are build_name patterns in preference order.
	BuildNames []string
	// Count is the number of most recent builds searched.
	Count           int
	AllowUnfinished bool
	Completion      search.Completion
	Kind            Kind
}

// Result is a retrieved reproducer and where it came from.
type Result struct {
	Reproducer
	Match       *search.Match
	GitDescribe string
	BuildName   string
}

// Service resolves requests against one SQUAD instance.
type Service struct {
	client   *squad.Client
	fetcher  artifact.Fetcher
	parallel int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFetcher sets how reproducer artifacts are retrieved.
func WithFetcher(f artifact.Fetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithParallel bounds the number of builds examined concurrently.
func WithParallel(n int) Option {
	return func(s *Service) { s.parallel = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service using client.
func NewService(client *squad.Client, opts ...Option) *Service {
	s := &Service{client: client, logger: logging.Discard()}
	for _, o := range opts {
		o(s)
	}
	if s.fetcher == nil {
		s.fetcher = artifact.New(artifact.WithLogger(s.logger))
	}
	return s
}

// Get finds the most recent test run satisfying req and retrieves its
// reproducer. A missing group, project, suite or environment is reported
// as ErrReproducerNotFound; an exhausted search as search.ErrNotFound.
func (s *Service) Get(ctx context.Context, req Request) (*Result, error) {
	scope, err := s.client.Project(ctx, req.Group, req.Project)
	if err != nil {
		return nil, notFound(err)
	}
	suites, err := scope.SuitesInGroup(ctx, req.Suite)
	if err != nil {
		return nil, notFound(err)
	}
	if len(suites) == 0 {
		return nil, fmt.Errorf("%w: there is no suite named %q in group %s", ErrReproducerNotFound, req.Suite, req.Group)
	}
	env, err := scope.Environment(ctx, req.Environment)
	if err != nil {
		return nil, notFound(err)
	}

	count := req.Count
	if count <= 0 {
		count = search.DefaultWindow
	}
	builds, err := scope.Builds(ctx, squad.BuildQuery{Count: count, Ordering: "-id"})
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	criteria, err := search.NewCriteria(search.CriteriaSpec{
		BuildNames:      req.BuildNames,
		Suites:          suites,
		Environments:    []squad.Environment{*env},
		AllowUnfinished: req.AllowUnfinished,
		Window:          count,
		Completion:      req.Completion,
	})
	if err != nil {
		return nil, err
	}

	finder := search.NewFinder(scope, search.WithParallel(s.parallel), search.WithLogger(s.logger))
	match, err := finder.Find(ctx, criteria, builds)
	if err != nil {
		return nil, err
	}

	bmd, err := s.client.BuildMetadata(ctx, match.Build.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "build metadata unavailable", "build", match.Build.Version, "error", err)
	}
	s.logger.InfoContext(ctx, "found test run",
		"testrun", match.TestRun.ID, "build", match.Build.Version,
		"build_name", match.Metadata.BuildName, "git_describe", bmd.GitDescribe)

	rep, err := Retrieve(ctx, s.fetcher, match.Metadata, match.TestRun, req.Kind, s.logger)
	if err != nil {
		return nil, err
	}
	return &Result{
		Reproducer:  *rep,
		Match:       match,
		GitDescribe: bmd.GitDescribe,
		BuildName:   match.Metadata.BuildName,
	}, nil
}

func notFound(err error) error {
	if squad.IsNotFound(err) {
		return fmt.Errorf("%w: %w", ErrReproducerNotFound, err)
	}
	return err
}

// Custom rewrites a reproducer script to run opts.Command and, when path
// is not empty, writes the result there as an executable script.
func Custom(script string, opts invocation.RewriteOptions, k Kind, path string) (string, error) {
	if k == Plan {
		return "", errors.New("plan reproducers cannot be customised")
	}
	out, err := invocation.CustomReproducer(script, opts, k.Mode())
	if err != nil {
		return "", err
	}
	if path != "" {
		if err := artifact.Save(path, []byte(out), 0o755); err != nil {
			return "", err
		}
	}
	return out, nil
}
