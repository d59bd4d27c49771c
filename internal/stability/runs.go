package stability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

// TestStatus is one test result of a suite run.
type TestStatus struct {
	Name   string
	Status string
}

// BuildRuns is what one build recorded for the suite.
type BuildRuns struct {
	Build squad.Build
	// Summary counts statuses per environment slug.
	Summary map[string]map[string]int
	// Tests lists results per environment slug, sorted by name.
	Tests map[string][]TestStatus
}

// Environments returns the environment slugs with results, sorted.
func (b BuildRuns) Environments() []string {
	envs := make([]string, 0, len(b.Summary))
	for env := range b.Summary {
		envs = append(envs, env)
	}
	slices.Sort(envs)
	return envs
}

// ProjectRuns groups the build results of one project.
type ProjectRuns struct {
	Project squad.Project
	Builds  []BuildRuns
}

// SuiteRuns finds every project of groupSlug that has a suite named
// suiteSlug and summarises the suite results of its latest builds. With
// builds == 0 only the projects are listed.
func SuiteRuns(ctx context.Context, c *squad.Client, groupSlug, suiteSlug string, builds int, logger *slog.Logger) ([]ProjectRuns, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	group, err := c.Group(ctx, groupSlug)
	if err != nil {
		return nil, err
	}
	suites, err := c.GroupSuites(ctx, groupSlug, suiteSlug)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, s := range suites {
		if id := s.ProjectID(); id != 0 && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	projects, err := c.Projects(ctx, ids)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "projects with suite", "group", groupSlug, "suite", suiteSlug, "projects", len(projects))

	out := make([]ProjectRuns, 0, len(projects))
	for _, p := range projects {
		pr := ProjectRuns{Project: p}
		if builds <= 0 {
			out = append(out, pr)
			continue
		}
		scope := c.NewProjectScope(*group, p)
		envs, err := scope.Environments(ctx)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p.Slug, err)
		}
		slugByID := make(map[int]string, len(envs))
		for _, e := range envs {
			slugByID[e.ID] = e.Slug
		}
		bs, err := scope.Builds(ctx, squad.BuildQuery{Count: builds, Ordering: "-id"})
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p.Slug, err)
		}
		for _, b := range bs {
			tests, err := scope.BuildTests(ctx, b.ID, squad.TestFilter{SuiteSlug: suiteSlug})
			if err != nil {
				return nil, fmt.Errorf("project %s build %s: %w", p.Slug, b.Version, err)
			}
			logger.DebugContext(ctx, "fetched suite tests", "project", p.Slug, "build", b.Version, "tests", len(tests))
			pr.Builds = append(pr.Builds, summarize(b, tests, slugByID))
		}
		out = append(out, pr)
	}
	return out, nil
}

func summarize(b squad.Build, tests []squad.Test, slugByID map[int]string) BuildRuns {
	br := BuildRuns{
		Build:   b,
		Summary: map[string]map[string]int{},
		Tests:   map[string][]TestStatus{},
	}
	for _, t := range tests {
		env, ok := slugByID[t.EnvironmentID()]
		if !ok {
			env = fmt.Sprintf("environment-%d", t.EnvironmentID())
		}
		if br.Summary[env] == nil {
			br.Summary[env] = map[string]int{}
		}
		br.Summary[env][t.Status]++
		br.Tests[env] = append(br.Tests[env], TestStatus{Name: t.Name, Status: t.Status})
	}
	for env := range br.Tests {
		slices.SortStableFunc(br.Tests[env], func(a, b TestStatus) int { return strings.Compare(a.Name, b.Name) })
	}
	return br
}
