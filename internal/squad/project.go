package squad

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// ProjectScope provides access to resources within a specific SQUAD project.
type ProjectScope struct {
	client  *Client
	group   Group
	project Project
}

// Project resolves groupSlug/projectSlug and returns a ProjectScope for it.
func (c *Client) Project(ctx context.Context, groupSlug, projectSlug string) (*ProjectScope, error) {
	group, err := c.Group(ctx, groupSlug)
	if err != nil {
		return nil, err
	}
	u := c.endpoint("projects/", url.Values{
		"group": {itoa(group.ID)},
		"slug":  {projectSlug},
	})
	project, err := first[Project](ctx, c, u, "get project", groupSlug+"/"+projectSlug)
	if err != nil {
		return nil, err
	}
	return &ProjectScope{client: c, group: *group, project: *project}, nil
}

// NewProjectScope returns a scope for an already-resolved group and project.
func (c *Client) NewProjectScope(group Group, project Project) *ProjectScope {
	return &ProjectScope{client: c, group: group, project: project}
}

// Client returns the client the scope was created from.
func (p *ProjectScope) Client() *Client { return p.client }

// Group returns the group the project belongs to.
func (p *ProjectScope) Group() Group { return p.group }

// Info returns the resolved project.
func (p *ProjectScope) Info() Project { return p.project }

func (p *ProjectScope) logger() *slog.Logger {
	return p.client.logger.With("project", p.group.Slug+"/"+p.project.Slug)
}

// Builds lists the project's builds.
func (p *ProjectScope) Builds(ctx context.Context, q BuildQuery) ([]Build, error) {
	params := q.values()
	params.Set("project", itoa(p.project.ID))
	return listAll[Build](ctx, p.client, p.client.endpoint("builds/", params), "list builds", q.Count)
}

// BuildByVersion returns the build with the given version string.
func (p *ProjectScope) BuildByVersion(ctx context.Context, version string) (*Build, error) {
	params := url.Values{
		"project": {itoa(p.project.ID)},
		"version": {version},
	}
	return first[Build](ctx, p.client, p.client.endpoint("builds/", params), "get build", version)
}

// Environments lists the project's environments, restricted to slugs when
// any are given.
func (p *ProjectScope) Environments(ctx context.Context, slugs ...string) ([]Environment, error) {
	params := url.Values{"project": {itoa(p.project.ID)}}
	if len(slugs) > 0 {
		params.Set("slug__in", strings.Join(slugs, ","))
	}
	return listAll[Environment](ctx, p.client, p.client.endpoint("environments/", params), "list environments", 0)
}

// Environment returns the environment with the given slug.
func (p *ProjectScope) Environment(ctx context.Context, slug string) (*Environment, error) {
	params := url.Values{
		"project": {itoa(p.project.ID)},
		"slug":    {slug},
	}
	return first[Environment](ctx, p.client, p.client.endpoint("environments/", params), "get environment", slug)
}

// Suites lists the project's suites, restricted to slugs when any are given.
func (p *ProjectScope) Suites(ctx context.Context, slugs ...string) ([]Suite, error) {
	params := url.Values{"project": {itoa(p.project.ID)}}
	if len(slugs) > 0 {
		params.Set("slug__in", strings.Join(slugs, ","))
	}
	return listAll[Suite](ctx, p.client, p.client.endpoint("suites/", params), "list suites", 0)
}

// SuitesInGroup resolves suite slugs across every project of the scope's
// group. One slug may resolve to several suites, one per sibling project.
func (p *ProjectScope) SuitesInGroup(ctx context.Context, slugs ...string) ([]Suite, error) {
	suites, err := p.client.GroupSuites(ctx, p.group.Slug, slugs...)
	if err != nil {
		return nil, err
	}
	p.logger().DebugContext(ctx, "resolved suites", "slugs", slugs, "count", len(suites))
	return suites, nil
}

// TestRuns lists the test runs of a build, restricted to envIDs.
func (p *ProjectScope) TestRuns(ctx context.Context, buildID int, envIDs []int) ([]TestRun, error) {
	return p.client.TestRuns(ctx, buildID, envIDs)
}

// TestRunMetadata returns the metadata of a test run.
func (p *ProjectScope) TestRunMetadata(ctx context.Context, testRunID int) (TestRunMetadata, error) {
	return p.client.TestRunMetadata(ctx, testRunID)
}

// Tests lists the tests of a test run.
func (p *ProjectScope) Tests(ctx context.Context, testRunID int, filter TestFilter) ([]Test, error) {
	return p.client.Tests(ctx, testRunID, filter)
}

// BuildTests lists every test of a build matching filter, across its runs.
func (p *ProjectScope) BuildTests(ctx context.Context, buildID int, filter TestFilter) ([]Test, error) {
	params := filter.values()
	params.Set("build", itoa(buildID))
	return listAll[Test](ctx, p.client, p.client.endpoint("tests/", params), "list build tests", filter.Limit)
}

// BuildMetrics lists the metrics recorded for a build.
func (p *ProjectScope) BuildMetrics(ctx context.Context, buildID int) ([]Metric, error) {
	return p.client.BuildMetrics(ctx, buildID)
}
