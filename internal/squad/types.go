package squad

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Group is a SQUAD group (e.g. "lkft").
type Group struct {
	ID   int    `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name,omitempty"`
}

// Project is a SQUAD project within a group.
type Project struct {
	ID    int    `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name,omitempty"`
	Group string `json:"group,omitempty"`
}

// Build is one versioned compilation/integration attempt.
type Build struct {
	ID        int       `json:"id"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Finished  bool      `json:"finished"`
	Project   string    `json:"project,omitempty"`
}

// BuildMetadata holds the subset of build metadata the tools read.
type BuildMetadata struct {
	GitDescribe string `json:"git_describe,omitempty"`
	GitBranch   string `json:"git_branch,omitempty"`
}

// Environment is an architecture or device label inside a project.
type Environment struct {
	ID      int    `json:"id"`
	Slug    string `json:"slug"`
	Name    string `json:"name,omitempty"`
	Project string `json:"project,omitempty"`
}

// Suite is a named collection of tests.
type Suite struct {
	ID      int    `json:"id"`
	Slug    string `json:"slug"`
	Name    string `json:"name,omitempty"`
	Project string `json:"project,omitempty"`
}

// ProjectID extracts the id of the project the suite belongs to.
func (s Suite) ProjectID() int {
	id, _ := IDFromURL(s.Project)
	return id
}

// TestRun is one execution context: one build on one environment.
type TestRun struct {
	ID          int    `json:"id"`
	Build       string `json:"build"`
	Environment string `json:"environment"`
	Completed   bool   `json:"completed"`
	JobID       string `json:"job_id,omitempty"`
	JobURL      string `json:"job_url,omitempty"`
}

// BuildID returns the numeric id of the run's build, or 0.
func (r TestRun) BuildID() int {
	id, _ := IDFromURL(r.Build)
	return id
}

// EnvironmentID returns the numeric id of the run's environment, or 0.
func (r TestRun) EnvironmentID() int {
	id, _ := IDFromURL(r.Environment)
	return id
}

// TestRunMetadata is the free-form metadata a CI job attached to a test run.
// Only the keys the reproducer tooling needs are decoded.
type TestRunMetadata struct {
	BuildName   string `json:"build_name,omitempty"`
	JobURL      string `json:"job_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	GitDescribe string `json:"git_describe,omitempty"`
}

// Test status values as reported by SQUAD.
const (
	StatusPass  = "pass"
	StatusFail  = "fail"
	StatusSkip  = "skip"
	StatusXFail = "xfail"
)

// Test is one test result inside a test run.
type Test struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"short_name,omitempty"`
	Status      string `json:"status"`
	Result      *bool  `json:"result"`
	TestRun     string `json:"test_run"`
	Suite       string `json:"suite"`
	Environment string `json:"environment,omitempty"`
	Build       string `json:"build,omitempty"`
}

// BuildID returns the numeric id of the test's build, or 0 when the
// listing did not include it.
func (t Test) BuildID() int {
	id, _ := IDFromURL(t.Build)
	return id
}

// TestRunID returns the numeric id of the test's run, or 0.
func (t Test) TestRunID() int {
	id, _ := IDFromURL(t.TestRun)
	return id
}

// Metric is one measured value inside a test run, e.g. a benchmark score.
type Metric struct {
	ID        int     `json:"id"`
	Name      string  `json:"name,omitempty"`
	ShortName string  `json:"short_name"`
	Result    float64 `json:"result"`
	TestRun   string  `json:"test_run"`
	Suite     string  `json:"suite"`
}

// SuiteID returns the numeric id of the test's suite, or 0.
func (t Test) SuiteID() int {
	id, _ := IDFromURL(t.Suite)
	return id
}

// EnvironmentID returns the numeric id of the test's environment, or 0.
func (t Test) EnvironmentID() int {
	id, _ := IDFromURL(t.Environment)
	return id
}

// IDFromURL extracts the numeric id from a related-entity URL such as
// "https://qa-reports.linaro.org/api/builds/123/". A bare number is
// accepted as well.
func IDFromURL(s string) (int, error) {
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("parse entity url %q: %w", s, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	id, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("entity url %q has no trailing id", s)
	}
	return id, nil
}

// SplitTestName splits "suite/sub/test" into the suite slug and the test
// name. The suite is everything before the last slash.
func SplitTestName(name string) (suite, test string) {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
