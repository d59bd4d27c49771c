package squad

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TestFilter narrows a test listing. Zero fields are not sent.
type TestFilter struct {
	SuiteIDs       []int
	SuiteSlug      string
	EnvironmentIDs []int
	Names          []string
	// HasResult restricts to tests with a recorded pass/fail result.
	HasResult bool
	// Passed restricts to passing tests.
	Passed bool
	// BuildCreatedBefore restricts to tests of builds created strictly
	// before this time.
	BuildCreatedBefore time.Time
	// Ordering is a SQUAD ordering expression, e.g. "-build_id".
	Ordering string
	// Limit caps the number of tests returned; 0 means all.
	Limit int
}

func (f TestFilter) values() url.Values {
	params := url.Values{}
	if len(f.SuiteIDs) > 0 {
		params.Set("suite__id__in", joinInts(f.SuiteIDs))
	}
	if f.SuiteSlug != "" {
		params.Set("suite__slug", f.SuiteSlug)
	}
	if len(f.EnvironmentIDs) > 0 {
		params.Set("environment__id__in", joinInts(f.EnvironmentIDs))
	}
	if len(f.Names) > 0 {
		params.Set("metadata__name__in", strings.Join(f.Names, ","))
	}
	if f.HasResult {
		params.Set("result__isnull", "false")
	}
	if f.Passed {
		params.Set("result", "true")
	}
	if !f.BuildCreatedBefore.IsZero() {
		params.Set("build__created_at__lt", f.BuildCreatedBefore.UTC().Format(time.RFC3339Nano))
	}
	if f.Ordering != "" {
		params.Set("ordering", f.Ordering)
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	return params
}

// BuildQuery selects builds of a project.
type BuildQuery struct {
	// Count caps the number of builds returned; 0 means all.
	Count int
	// Ordering is a SQUAD ordering expression, e.g. "-id" for newest first.
	Ordering string
	// Versions restricts to the listed build versions.
	Versions []string
	// CreatedBefore restricts to builds created strictly before this time.
	CreatedBefore time.Time
}

func (q BuildQuery) values() url.Values {
	params := url.Values{}
	if q.Ordering != "" {
		params.Set("ordering", q.Ordering)
	}
	if q.Count > 0 {
		params.Set("limit", strconv.Itoa(q.Count))
	}
	if len(q.Versions) > 0 {
		params.Set("version__in", strings.Join(q.Versions, ","))
	}
	if !q.CreatedBefore.IsZero() {
		params.Set("created_at__lt", q.CreatedBefore.UTC().Format(time.RFC3339Nano))
	}
	return params
}

func itoa(i int) string { return strconv.Itoa(i) }

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
