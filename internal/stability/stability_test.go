package stability

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadutils/internal/format"
	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

func test(name, status string, env int) squad.Test {
	return squad.Test{
		Name:        name,
		Status:      status,
		Environment: "https://squad/api/environments/" + strconv.Itoa(env) + "/",
	}
}

func TestStableness(t *testing.T) {
	assert.Equal(t, -1.0, Stableness([]string{}, "pass"))
	assert.Equal(t, 1.0, Stableness([]string{"pass", "pass"}, "pass"))
	assert.Equal(t, 0.25, Stableness([]string{"pass", "fail", "skip", "fail"}, "pass"))
	assert.Equal(t, 0.5, Stableness([]float64{1, 0.5}, 1.0))
}

func TestNewTable_PerEnvironment(t *testing.T) {
	envs := []squad.Environment{{ID: 2, Slug: "x86"}, {ID: 1, Slug: "arm64"}}
	tests := []squad.Test{
		test("ltp-syscalls/fork13", "pass", 1),
		test("ltp-syscalls/fork13", "fail", 1),
		test("ltp-syscalls/fork13", "pass", 2),
		test("ltp-syscalls/abs01", "pass", 1),
		test("ltp-syscalls/abs01", "pass", 2),
		test("kunit/list", "pass", 2),
		test("kunit/list", "pass", 9),
	}
	tbl := NewTable(tests, envs)

	assert.Equal(t, []string{"arm64", "x86"}, tbl.Environments)
	want := []Row{
		{Suite: "kunit", Test: "list", Cells: []float64{-1, 1}},
		{Suite: "ltp-syscalls", Test: "abs01", Cells: []float64{1, 1}},
		{Suite: "ltp-syscalls", Test: "fork13", Cells: []float64{0.5, 1}},
	}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	wantSuites := []SuiteSummary{
		{Suite: "kunit", Ratio: 0.5},
		{Suite: "ltp-syscalls", Ratio: 0.75},
	}
	if diff := cmp.Diff(wantSuites, tbl.Suites); diff != "" {
		t.Errorf("suites mismatch (-want +got):\n%s", diff)
	}
}

func TestNewTable_Pooled(t *testing.T) {
	tests := []squad.Test{
		test("kunit/list", "pass", 1),
		test("kunit/list", "fail", 2),
		test("kunit/hash", "pass", 2),
	}
	tbl := NewTable(tests, nil)

	assert.Empty(t, tbl.Environments)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []float64{1}, tbl.Rows[0].Cells)
	assert.Equal(t, []float64{0.5}, tbl.Rows[1].Cells)
	assert.Equal(t, []SuiteSummary{{Suite: "kunit", Ratio: 0.5}}, tbl.Suites)
}

func TestTable_Render(t *testing.T) {
	tbl := NewTable([]squad.Test{
		test("kunit/list", "pass", 1),
		test("kunit/list", "fail", 1),
	}, []squad.Environment{{ID: 1, Slug: "arm64"}})

	out := tbl.Render(format.ASCII, false)
	for _, want := range []string{"arm64", "list", "50%", "Suite summary", "0%"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "ARM64", "environment slugs are printed as written")
	assert.Equal(t, "*** No tests available ***\n", NewTable(nil, nil).Render(format.ASCII, false))
}

type fakeSource struct {
	mu          sync.Mutex
	builds      []squad.Build
	tests       map[int][]squad.Test
	gotQuery    squad.BuildQuery
	gotFilters  []squad.TestFilter
	suites      []squad.Suite
	envs        []squad.Environment
	failBuildID int
}

func (f *fakeSource) Builds(_ context.Context, q squad.BuildQuery) ([]squad.Build, error) {
	f.gotQuery = q
	return f.builds, nil
}

func (f *fakeSource) Suites(_ context.Context, slugs ...string) ([]squad.Suite, error) {
	return f.suites, nil
}

func (f *fakeSource) Environments(_ context.Context, slugs ...string) ([]squad.Environment, error) {
	return f.envs, nil
}

func (f *fakeSource) BuildTests(_ context.Context, buildID int, filter squad.TestFilter) ([]squad.Test, error) {
	f.mu.Lock()
	f.gotFilters = append(f.gotFilters, filter)
	f.mu.Unlock()
	if buildID == f.failBuildID {
		return nil, errors.New("boom")
	}
	return append([]squad.Test(nil), f.tests[buildID]...), nil
}

func TestCollect(t *testing.T) {
	src := &fakeSource{
		builds: []squad.Build{{ID: 2, Version: "v2"}, {ID: 1, Version: "v1"}},
		tests: map[int][]squad.Test{
			1: {test("kunit/a", "pass", 1), test("linux-log-parser-boot/panic", "fail", 1)},
			2: {test("kunit/b", "fail", 1)},
		},
		suites: []squad.Suite{{ID: 5, Slug: "kunit"}},
		envs:   []squad.Environment{{ID: 1, Slug: "arm64"}},
	}
	tests, envs, err := Collect(context.Background(), src, Query{
		Suites:       []string{"kunit"},
		Environments: []string{"arm64"},
		Tests:        []string{"a", "b"},
		Parallel:     2,
	}, logging.Discard())
	require.NoError(t, err)

	var names []string
	for _, tt := range tests {
		names = append(names, tt.Name)
	}
	assert.Equal(t, []string{"kunit/b", "kunit/a"}, names)
	assert.Equal(t, src.envs, envs)
	assert.Equal(t, squad.BuildQuery{Count: DefaultBuilds, Ordering: "-id"}, src.gotQuery)
	require.NotEmpty(t, src.gotFilters)
	assert.Equal(t, squad.TestFilter{SuiteIDs: []int{5}, EnvironmentIDs: []int{1}, Names: []string{"a", "b"}}, src.gotFilters[0])
}

func TestCollect_VersionsAndPooled(t *testing.T) {
	src := &fakeSource{builds: []squad.Build{{ID: 1, Version: "v1"}}}
	_, envs, err := Collect(context.Background(), src, Query{Versions: []string{"v1"}, PoolEnvironments: true}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, envs)
	assert.Equal(t, squad.BuildQuery{Versions: []string{"v1"}}, src.gotQuery)
}

func TestCollect_Errors(t *testing.T) {
	src := &fakeSource{builds: []squad.Build{{ID: 1, Version: "v1"}}, failBuildID: 1}
	_, _, err := Collect(context.Background(), src, Query{PoolEnvironments: true}, logging.Discard())
	assert.ErrorContains(t, err, "v1")

	_, _, err = Collect(context.Background(), &fakeSource{}, Query{Suites: []string{"nope"}}, logging.Discard())
	assert.True(t, squad.IsNotFound(err))
}
