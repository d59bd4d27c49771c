package squad

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	client, err := New(server.URL, "test-token", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return client, server
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestNew_TrimsBaseURL(t *testing.T) {
	c, err := New("https://qa-reports.linaro.org/", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != "https://qa-reports.linaro.org" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}

func TestNew_InvalidRateLimit(t *testing.T) {
	if _, err := New("http://squad", "", WithRateLimit(-1, 1)); err == nil {
		t.Fatal("expected error for negative rate")
	}
}

func TestClient_SendsTokenAndRequestID(t *testing.T) {
	var gotAuth, gotID string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get("X-Request-ID")
		writeJSON(w, page[Group]{Results: []Group{{ID: 1, Slug: "lkft"}}})
	})

	if _, err := client.Group(context.Background(), "lkft"); err != nil {
		t.Fatalf("Group: %v", err)
	}
	if gotAuth != "Token test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotID == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestClient_Group_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, page[Group]{})
	})

	_, err := client.Group(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound, got %v", err)
	}
	if !errors.Is(err, ErrNoSuchEntity) {
		t.Errorf("expected ErrNoSuchEntity, got %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]string{"detail": "Invalid token."})
	})

	_, err := client.TestRun(context.Background(), 7)
	if !IsUnauthorized(err) {
		t.Fatalf("expected IsUnauthorized, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Detail() != "Invalid token." {
		t.Errorf("unexpected error detail: %v", err)
	}
	if apiErr.Operation() != "get testrun" {
		t.Errorf("Operation = %q", apiErr.Operation())
	}
}

func TestClient_TestRuns_FollowsPagination(t *testing.T) {
	var server *httptest.Server
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/testruns/" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("environment__id__in"); got != "3,4" {
			t.Errorf("environment filter = %q", got)
		}
		if r.URL.Query().Get("page") == "2" {
			writeJSON(w, page[TestRun]{Results: []TestRun{{ID: 12}}})
			return
		}
		writeJSON(w, page[TestRun]{
			Count:   2,
			Next:    server.URL + "/api/testruns/?build=5&environment__id__in=3%2C4&page=2",
			Results: []TestRun{{ID: 11, Environment: server.URL + "/api/environments/3/"}},
		})
	})

	runs, err := client.TestRuns(context.Background(), 5, []int{3, 4})
	if err != nil {
		t.Fatalf("TestRuns: %v", err)
	}
	var ids []int
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]int{11, 12}, ids); diff != "" {
		t.Errorf("run ids mismatch (-want +got):\n%s", diff)
	}
	if runs[0].EnvironmentID() != 3 {
		t.Errorf("EnvironmentID = %d, want 3", runs[0].EnvironmentID())
	}
}

func TestClient_Tests_Filter(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("test_run") != "9" || q.Get("suite__id__in") != "1,2" || q.Get("result__isnull") != "false" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		pass := true
		writeJSON(w, page[Test]{Results: []Test{{ID: 1, Name: "ltp-syscalls/abort01", Status: StatusPass, Result: &pass}}})
	})

	tests, err := client.Tests(context.Background(), 9, TestFilter{SuiteIDs: []int{1, 2}, HasResult: true})
	if err != nil {
		t.Fatalf("Tests: %v", err)
	}
	if len(tests) != 1 || tests[0].Result == nil || !*tests[0].Result {
		t.Errorf("unexpected tests: %+v", tests)
	}
}

func TestProjectScope_BuildsAndSuites(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/api/groups/":
			writeJSON(w, page[Group]{Results: []Group{{ID: 1, Slug: "lkft"}}})
		case "/api/projects/":
			if q.Get("group") != "1" || q.Get("slug") != "linux-next-master" {
				t.Errorf("project query = %s", r.URL.RawQuery)
			}
			writeJSON(w, page[Project]{Results: []Project{{ID: 22, Slug: "linux-next-master"}}})
		case "/api/builds/":
			if q.Get("project") != "22" || q.Get("ordering") != "-id" || q.Get("limit") != "2" {
				t.Errorf("builds query = %s", r.URL.RawQuery)
			}
			writeJSON(w, page[Build]{Results: []Build{
				{ID: 300, Version: "next-20240301", CreatedAt: created, Finished: true},
				{ID: 299, Version: "next-20240229"},
				{ID: 298, Version: "next-20240228"},
			}})
		case "/api/suites/":
			if q.Get("project__group__slug") != "lkft" || q.Get("slug__in") != "ltp-syscalls" {
				t.Errorf("suites query = %s", r.URL.RawQuery)
			}
			writeJSON(w, page[Suite]{Results: []Suite{{ID: 5, Slug: "ltp-syscalls"}, {ID: 6, Slug: "ltp-syscalls"}}})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	project, err := client.Project(ctx, "lkft", "linux-next-master")
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if project.Info().ID != 22 || project.Group().Slug != "lkft" {
		t.Errorf("scope = %+v / %+v", project.Group(), project.Info())
	}
	builds, err := project.Builds(ctx, BuildQuery{Count: 2, Ordering: "-id"})
	if err != nil {
		t.Fatalf("Builds: %v", err)
	}
	if len(builds) != 2 {
		t.Fatalf("expected limit to cap builds at 2, got %d", len(builds))
	}
	if !builds[0].CreatedAt.Equal(created) || !builds[0].Finished {
		t.Errorf("unexpected first build: %+v", builds[0])
	}

	suites, err := project.SuitesInGroup(ctx, "ltp-syscalls")
	if err != nil {
		t.Fatalf("SuitesInGroup: %v", err)
	}
	if len(suites) != 2 {
		t.Errorf("expected both sibling suites, got %d", len(suites))
	}
}

func TestIDFromURL(t *testing.T) {
	cases := map[string]int{
		"https://qa-reports.linaro.org/api/builds/123/": 123,
		"https://host2/api/testruns/45":                 45,
		"77":                                            77,
	}
	for in, want := range cases {
		got, err := IDFromURL(in)
		if err != nil {
			t.Fatalf("IDFromURL(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("IDFromURL(%q) = %d, want %d", in, got, want)
		}
	}
	if _, err := IDFromURL("https://host/api/builds/"); err == nil {
		t.Error("expected error for url without id")
	}
}

func TestSplitTestName(t *testing.T) {
	suite, test := SplitTestName("ltp-syscalls/abort01")
	if suite != "ltp-syscalls" || test != "abort01" {
		t.Errorf("got %q, %q", suite, test)
	}
	suite, test = SplitTestName("boot")
	if suite != "" || test != "boot" {
		t.Errorf("got %q, %q", suite, test)
	}
}

func TestClient_Projects(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/projects/" || q.Get("id__in") != "22,23" || q.Get("ordering") != "slug" {
			t.Errorf("projects query = %s %s", r.URL.Path, r.URL.RawQuery)
		}
		writeJSON(w, page[Project]{Results: []Project{{ID: 23, Slug: "linux-mainline"}, {ID: 22, Slug: "linux-next"}}})
	})

	projects, err := client.Projects(context.Background(), []int{22, 23})
	if err != nil {
		t.Fatalf("Projects: %v", err)
	}
	if len(projects) != 2 || projects[0].Slug != "linux-mainline" {
		t.Errorf("unexpected projects: %+v", projects)
	}

	none, err := client.Projects(context.Background(), nil)
	if err != nil || none != nil {
		t.Errorf("Projects(nil) = %v, %v", none, err)
	}
}

func TestClient_GroupSuites_RequiresSlug(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	})
	if _, err := client.GroupSuites(context.Background(), "lkft"); err == nil {
		t.Fatal("expected error without suite slugs")
	}
}

func TestReadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  abc123 \nignored\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := ReadToken(path)
	if err != nil {
		t.Fatalf("ReadToken: %v", err)
	}
	if got != "abc123" {
		t.Errorf("ReadToken = %q, want abc123", got)
	}
	if _, err := ReadToken(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClient_TestsMatching(t *testing.T) {
	before := time.Date(2020, 12, 4, 6, 0, 0, 0, time.UTC)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"suite__id__in":         "5",
			"environment__id__in":   "7",
			"metadata__name__in":    "gcc-10-defconfig",
			"result":                "true",
			"build__created_at__lt": "2020-12-04T06:00:00Z",
			"ordering":              "-build_id",
			"limit":                 "1",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		if q.Has("test_run") {
			t.Errorf("search must not be scoped to a test run: %s", r.URL.RawQuery)
		}
		writeJSON(w, page[Test]{Results: []Test{
			{ID: 700, Build: "http://squad/api/builds/48/", TestRun: "http://squad/api/testruns/81/"},
			{ID: 699},
		}})
	})

	tests, err := client.TestsMatching(context.Background(), TestFilter{
		SuiteIDs:           []int{5},
		EnvironmentIDs:     []int{7},
		Names:              []string{"gcc-10-defconfig"},
		Passed:             true,
		BuildCreatedBefore: before,
		Ordering:           "-build_id",
		Limit:              1,
	})
	if err != nil {
		t.Fatalf("TestsMatching: %v", err)
	}
	if len(tests) != 1 {
		t.Fatalf("limit not applied: %d tests", len(tests))
	}
	if tests[0].BuildID() != 48 || tests[0].TestRunID() != 81 {
		t.Errorf("BuildID = %d, TestRunID = %d", tests[0].BuildID(), tests[0].TestRunID())
	}
}

func TestClient_BuildMetrics(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/metrics/" || q.Get("test_run__build") != "31" || q.Get("ordering") != "name" {
			t.Errorf("metrics query = %s %s", r.URL.Path, r.URL.RawQuery)
		}
		writeJSON(w, page[Metric]{Results: []Metric{{ID: 1, ShortName: "dhry-score", Result: 1301.5}}})
	})

	metrics, err := client.BuildMetrics(context.Background(), 31)
	if err != nil {
		t.Fatalf("BuildMetrics: %v", err)
	}
	if diff := cmp.Diff([]Metric{{ID: 1, ShortName: "dhry-score", Result: 1301.5}}, metrics); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Build(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/builds/48/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, Build{ID: 48, Version: "next-20201202"})
	})

	b, err := client.Build(context.Background(), 48)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if b.Version != "next-20201202" {
		t.Errorf("Version = %q", b.Version)
	}
	if _, err := client.Build(context.Background(), 49); !IsNotFound(err) {
		t.Errorf("expected IsNotFound, got %v", err)
	}
}
