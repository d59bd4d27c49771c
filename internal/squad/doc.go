// Package squad provides a read-only, scope-based client for the SQUAD
// test-reporting REST API (/api/...).
//
// Usage:
//
//	client, err := squad.New(baseURL, token, squad.WithTimeout(30*time.Second))
//	project, err := client.Project(ctx, "lkft", "linux-next-master")
//	builds, err := project.Builds(ctx, squad.BuildQuery{Count: 10, Ordering: "-id"})
//	runs, err := project.TestRuns(ctx, builds[0].ID, []int{env.ID})
//
// The client never issues writes. Related entities come back as URLs;
// IDFromURL extracts their numeric id.
package squad
