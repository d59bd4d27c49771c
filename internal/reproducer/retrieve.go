// Package reproducer locates a test run matching a search and retrieves
// or customises the reproducer script its CI job published.
package reproducer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"squadutils/internal/artifact"
	"squadutils/internal/invocation"
	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

// ErrReproducerNotFound is returned when no reproducer could be found for a
// matched test run. It is distinct from search.ErrNotFound.
var ErrReproducerNotFound = errors.New("no reproducer found")

// Kind selects which reproducer a job published is wanted.
type Kind int

const (
	// Remote is the tuxsuite cloud reproducer.
	Remote Kind = iota
	// Local is the tuxrun reproducer for a local container runtime.
	Local
	// Plan is the tuxsuite plan the job was generated from.
	Plan
)

// KindFor maps the local and plan switches to a Kind. They are exclusive.
func KindFor(local, plan bool) (Kind, error) {
	switch {
	case local && plan:
		return 0, errors.New("local and plan reproducers cannot be requested together")
	case local:
		return Local, nil
	case plan:
		return Plan, nil
	}
	return Remote, nil
}

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Plan:
		return "plan"
	}
	return "remote"
}

// Files returns the artifact names published next to the build
// (download_url) and next to the test job (job_url).
func (k Kind) Files() (build, test string) {
	switch k {
	case Local:
		return "tuxmake_reproducer.sh", "reproducer"
	case Plan:
		return "tux_plan.yaml", "tux_plan"
	}
	return "tuxsuite_reproducer.sh", "tuxsuite_reproducer"
}

// Mode returns the invocation directive the reproducer's lines carry.
func (k Kind) Mode() invocation.Mode {
	if k == Local {
		return invocation.Local
	}
	return invocation.Remote
}

// Reproducer is a retrieved reproducer script.
type Reproducer struct {
	Text     string
	Location string
	// FromTest is set when the script came from the test job rather than
	// the build artifacts.
	FromTest bool
}

// Retrieve fetches the reproducer of a test run: first from the build
// artifacts, then from the test job. run supplies the job URL when the
// metadata lacks one.
func Retrieve(ctx context.Context, f artifact.Fetcher, md squad.TestRunMetadata, run squad.TestRun, k Kind, logger *slog.Logger) (*Reproducer, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	buildFile, testFile := k.Files()
	jobURL := md.JobURL
	if jobURL == "" {
		jobURL = run.JobURL
	}

	var failures []string
	for _, loc := range []struct {
		base, file string
		fromTest   bool
	}{
		{md.DownloadURL, buildFile, false},
		{jobURL, testFile, true},
	} {
		if loc.base == "" {
			continue
		}
		location := artifact.Join(loc.base, loc.file)
		data, err := f.Fetch(ctx, location)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.DebugContext(ctx, "reproducer location failed", "location", location, "error", err)
			failures = append(failures, err.Error())
			continue
		}
		logger.InfoContext(ctx, "retrieved reproducer", "location", location, "kind", k.String())
		return &Reproducer{Text: string(data), Location: location, FromTest: loc.fromTest}, nil
	}
	if len(failures) == 0 {
		return nil, fmt.Errorf("%w: test run %d has neither download_url nor job_url", ErrReproducerNotFound, run.ID)
	}
	return nil, fmt.Errorf("%w: %s", ErrReproducerNotFound, strings.Join(failures, "; "))
}
