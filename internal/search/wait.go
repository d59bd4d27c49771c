package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

// ErrWaitTimeout is returned when builds are still unfinished at the deadline.
var ErrWaitTimeout = errors.New("timed out waiting for builds to finish")

// BuildLookup resolves a build by version. *squad.ProjectScope implements it.
type BuildLookup interface {
	BuildByVersion(ctx context.Context, version string) (*squad.Build, error)
}

// PollOptions parameterise WaitForBuilds.
type PollOptions struct {
	// Interval is the delay before the first re-check.
	Interval time.Duration
	// Backoff multiplies the interval after every round; values <= 1 keep it fixed.
	Backoff float64
	// MaxInterval caps the grown interval; 0 means no cap.
	MaxInterval time.Duration
	// Timeout bounds the whole wait.
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultPollOptions polls every 10 seconds for at most two hours.
func DefaultPollOptions() PollOptions {
	return PollOptions{Interval: 10 * time.Second, Backoff: 1, Timeout: 2 * time.Hour}
}

// WaitForBuilds blocks until every listed build version is marked finished,
// the timeout expires (ErrWaitTimeout) or ctx is cancelled. Lookup failures
// are logged and the build stays pending.
func WaitForBuilds(ctx context.Context, src BuildLookup, versions []string, opts PollOptions) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("wait for builds: interval must be positive")
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("wait for builds: timeout must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	pending := append([]string(nil), versions...)
	interval := opts.Interval
	for {
		var still []string
		for _, v := range pending {
			b, err := src.BuildByVersion(waitCtx, v)
			switch {
			case err != nil && waitCtx.Err() != nil:
				still = append(still, v)
			case err != nil:
				logger.WarnContext(ctx, "build lookup failed", "build", v, "error", err)
				still = append(still, v)
			case b.Finished:
				logger.InfoContext(ctx, "build finished", "build", v)
			default:
				still = append(still, v)
			}
		}
		pending = still
		if len(pending) == 0 {
			return nil
		}
		logger.DebugContext(ctx, "builds pending", "builds", pending, "next_check", interval)

		timer := time.NewTimer(interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: %d pending (%s)", ErrWaitTimeout, len(pending), strings.Join(pending, ", "))
		case <-timer.C:
		}

		if opts.Backoff > 1 {
			interval = time.Duration(float64(interval) * opts.Backoff)
			if opts.MaxInterval > 0 && interval > opts.MaxInterval {
				interval = opts.MaxInterval
			}
		}
	}
}
