package stability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"squadutils/internal/format"
	"squadutils/internal/logging"
	"squadutils/internal/squad"
)

// MetricSource is what CollectMetrics reads. *squad.ProjectScope
// implements it.
type MetricSource interface {
	Builds(ctx context.Context, q squad.BuildQuery) ([]squad.Build, error)
	BuildMetrics(ctx context.Context, buildID int) ([]squad.Metric, error)
}

// MetricQuery selects the builds whose metrics are listed.
type MetricQuery struct {
	// Count is the number of latest builds; 0 means DefaultBuilds.
	Count int
	// Before, when set, only considers builds created before it.
	Before   time.Time
	Parallel int
}

// BuildMetrics holds the metrics of one build.
type BuildMetrics struct {
	Build   squad.Build
	Metrics []squad.Metric
}

// CollectMetrics lists the metrics of the latest builds, newest first.
func CollectMetrics(ctx context.Context, src MetricSource, q MetricQuery, logger *slog.Logger) ([]BuildMetrics, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	count := q.Count
	if count <= 0 {
		count = DefaultBuilds
	}
	builds, err := src.Builds(ctx, squad.BuildQuery{Count: count, Ordering: "-id", CreatedBefore: q.Before})
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}

	out := make([]BuildMetrics, len(builds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(q.Parallel, 1))
	for i, b := range builds {
		g.Go(func() error {
			metrics, err := src.BuildMetrics(gctx, b.ID)
			if err != nil {
				return fmt.Errorf("build %s: %w", b.Version, err)
			}
			logger.DebugContext(gctx, "fetched build metrics", "build", b.Version, "metrics", len(metrics))
			out[i] = BuildMetrics{Build: b, Metrics: metrics}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RenderMetrics formats one table per build.
func RenderMetrics(results []BuildMetrics, mode format.Mode) string {
	var b strings.Builder
	for _, bm := range results {
		if len(bm.Metrics) == 0 {
			fmt.Fprintf(&b, "No metrics for build %s\n\n", bm.Build.Version)
			continue
		}
		tb := format.NewTable(mode)
		tb.Title("Metrics for build " + bm.Build.Version)
		tb.Header("Metric", "Result")
		for _, m := range bm.Metrics {
			tb.Row(m.ShortName, fmt.Sprintf("%.2f", m.Result))
		}
		tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
		b.WriteString(tb.String())
		b.WriteString("\n\n")
	}
	return b.String()
}
