package stability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadutils/internal/format"
	"squadutils/internal/squad"
)

type fakeMetrics struct {
	mu       sync.Mutex
	builds   []squad.Build
	metrics  map[int][]squad.Metric
	gotQuery squad.BuildQuery
	fail     int
}

func (f *fakeMetrics) Builds(_ context.Context, q squad.BuildQuery) ([]squad.Build, error) {
	f.gotQuery = q
	return f.builds, nil
}

func (f *fakeMetrics) BuildMetrics(_ context.Context, id int) ([]squad.Metric, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.fail {
		return nil, errors.New("503 service unavailable")
	}
	return f.metrics[id], nil
}

func TestCollectMetrics(t *testing.T) {
	before := time.Date(2020, 9, 30, 20, 40, 50, 0, time.UTC)
	src := &fakeMetrics{
		builds: []squad.Build{{ID: 2, Version: "v5.9-rc7"}, {ID: 1, Version: "v5.9-rc6"}},
		metrics: map[int][]squad.Metric{
			1: {{ShortName: "dhry-score", Result: 1234.5}},
			2: {{ShortName: "dhry-score", Result: 1301}, {ShortName: "whet-score", Result: 88.5}},
		},
	}

	got, err := CollectMetrics(context.Background(), src, MetricQuery{Before: before, Parallel: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, squad.BuildQuery{Count: DefaultBuilds, Ordering: "-id", CreatedBefore: before}, src.gotQuery)
	require.Len(t, got, 2)
	assert.Equal(t, "v5.9-rc7", got[0].Build.Version)
	assert.Len(t, got[0].Metrics, 2)
	assert.Equal(t, "v5.9-rc6", got[1].Build.Version)
}

func TestCollectMetrics_BuildFailure(t *testing.T) {
	src := &fakeMetrics{builds: []squad.Build{{ID: 2, Version: "v5.9-rc7"}}, fail: 2}
	_, err := CollectMetrics(context.Background(), src, MetricQuery{Count: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v5.9-rc7")
}

func TestRenderMetrics(t *testing.T) {
	out := RenderMetrics([]BuildMetrics{
		{Build: squad.Build{Version: "v5.9-rc7"}, Metrics: []squad.Metric{{ShortName: "whet-score", Result: 88.5}}},
		{Build: squad.Build{Version: "v5.9-rc6"}},
	}, format.ASCII)

	for _, want := range []string{"Metrics for build v5.9-rc7", "whet-score", "88.50", "No metrics for build v5.9-rc6"} {
		assert.Contains(t, out, want)
	}
}
