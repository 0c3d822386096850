package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Revenue int64  `json:"revenue"`
	Label   string `json:"label"`
}

func TestMemoryReportCacheRoundTripAndInvalidate(t *testing.T) {
	c := NewMemoryReportCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "branch-hcm", 0, "sales:2026-05", payload{Revenue: 775000, Label: "may"}, time.Minute))
	require.NoError(t, c.Set(ctx, "branch-hn", 0, "sales:2026-05", payload{Revenue: 1}, time.Minute))

	var got payload
	hit, err := c.Get(ctx, "branch-hcm", "sales:2026-05", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, payload{Revenue: 775000, Label: "may"}, got)

	require.NoError(t, c.Invalidate(ctx, "branch-hcm"))
	hit, err = c.Get(ctx, "branch-hcm", "sales:2026-05", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = c.Get(ctx, "branch-hn", "sales:2026-05", &got)
	require.NoError(t, err)
	assert.True(t, hit, "other branches keep their entries")
}

func TestMemoryReportCacheDropsStaleGeneration(t *testing.T) {
	c := NewMemoryReportCache()
	ctx := context.Background()

	generation, err := c.Generation(ctx, "branch-hcm")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "branch-hcm"))
	require.NoError(t, c.Set(ctx, "branch-hcm", generation, "sales:2026-05", payload{Revenue: 1}, time.Minute))

	var got payload
	hit, err := c.Get(ctx, "branch-hcm", "sales:2026-05", &got)
	require.NoError(t, err)
	assert.False(t, hit, "a payload built before the invalidation must not be served")

	current, err := c.Generation(ctx, "branch-hcm")
	require.NoError(t, err)
	assert.Equal(t, generation+1, current)
	require.NoError(t, c.Set(ctx, "branch-hcm", current, "sales:2026-05", payload{Revenue: 2}, time.Minute))
	hit, err = c.Get(ctx, "branch-hcm", "sales:2026-05", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(2), got.Revenue)
}

func TestMemoryReportCacheExpires(t *testing.T) {
	c := NewMemoryReportCache()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "b", 0, "k", payload{Revenue: 1}, time.Second))
	now = now.Add(2 * time.Second)

	var got payload
	hit, err := c.Get(ctx, "b", "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNoopReportCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "b", 0, "k", payload{}, time.Minute))
	hit, err := c.Get(ctx, "b", "k", &payload{})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestLocalNotifierDeliversUntilCancelled(t *testing.T) {
	n := NewLocalNotifier()
	ctx, cancel := context.WithCancel(context.Background())

	var (
		mu  sync.Mutex
		got []SaleEvent
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Subscribe(ctx, func(_ context.Context, e SaleEvent) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		n.mu.RLock()
		defer n.mu.RUnlock()
		return len(n.handlers) == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, n.Publish(context.Background(), SaleEvent{BranchID: "branch-hcm", SaleID: "sale-1", Kind: SaleCreated}))
	cancel()
	<-done
	require.NoError(t, n.Publish(context.Background(), SaleEvent{BranchID: "branch-hcm", SaleID: "sale-2", Kind: SaleDeleted}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "sale-1", got[0].SaleID)
}
