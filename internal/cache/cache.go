package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// ReportCache stores computed report payloads per branch. Invalidate drops
// every entry for a branch at once by advancing the branch generation.
//
// Callers read Generation before building a payload and pass it to Set, so a
// payload built from data that changed mid-build is never served.
type ReportCache interface {
	Generation(ctx context.Context, branchID string) (int64, error)
	Get(ctx context.Context, branchID string, key string, dest any) (bool, error)
	Set(ctx context.Context, branchID string, generation int64, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, branchID string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Generation(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (NoopReportCache) Get(_ context.Context, _ string, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ int64, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryReportCache is a process-local ReportCache for single-node runs and
// tests. Values round-trip through JSON like the Redis cache does.
type MemoryReportCache struct {
	mu          sync.Mutex
	entries     map[string]map[string]memoryEntry
	generations map[string]int64
	now         func() time.Time
}

func NewMemoryReportCache() *MemoryReportCache {
	return &MemoryReportCache{
		entries:     map[string]map[string]memoryEntry{},
		generations: map[string]int64{},
		now:         time.Now,
	}
}

func (c *MemoryReportCache) Generation(_ context.Context, branchID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[branchID], nil
}

func (c *MemoryReportCache) Get(_ context.Context, branchID string, key string, dest any) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[branchID][key]
	if ok && !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries[branchID], key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set drops the value when generation is no longer current.
func (c *MemoryReportCache) Set(_ context.Context, branchID string, generation int64, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generations[branchID] {
		return nil
	}
	if c.entries[branchID] == nil {
		c.entries[branchID] = map[string]memoryEntry{}
	}
	c.entries[branchID][key] = entry
	return nil
}

func (c *MemoryReportCache) Invalidate(_ context.Context, branchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[branchID]++
	delete(c.entries, branchID)
	return nil
}
