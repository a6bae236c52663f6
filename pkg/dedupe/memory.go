package dedupe

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper is an in-process Deduper for single-node deployments and
// tests. Keys expire lazily on lookup.
type MemoryDeduper struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
}

func NewMemoryDeduper(retention time.Duration) *MemoryDeduper {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &MemoryDeduper{
		seen:      make(map[string]time.Time),
		retention: retention,
	}
}

func (d *MemoryDeduper) MarkIfFirst(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()

	if expiry, ok := d.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}

	d.seen[key] = now.Add(d.retention)

	return true, nil
}

func (d *MemoryDeduper) Unmark(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, key)

	return nil
}

func (d *MemoryDeduper) Close() error {
	return nil
}
