package cmd

import (
	"context"
	"time"

	"github.com/dripline/dripline/pkg/dedupe"
)

// NewDeduper returns the redis deduper when a URL is configured, otherwise
// the in-memory one. Multi-replica ingest deployments need redis; memory
// only deduplicates within one process.
func NewDeduper(ctx context.Context, redisURL string, retention time.Duration) (dedupe.Deduper, error) {
	if redisURL == "" {
		return dedupe.NewMemoryDeduper(retention), nil
	}

	return dedupe.NewRedisDeduper(ctx, redisURL, retention)
}
