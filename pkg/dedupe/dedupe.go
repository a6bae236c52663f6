// Package dedupe suppresses duplicate processing of redelivered upstream
// events. The at-least-once webhook feed means the same event ID can arrive
// more than once; MarkIfFirst lets the pipeline process each exactly once
// within the retention window.
package dedupe

import "context"

// Deduper records event keys and reports whether a key was seen before.
type Deduper interface {
	// MarkIfFirst atomically records the key and returns true when this
	// call was the first to see it.
	MarkIfFirst(ctx context.Context, key string) (bool, error)
	// Unmark forgets a key so upstream redelivery can process it again.
	// Callers use it when handling fails after the mark was set.
	Unmark(ctx context.Context, key string) error
	Close() error
}
