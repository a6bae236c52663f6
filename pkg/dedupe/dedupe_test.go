package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	ctx := context.Background()

	first, err := d.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := d.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, second)

	other, err := d.MarkIfFirst(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)

	// An unmarked key is processed again on redelivery.
	require.NoError(t, d.Unmark(ctx, "evt-1"))

	again, err := d.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisDeduper(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()

	d, err := NewRedisDeduper(ctx, "redis://"+server.Addr(), time.Hour)
	require.NoError(t, err)

	defer d.Close()

	first, err := d.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := d.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, second)

	// Expired keys are forgotten and may be processed again.
	server.FastForward(2 * time.Hour)

	again, err := d.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, again)

	require.NoError(t, d.Unmark(ctx, "evt-1"))

	released, err := d.MarkIfFirst(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, released, "an unmarked key is processed again on redelivery")
}
