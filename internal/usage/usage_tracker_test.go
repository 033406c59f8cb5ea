package usage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "usage.json")
	tracker, err := NewTracker(path)
	require.NoError(t, err)

	ctx := WithSession(context.Background(), "sess_1")
	tracker.Track(ctx, "gemini-2.5-flash-lite", "chat", 10, 5, 0)
	tracker.Track(ctx, "gemini-3-pro-preview", "chat", 2, 3, 7)

	stats := tracker.Stats()
	assert.Equal(t, TokenCounts{Input: 12, Output: 8, Thinking: 7, Total: 27, Calls: 2}, stats.Total)
	assert.Equal(t, int64(15), stats.ByModel["gemini-2.5-flash-lite"].Total)
	assert.Equal(t, int64(27), stats.ByOperation["chat"].Total)
	assert.Equal(t, int64(2), stats.BySession["sess_1"].Calls)

	require.NoError(t, tracker.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var persisted UsageData
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, int64(27), persisted.Aggregate.Total.Total)

	reloaded, err := NewTracker(path)
	require.NoError(t, err)
	assert.Equal(t, stats.Total, reloaded.Stats().Total)
}

func TestTracker_UnknownSession(t *testing.T) {
	tracker, err := NewTracker("")
	require.NoError(t, err)

	tracker.Track(context.Background(), "m", "advice", 1, 1, 0)
	assert.Equal(t, int64(1), tracker.Stats().BySession["unknown"].Calls)
	// Memory-only trackers never touch disk.
	assert.NoError(t, tracker.Flush())
}

func TestTracker_StatsIsCopy(t *testing.T) {
	tracker, _ := NewTracker("")
	tracker.Track(context.Background(), "m", "chat", 1, 1, 0)

	stats := tracker.Stats()
	stats.ByModel["m"] = TokenCounts{}
	assert.Equal(t, int64(2), tracker.Stats().ByModel["m"].Total)
}

func TestTracker_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	tracker, err := NewTracker(path)
	require.NoError(t, err)
	assert.Zero(t, tracker.Stats().Total.Calls)
}

func TestContextHelpers(t *testing.T) {
	tracker, _ := NewTracker("")
	ctx := NewContext(context.Background(), tracker)
	assert.Same(t, tracker, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
