package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndQueryRun(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	require.NoError(t, store.BeginRun(ctx, "run-1", "42", "build"))
	require.NoError(t, store.RecordStage(ctx, StageResult{
		RunID: "run-1", Stage: "build-frontend", Duration: 1200 * time.Millisecond, Result: "success",
	}))
	require.NoError(t, store.RecordStage(ctx, StageResult{
		RunID: "run-1", Stage: "build-pages", Duration: 300 * time.Millisecond, Result: "failed", Error: "renderer exited 1",
	}))
	require.NoError(t, store.FinishRun(ctx, "run-1", "failed"))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "failed", runs[0].Outcome)
	require.Equal(t, "42", runs[0].BuildNumber)
	require.False(t, runs[0].FinishedAt.IsZero(), "finished_at not recorded")

	stages, err := store.StagesForRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	require.Equal(t, "build-frontend", stages[0].Stage)
	require.Equal(t, 1200*time.Millisecond, stages[0].Duration)
	require.Equal(t, "renderer exited 1", stages[1].Error)
}

func TestRecentRunsLimit(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.BeginRun(ctx, id, "", "build-frontend"))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}
