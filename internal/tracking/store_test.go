package tracking_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/trainer/internal/tracking"
)

func newStore(t *testing.T) *tracking.Store {
	t.Helper()
	db, err := tracking.Open(tracking.DBConfig{Driver: "sqlite", DBName: filepath.Join(t.TempDir(), "tracking.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := tracking.NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	run, err := store.CreateRun(ctx, tracking.RunSpec{
		Project: "proj",
		Name:    "mlp_fold_0",
		Group:   "mlp",
		Config:  map[string]any{"lr": 0.01},
	})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, tracking.StatusRunning, run.Status)

	require.NoError(t, store.LogMetrics(ctx, run.ID, map[string]float64{"val_loss": 0.5, "val_acc": 0.7}, 1))
	require.NoError(t, store.LogMetrics(ctx, run.ID, map[string]float64{"val_loss": 0.25}, 2))
	require.NoError(t, store.FinishRun(ctx, run.ID, tracking.StatusFinished))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFinished, got.Status)
	require.NotNil(t, got.EndTime)
	assert.JSONEq(t, `{"lr":0.01}`, string(got.Config))
	require.Len(t, got.Metrics, 3)
	assert.Equal(t, "val_acc", got.Metrics[0].Key)
	assert.Equal(t, int64(2), got.Metrics[2].Step)
	assert.InDelta(t, 0.25, got.Metrics[2].Value, 1e-12)
}

func TestStore_SkipsNonFiniteMetrics(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	run, err := store.CreateRun(ctx, tracking.RunSpec{Project: "proj", Name: "mlp"})
	require.NoError(t, err)
	require.NoError(t, store.LogMetrics(ctx, run.ID, map[string]float64{"val_loss": math.NaN(), "val_acc": 0.5}, 1))
	require.NoError(t, store.LogMetrics(ctx, run.ID, map[string]float64{"val_loss": math.Inf(1)}, 2))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Metrics, 1)
	assert.Equal(t, "val_acc", got.Metrics[0].Key)
}

func TestStore_FinishedRunRejectsWrites(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	run, err := store.CreateRun(ctx, tracking.RunSpec{Project: "p", Name: "n"})
	require.NoError(t, err)
	require.NoError(t, store.FinishRun(ctx, run.ID, tracking.StatusFailed))

	assert.ErrorIs(t, store.FinishRun(ctx, run.ID, tracking.StatusFinished), tracking.ErrRunFinished)
	assert.ErrorIs(t, store.LogMetrics(ctx, run.ID, map[string]float64{"x": 1}, 0), tracking.ErrRunFinished)
	assert.ErrorIs(t, store.FinishRun(ctx, run.ID, tracking.StatusRunning), tracking.ErrInvalidRun)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, tracking.ErrRunNotFound)
	assert.ErrorIs(t, store.FinishRun(ctx, "missing", tracking.StatusKilled), tracking.ErrRunNotFound)
	assert.ErrorIs(t, store.LogMetrics(ctx, "missing", nil, 0), tracking.ErrRunNotFound)
}

func TestStore_ListRunsByGroup(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, spec := range []tracking.RunSpec{
		{Project: "p", Name: "a_fold_0", Group: "a"},
		{Project: "p", Name: "a_fold_1", Group: "a"},
		{Project: "p", Name: "b"},
		{Project: "q", Name: "a_fold_0", Group: "a"},
	} {
		_, err := store.CreateRun(ctx, spec)
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, tracking.RunFilter{Project: "p", Group: "a"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a_fold_0", runs[0].Name)
	assert.Equal(t, "a_fold_1", runs[1].Name)

	all, err := store.ListRuns(ctx, tracking.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRunSpec_Validate(t *testing.T) {
	long := make([]byte, tracking.MaxGroupLen+1)
	for i := range long {
		long[i] = 'g'
	}
	cases := map[string]tracking.RunSpec{
		"no project": {Name: "n"},
		"no name":    {Project: "p"},
		"long group": {Project: "p", Name: "n", Group: string(long)},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, spec.Validate(), tracking.ErrInvalidRun)
		})
	}
	assert.NoError(t, tracking.RunSpec{Project: "p", Name: "n", Group: string(long[:tracking.MaxGroupLen])}.Validate())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := tracking.Open(tracking.DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	assert.False(t, tracking.StatusRunning.Terminal())
	assert.True(t, tracking.StatusKilled.Terminal())
	assert.False(t, tracking.Status("PAUSED").Valid())
}

func TestNop(t *testing.T) {
	var c tracking.Client = tracking.Nop{}
	run, err := c.CreateRun(context.Background(), tracking.RunSpec{Project: "p", Name: "n"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, c.LogMetrics(context.Background(), run.ID, map[string]float64{"x": 1}, 0))
	assert.NoError(t, c.FinishRun(context.Background(), run.ID, tracking.StatusFinished))
}
