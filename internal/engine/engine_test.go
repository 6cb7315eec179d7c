package engine_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/trainer/internal/data"
	"github.com/born-ml/trainer/internal/engine"
	"github.com/born-ml/trainer/internal/model"
)

type recordingLogger struct {
	hparams   []map[string]any
	metrics   []engine.Metrics
	finalized []string
}

func (r *recordingLogger) LogHyperparams(params map[string]any) error {
	r.hparams = append(r.hparams, params)
	return nil
}

func (r *recordingLogger) LogMetrics(metrics engine.Metrics, _ int64) error {
	r.metrics = append(r.metrics, metrics)
	return nil
}

func (r *recordingLogger) Finalize(status string) error {
	r.finalized = append(r.finalized, status)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func blobs(t *testing.T, seed uint64) data.DataModule {
	t.Helper()
	train, err := data.Blobs(data.BlobsConfig{Samples: 90, Features: 4, Classes: 3, Spread: 0.5, Seed: seed})
	require.NoError(t, err)
	val, err := data.Blobs(data.BlobsConfig{Samples: 30, Features: 4, Classes: 3, Spread: 0.5, Seed: seed + 1})
	require.NoError(t, err)
	return data.NewPair(train, val, data.LoaderConfig{BatchSize: 16, Shuffle: true, Seed: seed})
}

func newMLP(t *testing.T) *model.MLP {
	t.Helper()
	m, err := model.NewMLP(model.Config{Hidden: []int{16}, Classes: 3, Optimizer: "adam", LR: 0.01, Seed: 1})
	require.NoError(t, err)
	return m
}

func TestFit_LossDecreases(t *testing.T) {
	rec := &recordingLogger{}
	tr := engine.New(
		engine.WithMaxEpochs(8),
		engine.WithDevices(0, 1),
		engine.WithLoggers(rec),
		engine.WithLogger(quietLogger()),
	)

	require.NoError(t, tr.Fit(context.Background(), newMLP(t), blobs(t, 1), engine.FitOptions{}))

	require.Len(t, rec.metrics, 8)
	require.Len(t, rec.hparams, 1)
	first, last := rec.metrics[0], rec.metrics[len(rec.metrics)-1]
	assert.Less(t, last["val_loss"], first["val_loss"])
	assert.Less(t, last["train_loss"], first["train_loss"])
	assert.Greater(t, last["val_acc"], 0.8)
	assert.Equal(t, 7, tr.Epoch())
	assert.Equal(t, int64(8*6), tr.GlobalStep())
}

func TestFit_PerCallLoggersOverrideDefaults(t *testing.T) {
	def, call := &recordingLogger{}, &recordingLogger{}
	tr := engine.New(engine.WithLoggers(def), engine.WithLogger(quietLogger()))

	require.NoError(t, tr.Fit(context.Background(), newMLP(t), blobs(t, 2), engine.FitOptions{Loggers: []engine.Logger{call}}))
	assert.Empty(t, def.metrics)
	assert.Len(t, call.metrics, 1)
}

func TestFit_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := engine.New(engine.WithLogger(quietLogger()))
	err := tr.Fit(ctx, newMLP(t), blobs(t, 3), engine.FitOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit_NoData(t *testing.T) {
	val, err := data.Blobs(data.BlobsConfig{Samples: 3, Features: 2, Classes: 3, Seed: 1})
	require.NoError(t, err)
	dm := data.NewPair(data.NewSubset(val, nil), val, data.LoaderConfig{})

	tr := engine.New(engine.WithLogger(quietLogger()))
	err = tr.Fit(context.Background(), newMLP(t), dm, engine.FitOptions{})
	assert.ErrorIs(t, err, engine.ErrNoData)
}

func TestModelCheckpoint_TopOneKeepsSingleFile(t *testing.T) {
	dir := t.TempDir()
	ckpt, err := engine.NewModelCheckpoint(engine.CheckpointConfig{
		Dir:      dir,
		Filename: "mlp_{epoch:02d}-{val_loss:.2f}",
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	tr := engine.New(engine.WithMaxEpochs(5), engine.WithCallbacks(ckpt), engine.WithLogger(quietLogger()))
	require.NoError(t, tr.Fit(context.Background(), newMLP(t), blobs(t, 4), engine.FitOptions{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	best := ckpt.BestModelPath()
	assert.Equal(t, filepath.Join(dir, entries[0].Name()), best)
	assert.Contains(t, best, "mlp_epoch=")
	assert.Contains(t, best, "-val_loss=")
	_, ok := ckpt.BestModelScore()
	assert.True(t, ok)

	ckpt.Reset()
	assert.Empty(t, ckpt.BestModelPath())
	assert.FileExists(t, best)
}

func TestModelCheckpoint_VersionSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixed.ckpt"), []byte("stale"), 0o600))

	ckpt, err := engine.NewModelCheckpoint(engine.CheckpointConfig{Dir: dir, Filename: "fixed", Logger: quietLogger()})
	require.NoError(t, err)

	tr := engine.New(engine.WithCallbacks(ckpt), engine.WithLogger(quietLogger()))
	require.NoError(t, tr.Fit(context.Background(), newMLP(t), blobs(t, 5), engine.FitOptions{}))
	assert.Equal(t, filepath.Join(dir, "fixed-v1.ckpt"), ckpt.BestModelPath())
}

func TestModelCheckpoint_PrefixIsLiteral(t *testing.T) {
	dir := t.TempDir()
	ckpt, err := engine.NewModelCheckpoint(engine.CheckpointConfig{
		Dir:      dir,
		Prefix:   "mlp{epoch}{val_loss:.1f}",
		Filename: "_{epoch:02d}",
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	tr := engine.New(engine.WithMaxEpochs(1), engine.WithCallbacks(ckpt), engine.WithLogger(quietLogger()))
	require.NoError(t, tr.Fit(context.Background(), newMLP(t), blobs(t, 5), engine.FitOptions{}))

	assert.Equal(t, filepath.Join(dir, "mlp{epoch}{val_loss:.1f}_epoch=00.ckpt"), ckpt.BestModelPath())
	assert.FileExists(t, ckpt.BestModelPath())
}

func TestModelCheckpoint_SkipsNonFiniteScores(t *testing.T) {
	dir := t.TempDir()
	ckpt, err := engine.NewModelCheckpoint(engine.CheckpointConfig{Dir: dir, Filename: "m", Logger: quietLogger()})
	require.NoError(t, err)

	tr := engine.New(engine.WithLogger(quietLogger()))
	m := newMLP(t)
	require.NoError(t, tr.Setup(m, blobs(t, 6).TrainLoader()))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		require.NoError(t, ckpt.OnValidationEnd(tr, m, engine.Metrics{"val_loss": v}))
	}
	assert.Empty(t, ckpt.BestModelPath())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestModelCheckpoint_InvalidConfig(t *testing.T) {
	_, err := engine.NewModelCheckpoint(engine.CheckpointConfig{Mode: "median"})
	assert.Error(t, err)
	_, err = engine.NewModelCheckpoint(engine.CheckpointConfig{SaveTopK: -2})
	assert.Error(t, err)
}

func TestFit_ResumeRestoresWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.ckpt")
	dm := blobs(t, 6)

	m := newMLP(t)
	tr := engine.New(engine.WithMaxEpochs(2), engine.WithLogger(quietLogger()))
	require.NoError(t, tr.Fit(context.Background(), m, dm, engine.FitOptions{}))
	require.NoError(t, tr.SaveCheckpoint(path, m))
	saved := append([]float32(nil), m.StateDict()["0.weight"].AsFloat32()...)

	// Every epoch is already complete, so resuming only restores.
	other := newMLP(t)
	resumed := engine.New(engine.WithMaxEpochs(2), engine.WithLogger(quietLogger()))
	require.NoError(t, resumed.Fit(context.Background(), other, dm, engine.FitOptions{CkptPath: path}))

	assert.Equal(t, saved, other.StateDict()["0.weight"].AsFloat32())
	assert.Equal(t, tr.GlobalStep(), resumed.GlobalStep())
}

func TestSaveWeights_RetrainsFromScratch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.ckpt")
	dm := blobs(t, 7)
	m := newMLP(t)

	tr := engine.New(engine.WithMaxEpochs(2), engine.WithLogger(quietLogger()))
	require.NoError(t, tr.Setup(m, dm.TrainLoader()))
	require.NoError(t, tr.SaveWeights(path, m))

	require.NoError(t, tr.Fit(context.Background(), m, dm, engine.FitOptions{CkptPath: path}))
	assert.Equal(t, int64(2*6), tr.GlobalStep())
}

func TestTest_LoadsCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trained.ckpt")
	dm := blobs(t, 8)

	trained := newMLP(t)
	tr := engine.New(engine.WithMaxEpochs(6), engine.WithLogger(quietLogger()))
	require.NoError(t, tr.Fit(context.Background(), trained, dm, engine.FitOptions{}))
	require.NoError(t, tr.SaveCheckpoint(path, trained))
	want, err := tr.Test(context.Background(), trained, dm, "", nil)
	require.NoError(t, err)

	rec := &recordingLogger{}
	fresh := newMLP(t)
	got, err := engine.New(engine.WithLogger(quietLogger())).Test(context.Background(), fresh, dm, path, []engine.Logger{rec})
	require.NoError(t, err)

	assert.InDelta(t, want["test_loss"], got["test_loss"], 1e-9)
	assert.Equal(t, want["test_acc"], got["test_acc"])
	require.Len(t, rec.metrics, 1)
	assert.Equal(t, []string{"test_acc", "test_loss"}, rec.metrics[0].Keys())
}

func TestRenderFilename(t *testing.T) {
	metrics := engine.Metrics{"val_loss": 0.1234, "val_acc": 0.5}

	cases := []struct {
		tmpl string
		want string
	}{
		{"mlp_{epoch:02d}-{val_loss:.2f}", "mlp_epoch=03-val_loss=0.12"},
		{"{step}", "step=120"},
		{"{val_acc}", "val_acc=0.5"},
		{"{missing:.1f}", "missing=0.0"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, engine.RenderFilename(tc.tmpl, 3, 120, metrics), tc.tmpl)
	}
}

func TestProgressBar_Writes(t *testing.T) {
	var buf bytes.Buffer
	tr := engine.New(
		engine.WithCallbacks(engine.NewProgressBar(2, &buf)),
		engine.WithLogger(quietLogger()),
	)
	require.NoError(t, tr.Fit(context.Background(), newMLP(t), blobs(t, 9), engine.FitOptions{}))
	assert.Contains(t, buf.String(), "val_loss=")
}

func TestProgressBar_Disabled(t *testing.T) {
	var buf bytes.Buffer
	tr := engine.New(
		engine.WithCallbacks(engine.NewProgressBar(0, &buf)),
		engine.WithLogger(quietLogger()),
	)
	require.NoError(t, tr.Fit(context.Background(), newMLP(t), blobs(t, 10), engine.FitOptions{}))
	assert.Empty(t, buf.String())
}
