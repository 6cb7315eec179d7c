package loggers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/trainer/internal/engine"
	"github.com/born-ml/trainer/internal/loggers"
	"github.com/born-ml/trainer/internal/tracking"
)

var (
	_ engine.Logger = (*loggers.CSVLogger)(nil)
	_ engine.Logger = (*loggers.TrackingLogger)(nil)
)

type fakeClient struct {
	created  []tracking.RunSpec
	metrics  map[string]int
	finished map[string]tracking.Status
	failOn   string
}

func newFakeClient() *fakeClient {
	return &fakeClient{metrics: map[string]int{}, finished: map[string]tracking.Status{}}
}

func (f *fakeClient) CreateRun(_ context.Context, spec tracking.RunSpec) (*tracking.Run, error) {
	if f.failOn == "create" {
		return nil, errors.New("unavailable")
	}
	f.created = append(f.created, spec)
	id := spec.Name + "#" + string(rune('0'+len(f.created)))
	return &tracking.Run{ID: id, Project: spec.Project, Name: spec.Name, Group: spec.Group}, nil
}

func (f *fakeClient) LogMetrics(_ context.Context, runID string, metrics map[string]float64, _ int64) error {
	f.metrics[runID] += len(metrics)
	return nil
}

func (f *fakeClient) FinishRun(_ context.Context, runID string, status tracking.Status) error {
	f.finished[runID] = status
	return nil
}

func TestCSVLogger_Versions(t *testing.T) {
	dir := t.TempDir()

	first, err := loggers.NewCSVLogger(dir, "mlp")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Version())
	require.NoError(t, first.LogMetrics(engine.Metrics{"val_loss": 1}, 1))

	second, err := loggers.NewCSVLogger(dir, "mlp")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Version())
	assert.Equal(t, filepath.Join(dir, "mlp", "version_1"), second.Dir())
}

func TestCSVLogger_Files(t *testing.T) {
	l, err := loggers.NewCSVLogger(t.TempDir(), "mlp_dataset=blobs")
	require.NoError(t, err)

	require.NoError(t, l.LogHyperparams(map[string]any{"lr": 0.01, "hidden": []int{8}}))
	require.NoError(t, l.LogMetrics(engine.Metrics{"val_loss": 0.5, "train_loss": 0.75}, 3))
	require.NoError(t, l.LogMetrics(engine.Metrics{"test_acc": 1}, 6))
	require.NoError(t, l.Finalize(loggers.StatusSuccess))

	raw, err := os.ReadFile(filepath.Join(l.Dir(), "metrics.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, []string{
		"step,test_acc,train_loss,val_loss",
		"3,,0.75,0.5",
		"6,1,,",
	}, lines)

	raw, err = os.ReadFile(filepath.Join(l.Dir(), "hparams.yaml"))
	require.NoError(t, err)
	var hp map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &hp))
	assert.Equal(t, 0.01, hp["lr"])
}

func TestTrackingLogger_Lifecycle(t *testing.T) {
	client := newFakeClient()
	l := loggers.NewTrackingLogger(client, "proj", "mlp_fold_0", "mlp", nil)

	require.NoError(t, l.Finalize(loggers.StatusSuccess), "finalizing before any run is a no-op")
	assert.Empty(t, client.finished)

	require.NoError(t, l.LogHyperparams(map[string]any{"lr": 0.1}))
	require.NoError(t, l.LogMetrics(engine.Metrics{"a": 1, "b": 2}, 0))
	id := l.RunID()
	require.NotEmpty(t, id)
	require.Len(t, client.created, 1)
	assert.Equal(t, "mlp", client.created[0].Group)
	assert.Equal(t, 0.1, client.created[0].Config["lr"])
	assert.Equal(t, 2, client.metrics[id])

	require.NoError(t, l.Finalize(loggers.StatusSuccess))
	assert.Equal(t, tracking.StatusFinished, client.finished[id])
	assert.Empty(t, l.RunID())

	require.NoError(t, l.LogMetrics(engine.Metrics{"a": 1}, 1))
	assert.Len(t, client.created, 2, "a finalized logger opens a new run")
	assert.NotEqual(t, id, l.RunID())
}

func TestTrackingLogger_CreateFailure(t *testing.T) {
	client := newFakeClient()
	client.failOn = "create"
	l := loggers.NewTrackingLogger(client, "p", "n", "", nil)
	assert.Error(t, l.LogMetrics(engine.Metrics{"a": 1}, 0))
	assert.Empty(t, l.RunID())
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, tracking.StatusFinished, loggers.RunStatus("success"))
	assert.Equal(t, tracking.StatusFailed, loggers.RunStatus("failed"))
	assert.Equal(t, tracking.StatusKilled, loggers.RunStatus("aborted"))
	assert.Equal(t, tracking.StatusKilled, loggers.RunStatus(""))
}

func TestTruncateGroup(t *testing.T) {
	assert.Equal(t, "short", loggers.TruncateGroup("short"))

	long := strings.Repeat("a", 200)
	assert.Len(t, loggers.TruncateGroup(long), tracking.MaxGroupLen)

	// A two-byte rune straddling the limit is dropped whole.
	multi := strings.Repeat("a", tracking.MaxGroupLen-1) + "é" + "tail"
	got := loggers.TruncateGroup(multi)
	assert.Len(t, got, tracking.MaxGroupLen-1)
	assert.True(t, strings.HasSuffix(got, "a"))
}
