package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/born-ml/trainer/internal/data"
	"github.com/born-ml/trainer/internal/engine"
	"github.com/born-ml/trainer/internal/loggers"
	"github.com/born-ml/trainer/internal/results"
)

// fold carries the per-fold logging session. Each fold gets its own remote
// run grouped under the model name and its own local log directory.
type fold struct {
	name   string
	local  *loggers.CSVLogger
	remote *loggers.TrackingLogger
}

func (t *Trainer) newFold(index int) (*fold, error) {
	name := t.FoldModelName(index)
	local, err := loggers.NewCSVLogger(t.opts.LogDir, name)
	if err != nil {
		return nil, err
	}
	return &fold{
		name:   name,
		local:  local,
		remote: loggers.NewTrackingLogger(t.opts.Tracking, t.opts.Project, name, t.opts.ModelName, t.opts.Logger),
	}, nil
}

func (f *fold) loggers() []engine.Logger {
	return []engine.Logger{f.local, f.remote}
}

func (f *fold) finish(status string) error {
	return errors.Join(f.remote.Finalize(status), f.local.Finalize(status))
}

// CrossValidate runs k-fold cross-validation of model over the union of the
// train and validation sets and returns the test metrics of each fold in
// fold order.
//
// Results are cached under the key from ResultsPath; when the cache already
// holds them they are returned without training. Every fold restarts from
// a snapshot of the untrained weights, which is deleted after the last fold.
// On failure the snapshot stays on disk and nothing is cached.
func (t *Trainer) CrossValidate(ctx context.Context, model engine.Model, train, val *data.Loader, k int) ([]results.FoldResult, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFolds, k)
	}

	if err := t.eng.Setup(model, train); err != nil {
		return nil, fmt.Errorf("failed to initialize model: %w", err)
	}

	key, err := t.ResultsPath()
	if err != nil {
		return nil, err
	}
	cached, err := t.opts.Cache.Load(ctx, key)
	switch {
	case err == nil:
		t.logger.Info("results already exist, training skipped", "path", key, "folds", len(cached))
		return cached, nil
	case !errors.Is(err, results.ErrNotFound):
		return nil, fmt.Errorf("failed to read cached results: %w", err)
	}

	t.logger.Info("starting cross-validation", "folds", k)
	dm, err := data.NewKFold(train.Dataset(), val.Dataset(), k, train.Config())
	if err != nil {
		return nil, err
	}

	initPath := t.InitialWeightsPath()
	if _, err := os.Stat(initPath); err == nil {
		t.logger.Warn("overwriting initial weights left by an earlier run", "path", initPath)
	}
	if err := os.MkdirAll(filepath.Dir(initPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	if err := t.eng.SaveWeights(initPath, model); err != nil {
		return nil, fmt.Errorf("failed to save initial weights: %w", err)
	}

	out := make([]results.FoldResult, 0, k)
	for i := range k {
		res, err := t.runFold(ctx, model, dm, i, initPath)
		if err != nil {
			t.logger.Error("cross-validation aborted, initial weights left in place",
				"fold", i, "path", initPath, "error", err)
			return nil, fmt.Errorf("fold %d: %w", i, err)
		}
		out = append(out, res)
	}

	if err := os.Remove(initPath); err != nil {
		return nil, fmt.Errorf("failed to remove initial weights: %w", err)
	}

	if err := t.opts.Cache.Store(ctx, key, out); err != nil {
		return nil, fmt.Errorf("failed to store results: %w", err)
	}
	t.logger.Info("cross-validation finished", "path", key, "folds", k)

	if _, err := os.Stat(key); err == nil {
		rel, relErr := filepath.Rel(t.opts.ResultsRoot, key)
		if relErr != nil {
			rel = filepath.Base(key)
		}
		if err := t.upload(ctx, key, rel); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (t *Trainer) runFold(ctx context.Context, model engine.Model, dm *data.KFold, index int, initPath string) (results.FoldResult, error) {
	// Every fold ranks only its own checkpoints.
	t.checkpoint.Reset()
	defer t.checkpoint.Reset()

	if err := dm.SetFold(index); err != nil {
		return nil, err
	}
	f, err := t.newFold(index)
	if err != nil {
		return nil, err
	}
	t.logger.Info("starting fold", "fold", index, "run", f.name)

	if err := t.eng.Fit(ctx, model, dm, engine.FitOptions{CkptPath: initPath, Loggers: f.loggers()}); err != nil {
		return nil, errors.Join(err, f.finish(loggers.StatusFailed))
	}

	best := t.checkpoint.BestModelPath()
	if best == "" {
		t.logger.Warn("no best checkpoint recorded, testing current weights", "fold", index)
	}
	metrics, err := t.eng.Test(ctx, model, dm, best, f.loggers())
	if err != nil {
		return nil, errors.Join(err, f.finish(loggers.StatusFailed))
	}

	if err := f.finish(loggers.StatusSuccess); err != nil {
		return nil, err
	}
	return results.FoldResult(metrics), nil
}
