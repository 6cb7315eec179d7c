package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/born-ml/trainer/internal/data"
	"github.com/born-ml/trainer/internal/nn"
)

// FitOptions are per-call Fit settings.
type FitOptions struct {
	// CkptPath restores model weights, optimizer state and progress
	// counters before training.
	CkptPath string

	// Loggers replace the trainer's default loggers for this call when
	// non-nil.
	Loggers []Logger
}

// Fit trains m on dm.TrainLoader() and validates on dm.ValLoader() after
// every epoch. Cancellation is checked between batches.
func (t *Trainer) Fit(ctx context.Context, m Model, dm data.DataModule, opts FitOptions) error {
	train := dm.TrainLoader()
	if train.Dataset().Len() == 0 {
		return fmt.Errorf("%w: empty training set", ErrNoData)
	}
	if err := t.Setup(m, train); err != nil {
		return err
	}

	opt, err := m.ConfigureOptimizer()
	if err != nil {
		return fmt.Errorf("failed to configure optimizer: %w", err)
	}
	t.optimizer = opt
	t.epoch, t.completed, t.step = 0, 0, 0

	if opts.CkptPath != "" {
		ckpt, err := nn.LoadCheckpoint(opts.CkptPath, m, opt)
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", opts.CkptPath, err)
		}
		t.completed, t.step = ckpt.Epoch, ckpt.Step
		t.logger.Info("restored checkpoint", "path", opts.CkptPath, "epoch", ckpt.Epoch, "step", ckpt.Step)
	}

	loggers := t.loggers
	if opts.Loggers != nil {
		loggers = opts.Loggers
	}
	if hp, ok := m.(HParamsProvider); ok {
		if err := logHyperparams(loggers, hp.HParams()); err != nil {
			return err
		}
	}

	for _, cb := range t.callbacks {
		cb.OnFitStart(t, m)
	}

	criterion := m.Criterion()
	for epoch := t.completed; epoch < t.maxEpochs; epoch++ {
		t.epoch = epoch
		start := time.Now()

		batches := train.Epoch(epoch)
		for _, cb := range t.callbacks {
			cb.OnTrainEpochStart(t, m, len(batches))
		}

		var lossSum float64
		var seen int
		for i, b := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}
			opt.ZeroGrad()
			out := criterion.Forward(m.Forward(b.X), b.Y)
			m.Backward(out.Grad)
			opt.Step()
			t.step++

			lossSum += out.Loss * float64(b.Size())
			seen += b.Size()
			for _, cb := range t.callbacks {
				cb.OnTrainBatchEnd(t, m, i, out.Loss)
			}
		}
		t.completed = epoch + 1

		metrics, err := t.evaluate(ctx, m, dm.ValLoader(), "val")
		if err != nil {
			return err
		}
		metrics["train_loss"] = lossSum / float64(seen)
		metrics["epoch"] = float64(epoch)

		t.logger.Info("epoch finished",
			"epoch", epoch,
			"train_loss", metrics["train_loss"],
			"val_loss", metrics["val_loss"],
			"val_acc", metrics["val_acc"],
			"elapsed", time.Since(start).Round(time.Millisecond))

		if err := logMetrics(loggers, metrics, t.step); err != nil {
			return err
		}
		for _, cb := range t.callbacks {
			if err := cb.OnValidationEnd(t, m, metrics); err != nil {
				return err
			}
		}
	}

	for _, cb := range t.callbacks {
		cb.OnFitEnd(t, m)
	}
	return nil
}

// Setup materializes lazy parameters with one forward pass on the first
// training batch and applies the device parallelism to the model.
func (t *Trainer) Setup(m Model, train *data.Loader) error {
	if !nn.Initialized(m) {
		b, ok := train.First()
		if !ok {
			return fmt.Errorf("%w: cannot initialize lazy parameters", ErrNoData)
		}
		m.Forward(b.X)
	}
	if pa, ok := m.(nn.ParallelAware); ok {
		pa.SetParallel(t.par)
	}
	return nil
}

// Test evaluates m on dm.TestLoader(). When ckptPath is set the weights are
// loaded from it first. Metrics are logged to loggers, or to the default
// loggers when loggers is nil.
func (t *Trainer) Test(ctx context.Context, m Model, dm data.DataModule, ckptPath string, loggers []Logger) (Metrics, error) {
	test := dm.TestLoader()
	if err := t.Setup(m, test); err != nil {
		return nil, err
	}
	if ckptPath != "" {
		if _, err := nn.LoadCheckpoint(ckptPath, m, nil); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", ckptPath, err)
		}
	}

	metrics, err := t.evaluate(ctx, m, test, "test")
	if err != nil {
		return nil, err
	}
	if loggers == nil {
		loggers = t.loggers
	}
	if err := logMetrics(loggers, metrics, t.step); err != nil {
		return nil, err
	}
	t.logger.Info("test finished", "test_loss", metrics["test_loss"], "test_acc", metrics["test_acc"])
	return metrics, nil
}

// evaluate returns "<prefix>_loss" and "<prefix>_acc" over all batches.
func (t *Trainer) evaluate(ctx context.Context, m Model, l *data.Loader, prefix string) (Metrics, error) {
	if l.Dataset().Len() == 0 {
		return nil, fmt.Errorf("%w: empty %s set", ErrNoData, prefix)
	}
	criterion := m.Criterion()
	var lossSum float64
	var correct, seen int
	for _, b := range l.Epoch(0) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := criterion.Forward(m.Forward(b.X), b.Y)
		lossSum += out.Loss * float64(b.Size())
		correct += out.Correct
		seen += b.Size()
	}
	return Metrics{
		prefix + "_loss": lossSum / float64(seen),
		prefix + "_acc":  float64(correct) / float64(seen),
	}, nil
}

// SaveCheckpoint writes the model weights, the optimizer state of the last
// Fit (if any) and the progress counters to path.
func (t *Trainer) SaveCheckpoint(path string, m Model) error {
	return t.saveCheckpoint(path, m, "", 0)
}

// SaveWeights writes a weights-only checkpoint with zeroed progress
// counters. A Fit restoring from it trains every epoch.
func (t *Trainer) SaveWeights(path string, m Model) error {
	ckpt := &nn.Checkpoint{Model: m, CreatedAt: time.Now().UTC()}
	if err := ckpt.Save(path); err != nil {
		return err
	}
	t.logger.Debug("saved weights", "path", path)
	return nil
}

func (t *Trainer) saveCheckpoint(path string, m Model, monitor string, value float64) error {
	ckpt := &nn.Checkpoint{
		Model:        m,
		Epoch:        t.completed,
		Step:         t.step,
		Monitor:      monitor,
		MonitorValue: value,
		CreatedAt:    time.Now().UTC(),
	}
	if t.optimizer != nil {
		ckpt.Optimizer = t.optimizer
	}
	if hp, ok := m.(HParamsProvider); ok {
		ckpt.Metadata = map[string]any{"hparams": hp.HParams()}
	}
	if err := ckpt.Save(path); err != nil {
		return err
	}
	t.logger.Debug("saved checkpoint", "path", path, "epoch", t.completed, "step", t.step)
	return nil
}

func logHyperparams(loggers []Logger, params map[string]any) error {
	var errs []error
	for _, l := range loggers {
		errs = append(errs, l.LogHyperparams(params))
	}
	return errors.Join(errs...)
}

func logMetrics(loggers []Logger, metrics Metrics, step int64) error {
	var errs []error
	for _, l := range loggers {
		errs = append(errs, l.LogMetrics(metrics, step))
	}
	return errors.Join(errs...)
}
