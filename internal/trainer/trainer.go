// Package trainer wires checkpointing, progress reporting and dual logging
// around the training engine and drives k-fold cross-validation.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/trainer/internal/artifact"
	"github.com/born-ml/trainer/internal/data"
	"github.com/born-ml/trainer/internal/engine"
	"github.com/born-ml/trainer/internal/loggers"
	"github.com/born-ml/trainer/internal/results"
	"github.com/born-ml/trainer/internal/tracking"
)

var (
	ErrInvalidFolds   = errors.New("trainer: k must be at least 2")
	ErrInvalidOptions = errors.New("trainer: invalid options")
)

// Engine is the part of engine.Trainer the orchestration uses.
type Engine interface {
	Setup(m engine.Model, train *data.Loader) error
	Fit(ctx context.Context, m engine.Model, dm data.DataModule, opts engine.FitOptions) error
	Test(ctx context.Context, m engine.Model, dm data.DataModule, ckptPath string, loggers []engine.Logger) (engine.Metrics, error)
	SaveCheckpoint(path string, m engine.Model) error
	SaveWeights(path string, m engine.Model) error
}

// Options configure a Trainer.
type Options struct {
	Project     string
	ModelName   string // may embed "dataset=<name>&" for cross-validation
	MaxEpochs   int
	Devices     []int
	Monitor     string // default "val_loss"
	Mode        string // "min" (default) or "max"
	RefreshRate int    // progress bar refresh in batches; 0 disables

	CheckpointDir string // default "checkpoints/"
	LogDir        string // default "lightning_logs/"
	ResultsRoot   string // default results.DefaultRoot

	Tracking       tracking.Client   // default tracking.Nop
	Cache          results.Cache     // default results.FileCache
	Uploader       artifact.Uploader // optional
	Logger         *slog.Logger
	ProgressWriter io.Writer // default stderr

	// Engine replaces the engine built from the options above. Loggers are
	// always passed per call; the checkpoint callback is only attached to
	// the built-in engine.
	Engine Engine
}

func (o *Options) applyDefaults() {
	if o.Monitor == "" {
		o.Monitor = "val_loss"
	}
	if o.Mode == "" {
		o.Mode = "min"
	}
	if o.CheckpointDir == "" {
		o.CheckpointDir = "checkpoints/"
	}
	if o.LogDir == "" {
		o.LogDir = "lightning_logs/"
	}
	if o.ResultsRoot == "" {
		o.ResultsRoot = results.DefaultRoot
	}
	if o.Tracking == nil {
		o.Tracking = tracking.Nop{}
	}
	if o.Cache == nil {
		o.Cache = results.FileCache{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Trainer composes the engine with a checkpoint policy and two loggers.
type Trainer struct {
	opts       Options
	eng        Engine
	checkpoint *engine.ModelCheckpoint
	local      *loggers.CSVLogger
	remote     *loggers.TrackingLogger
	logger     *slog.Logger
}

// New validates opts and builds the callbacks, loggers and engine.
func New(opts Options) (*Trainer, error) {
	opts.applyDefaults()
	if opts.Project == "" || opts.ModelName == "" {
		return nil, fmt.Errorf("%w: project and model name are required", ErrInvalidOptions)
	}
	logger := opts.Logger.With("component", "trainer", "model", opts.ModelName)

	checkpoint, err := engine.NewModelCheckpoint(engine.CheckpointConfig{
		Dir:      opts.CheckpointDir,
		Prefix:   opts.ModelName,
		Filename: "_{epoch:02d}-{val_loss:.2f}",
		Monitor:  opts.Monitor,
		Mode:     opts.Mode,
		SaveTopK: 1,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	local, err := loggers.NewCSVLogger(opts.LogDir, opts.ModelName)
	if err != nil {
		return nil, err
	}
	remote := loggers.NewTrackingLogger(opts.Tracking, opts.Project, opts.ModelName, "", opts.Logger)

	eng := opts.Engine
	if eng == nil {
		eng = engine.New(
			engine.WithMaxEpochs(opts.MaxEpochs),
			engine.WithDevices(opts.Devices...),
			engine.WithCallbacks(checkpoint, engine.NewProgressBar(opts.RefreshRate, opts.ProgressWriter)),
			engine.WithLoggers(local, remote),
			engine.WithLogger(opts.Logger),
		)
	}

	return &Trainer{
		opts:       opts,
		eng:        eng,
		checkpoint: checkpoint,
		local:      local,
		remote:     remote,
		logger:     logger,
	}, nil
}

// ModelName returns the configured model name.
func (t *Trainer) ModelName() string {
	return t.opts.ModelName
}

// Checkpoint returns the checkpoint callback.
func (t *Trainer) Checkpoint() *engine.ModelCheckpoint {
	return t.checkpoint
}

// LocalLogger returns the file logger of direct Fit calls.
func (t *Trainer) LocalLogger() *loggers.CSVLogger {
	return t.local
}

// RemoteLogger returns the tracking logger of direct Fit calls.
func (t *Trainer) RemoteLogger() *loggers.TrackingLogger {
	return t.remote
}

// Fit runs one train/validate pass and then finishes logging, with status
// "failed" when training returned an error.
func (t *Trainer) Fit(ctx context.Context, model engine.Model, train, val *data.Loader) (err error) {
	defer func() {
		status := loggers.StatusSuccess
		if err != nil {
			status = loggers.StatusFailed
		}
		err = errors.Join(err, t.finishLogging(status))
	}()

	return t.eng.Fit(ctx, model, data.PairOf(train, val), engine.FitOptions{
		Loggers: []engine.Logger{t.local, t.remote},
	})
}

// SaveModelCheckpoint writes <checkpoint_dir>/<model_name>.ckpt and uploads
// it when an uploader is configured. It returns the local path.
func (t *Trainer) SaveModelCheckpoint(ctx context.Context, model engine.Model) (string, error) {
	path := filepath.Join(t.opts.CheckpointDir, t.opts.ModelName+engine.CheckpointExt)
	if err := os.MkdirAll(t.opts.CheckpointDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	if err := t.eng.SaveCheckpoint(path, model); err != nil {
		return "", err
	}
	t.logger.Info("model checkpoint saved", "path", path)

	if err := t.upload(ctx, path, filepath.Join(t.opts.Project, filepath.Base(path))); err != nil {
		return path, err
	}
	return path, nil
}

// FinishLogging closes the remote run and flushes the local logger.
func (t *Trainer) FinishLogging() error {
	return t.finishLogging(loggers.StatusSuccess)
}

func (t *Trainer) finishLogging(status string) error {
	return errors.Join(t.remote.Finalize(status), t.local.Finalize(status))
}

// FoldModelName returns "<model_name>_fold_<fold>".
func (t *Trainer) FoldModelName(fold int) string {
	return t.opts.ModelName + "_fold_" + strconv.Itoa(fold)
}

// InitialWeightsPath returns the path of the cross-validation snapshot.
func (t *Trainer) InitialWeightsPath() string {
	return filepath.Join(t.opts.CheckpointDir, "k_initial_weights_"+t.opts.ModelName+engine.CheckpointExt)
}

// ResultsPath returns the cross-validation results key for this model.
func (t *Trainer) ResultsPath() (string, error) {
	return results.Path(t.opts.ResultsRoot, t.opts.Project, t.opts.ModelName)
}

func (t *Trainer) upload(ctx context.Context, localPath, key string) error {
	if t.opts.Uploader == nil {
		return nil
	}
	if _, err := t.opts.Uploader.Upload(ctx, localPath, key); err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return nil
}
