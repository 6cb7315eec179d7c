package engine

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/born-ml/trainer/internal/nn"
	"github.com/born-ml/trainer/internal/optim"
	"github.com/born-ml/trainer/internal/parallel"
)

// ErrNoData is returned when a stage has no samples.
var ErrNoData = errors.New("engine: no data")

// Metrics maps metric names to values.
type Metrics map[string]float64

// Keys returns the metric names in sorted order.
func (m Metrics) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Model is a trainable classifier.
type Model interface {
	nn.Module

	// ConfigureOptimizer returns a new optimizer over the model parameters.
	// It is called once per Fit, after lazy initialization.
	ConfigureOptimizer() (optim.Optimizer, error)

	// Criterion returns the training loss.
	Criterion() nn.Loss
}

// HParamsProvider is implemented by models that expose hyperparameters to
// loggers.
type HParamsProvider interface {
	HParams() map[string]any
}

// Logger receives run hyperparameters and metrics.
type Logger interface {
	LogHyperparams(params map[string]any) error
	LogMetrics(metrics Metrics, step int64) error
	// Finalize closes the run; status is "success", "failed" or "aborted".
	Finalize(status string) error
}

// Trainer runs fit and test loops.
type Trainer struct {
	maxEpochs int
	devices   []int
	par       parallel.Config
	callbacks []Callback
	loggers   []Logger
	logger    *slog.Logger

	optimizer optim.Optimizer
	epoch     int   // current epoch index
	completed int   // completed epochs
	step      int64 // completed optimizer steps
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithMaxEpochs sets the number of training epochs (default 1).
func WithMaxEpochs(n int) Option {
	return func(t *Trainer) { t.maxEpochs = n }
}

// WithDevices sets the device list. Its length is the number of workers used
// for layer math.
func WithDevices(devices ...int) Option {
	return func(t *Trainer) { t.devices = devices }
}

// WithCallbacks appends callbacks.
func WithCallbacks(cbs ...Callback) Option {
	return func(t *Trainer) { t.callbacks = append(t.callbacks, cbs...) }
}

// WithLoggers sets the default loggers.
func WithLoggers(loggers ...Logger) Option {
	return func(t *Trainer) { t.loggers = loggers }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) { t.logger = logger }
}

// New creates a Trainer.
func New(opts ...Option) *Trainer {
	t := &Trainer{maxEpochs: 1, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	t.maxEpochs = max(t.maxEpochs, 1)
	t.par = parallel.ForDevices(t.devices)
	t.logger = t.logger.With("component", "engine")
	ReportDevice(t.logger, t.devices)
	return t
}

// MaxEpochs returns the configured number of epochs.
func (t *Trainer) MaxEpochs() int {
	return t.maxEpochs
}

// Epoch returns the index of the current (or last) epoch.
func (t *Trainer) Epoch() int {
	return t.epoch
}

// GlobalStep returns the number of optimizer steps taken.
func (t *Trainer) GlobalStep() int64 {
	return t.step
}

// Loggers returns the default loggers.
func (t *Trainer) Loggers() []Logger {
	return t.loggers
}

// Callbacks returns the registered callbacks.
func (t *Trainer) Callbacks() []Callback {
	return t.callbacks
}
