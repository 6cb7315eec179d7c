package nn

import (
	"fmt"
	"time"

	"github.com/born-ml/trainer/internal/serialization"
	"github.com/born-ml/trainer/internal/tensor"
)

// OptimizerState is the part of an optimizer a checkpoint persists. It lives
// here so that nn does not import optim.
type OptimizerState interface {
	Name() string
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
	GetLR() float32
}

// Checkpoint is a training state snapshot: model weights, optimizer state
// and progress counters.
type Checkpoint struct {
	Model        Module
	Optimizer    OptimizerState // may be nil for weight-only snapshots
	ModelType    string
	Epoch        int   // Completed epochs
	Step         int64 // Completed optimizer steps
	Monitor      string
	MonitorValue float64
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Save writes the checkpoint to path.
func (c *Checkpoint) Save(path string) error {
	if !Initialized(c.Model) {
		return fmt.Errorf("cannot checkpoint an uninitialized model")
	}

	combined := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Model.StateDict() {
		combined[name] = raw
	}

	meta := &serialization.CheckpointMeta{
		Epoch:        c.Epoch,
		Step:         c.Step,
		Monitor:      c.Monitor,
		MonitorValue: c.MonitorValue,
		TrainingMeta: c.Metadata,
	}
	if c.Optimizer != nil {
		for name, raw := range c.Optimizer.StateDict() {
			combined[serialization.OptimizerPrefix+name] = raw
		}
		meta.OptimizerType = c.Optimizer.Name()
		meta.OptimizerConfig = map[string]any{"lr": c.Optimizer.GetLR()}
	}

	modelType := c.ModelType
	if modelType == "" {
		modelType = fmt.Sprintf("%T", c.Model)
	}

	if err := serialization.WriteFile(path, combined, serialization.Header{
		ModelType:      modelType,
		CreatedAt:      c.CreatedAt,
		CheckpointMeta: meta,
	}); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores model (and optimizer, when non-nil) from path.
// The model may be lazy; it adopts the stored shapes.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	f, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	if f.Header.CheckpointMeta == nil {
		return nil, fmt.Errorf("%s: file is not a checkpoint", path)
	}

	modelState, optimizerState := f.Split()
	if err := model.LoadStateDict(modelState); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}
	if optimizer != nil {
		if err := optimizer.LoadStateDict(optimizerState); err != nil {
			return nil, fmt.Errorf("failed to load optimizer state: %w", err)
		}
	}

	meta := f.Header.CheckpointMeta
	return &Checkpoint{
		Model:        model,
		Optimizer:    optimizer,
		ModelType:    f.Header.ModelType,
		Epoch:        meta.Epoch,
		Step:         meta.Step,
		Monitor:      meta.Monitor,
		MonitorValue: meta.MonitorValue,
		Metadata:     meta.TrainingMeta,
		CreatedAt:    f.Header.CreatedAt,
	}, nil
}
