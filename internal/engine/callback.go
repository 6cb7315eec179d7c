package engine

// Callback receives training lifecycle events. Embed BaseCallback to
// implement only some of them.
type Callback interface {
	OnFitStart(t *Trainer, m Model)
	OnTrainEpochStart(t *Trainer, m Model, numBatches int)
	OnTrainBatchEnd(t *Trainer, m Model, batch int, loss float64)
	OnValidationEnd(t *Trainer, m Model, metrics Metrics) error
	OnFitEnd(t *Trainer, m Model)
}

// BaseCallback implements Callback with no-ops.
type BaseCallback struct{}

// OnFitStart does nothing.
func (BaseCallback) OnFitStart(*Trainer, Model) {}

// OnTrainEpochStart does nothing.
func (BaseCallback) OnTrainEpochStart(*Trainer, Model, int) {}

// OnTrainBatchEnd does nothing.
func (BaseCallback) OnTrainBatchEnd(*Trainer, Model, int, float64) {}

// OnValidationEnd does nothing.
func (BaseCallback) OnValidationEnd(*Trainer, Model, Metrics) error { return nil }

// OnFitEnd does nothing.
func (BaseCallback) OnFitEnd(*Trainer, Model) {}
