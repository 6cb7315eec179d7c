package engine

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar renders training progress per epoch. The bar is redrawn every
// RefreshRate batches; a rate of 0 disables it.
type ProgressBar struct {
	BaseCallback
	refreshRate int
	w           io.Writer
	bar         *progressbar.ProgressBar
	total       int
}

// NewProgressBar creates a progress bar writing to w (stderr when nil).
func NewProgressBar(refreshRate int, w io.Writer) *ProgressBar {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressBar{refreshRate: refreshRate, w: w}
}

// OnTrainEpochStart starts a new bar for the epoch.
func (p *ProgressBar) OnTrainEpochStart(t *Trainer, _ Model, numBatches int) {
	if p.refreshRate <= 0 {
		return
	}
	p.total = numBatches
	p.bar = progressbar.NewOptions(numBatches,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(fmt.Sprintf("Epoch %d/%d", t.Epoch()+1, t.MaxEpochs())),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(true),
	)
}

// OnTrainBatchEnd advances the bar.
func (p *ProgressBar) OnTrainBatchEnd(_ *Trainer, _ Model, batch int, loss float64) {
	if p.bar == nil {
		return
	}
	done := batch + 1
	if done%p.refreshRate != 0 && done != p.total {
		return
	}
	p.bar.Describe(fmt.Sprintf("loss=%.4f", loss))
	_ = p.bar.Set(done)
}

// OnValidationEnd closes the epoch's bar.
func (p *ProgressBar) OnValidationEnd(_ *Trainer, _ Model, metrics Metrics) error {
	if p.bar == nil {
		return nil
	}
	err := p.bar.Finish()
	p.bar = nil
	if v, ok := metrics["val_loss"]; ok {
		fmt.Fprintf(p.w, " val_loss=%.4f", v)
	}
	fmt.Fprintln(p.w)
	return err
}
