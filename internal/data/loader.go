package data

import (
	"math/rand/v2"

	"github.com/born-ml/trainer/internal/tensor"
)

// Batch is a stacked group of samples.
type Batch struct {
	X *tensor.RawTensor // [batch, features]
	Y []int32
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return len(b.Y)
}

// LoaderConfig controls batching.
type LoaderConfig struct {
	BatchSize int    // default 32
	Shuffle   bool   // reshuffle every epoch
	Seed      uint64 // base seed; epoch e uses Seed+e
}

// Loader groups a Dataset into batches. The last batch may be short.
type Loader struct {
	ds  Dataset
	cfg LoaderConfig
}

// NewLoader creates a loader over ds.
func NewLoader(ds Dataset, cfg LoaderConfig) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Loader{ds: ds, cfg: cfg}
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() Dataset {
	return l.ds
}

// Config returns the loader configuration with defaults applied.
func (l *Loader) Config() LoaderConfig {
	return l.cfg
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// First returns the first batch in dataset order, ignoring shuffling.
func (l *Loader) First() (Batch, bool) {
	n := min(l.cfg.BatchSize, l.ds.Len())
	if n == 0 {
		return Batch{}, false
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return l.stack(order), true
}

// Epoch returns the batches of one epoch. With shuffling enabled the order
// depends only on the seed and the epoch number.
func (l *Loader) Epoch(epoch int) []Batch {
	n := l.ds.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.cfg.Shuffle {
		rng := rand.New(rand.NewPCG(l.cfg.Seed, uint64(epoch)))
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([]Batch, 0, l.NumBatches())
	for start := 0; start < n; start += l.cfg.BatchSize {
		end := min(start+l.cfg.BatchSize, n)
		batches = append(batches, l.stack(order[start:end]))
	}
	return batches
}

func (l *Loader) stack(indices []int) Batch {
	width := Width(l.ds)
	x := tensor.MustRaw(tensor.Shape{len(indices), width}, tensor.Float32)
	y := make([]int32, len(indices))
	for r, idx := range indices {
		s := l.ds.Get(idx)
		copy(x.Row(r), s.Features)
		y[r] = s.Label
	}
	return Batch{X: x, Y: y}
}
