package data

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrInvalidFold is returned for out-of-range fold indices or fold counts.
var ErrInvalidFold = errors.New("data: invalid fold")

// DataModule provides the loaders for each stage of a run.
type DataModule interface {
	TrainLoader() *Loader
	ValLoader() *Loader
	TestLoader() *Loader
}

// Pair is a DataModule over fixed train and validation sets. The validation
// set doubles as the test set.
type Pair struct {
	train *Loader
	val   *Loader
}

// NewPair creates a Pair. Only the training loader shuffles.
func NewPair(train, val Dataset, cfg LoaderConfig) *Pair {
	evalCfg := cfg
	evalCfg.Shuffle = false
	return &Pair{
		train: NewLoader(train, cfg),
		val:   NewLoader(val, evalCfg),
	}
}

// PairOf wraps existing loaders.
func PairOf(train, val *Loader) *Pair {
	return &Pair{train: train, val: val}
}

// TrainLoader returns the training loader.
func (p *Pair) TrainLoader() *Loader { return p.train }

// ValLoader returns the validation loader.
func (p *Pair) ValLoader() *Loader { return p.val }

// TestLoader returns the validation loader.
func (p *Pair) TestLoader() *Loader { return p.val }

// KFold partitions the concatenation of a train and a validation set into k
// near-equal folds after a seeded shuffle. The selected fold serves as both
// validation and test set; the others are used for training.
type KFold struct {
	all   Dataset
	folds [][]int
	cfg   LoaderConfig
	fold  int
}

// NewKFold builds the partition. k must be at least 2 and no larger than
// the number of samples.
func NewKFold(train, val Dataset, k int, cfg LoaderConfig) (*KFold, error) {
	all := NewConcat(train, val)
	n := all.Len()
	if k < 2 || k > n {
		return nil, fmt.Errorf("%w: k=%d for %d samples", ErrInvalidFold, k, n)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(k)))
	perm := rng.Perm(n)

	// The first n%k folds get one extra sample.
	folds := make([][]int, k)
	start := 0
	for i := range k {
		size := n / k
		if i < n%k {
			size++
		}
		folds[i] = perm[start : start+size]
		start += size
	}

	return &KFold{all: all, folds: folds, cfg: cfg}, nil
}

// K returns the number of folds.
func (kf *KFold) K() int {
	return len(kf.folds)
}

// Fold returns the selected fold index.
func (kf *KFold) Fold() int {
	return kf.fold
}

// SetFold selects the held-out fold.
func (kf *KFold) SetFold(i int) error {
	if i < 0 || i >= len(kf.folds) {
		return fmt.Errorf("%w: index %d not in [0, %d)", ErrInvalidFold, i, len(kf.folds))
	}
	kf.fold = i
	return nil
}

// FoldIndices returns the base indices of fold i.
func (kf *KFold) FoldIndices(i int) []int {
	return kf.folds[i]
}

// TrainLoader returns a loader over every fold except the selected one.
func (kf *KFold) TrainLoader() *Loader {
	var indices []int
	for i, f := range kf.folds {
		if i != kf.fold {
			indices = append(indices, f...)
		}
	}
	return NewLoader(NewSubset(kf.all, indices), kf.cfg)
}

// ValLoader returns a loader over the selected fold.
func (kf *KFold) ValLoader() *Loader {
	evalCfg := kf.cfg
	evalCfg.Shuffle = false
	return NewLoader(NewSubset(kf.all, kf.folds[kf.fold]), evalCfg)
}

// TestLoader returns the same partition as ValLoader.
func (kf *KFold) TestLoader() *Loader {
	return kf.ValLoader()
}
