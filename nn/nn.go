// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/trainer/internal/nn"
)

// Module is the interface implemented by every layer and container.
type Module = nn.Module

// Parameter is a trainable tensor with its accumulated gradient.
type Parameter = nn.Parameter

// Layers

// Linear is a fully connected layer.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier initialization.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, rng)
}

// NewLazyLinear creates a linear layer whose input width is taken from the
// first forward pass.
func NewLazyLinear(outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLazyLinear(outFeatures, rng)
}

// ReLU is the rectified linear activation.
type ReLU = nn.ReLU

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// Sequential runs modules in order.
type Sequential = nn.Sequential

// NewSequential creates a container of modules.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// Losses

// Loss maps logits and integer targets to a loss and its gradient.
type Loss = nn.Loss

// LossOutput is the result of a loss evaluation over one batch.
type LossOutput = nn.LossOutput

// CrossEntropyLoss is softmax followed by negative log-likelihood.
type CrossEntropyLoss = nn.CrossEntropyLoss

// NewCrossEntropyLoss creates a cross-entropy loss.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return nn.NewCrossEntropyLoss()
}

// Checkpoints

// Checkpoint is a snapshot of model weights, optimizer state and progress.
type Checkpoint = nn.Checkpoint

// OptimizerState is the part of an optimizer a checkpoint persists.
type OptimizerState = nn.OptimizerState

// LoadCheckpoint reads path into model and, when non-nil, optimizer.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model, optimizer)
}

// Utilities

// Initialized reports whether every lazy layer in m has been sized.
func Initialized(m Module) bool {
	return nn.Initialized(m)
}

// NumParameters returns the number of scalar parameters in m.
func NumParameters(m Module) int {
	return nn.NumParameters(m)
}
