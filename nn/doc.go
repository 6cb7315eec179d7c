// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers, losses and checkpoints used to build
// models for the trainer.
//
// # Overview
//
// This package contains:
//   - Layers: Linear (eager or lazily sized), ReLU, Sequential
//   - Loss functions: CrossEntropyLoss
//   - Checkpoint: weights, optimizer state and progress in one file
//
// # Basic Usage
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	model := nn.NewSequential(
//	    nn.NewLazyLinear(128, rng), // input width taken from the first batch
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, rng),
//	)
//	criterion := nn.NewCrossEntropyLoss()
//	out := criterion.Forward(model.Forward(x), labels)
//	model.Backward(out.Grad)
//
// A model is initialized once every lazy layer has seen an input; only
// initialized models can be checkpointed.
package nn
