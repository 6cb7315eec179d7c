// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - New: construction by name, as used in configuration files
//
// # Basic Usage
//
//	opt, err := optim.New("adam", model.Parameters(), 0.001)
//	if err != nil {
//	    return err
//	}
//	for _, batch := range batches {
//	    opt.ZeroGrad()
//	    out := criterion.Forward(model.Forward(batch.X), batch.Y)
//	    model.Backward(out.Grad)
//	    opt.Step()
//	}
//
// Optimizer state is saved with the model in checkpoints, so training can
// resume with the same moment estimates.
package optim
