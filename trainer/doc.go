// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package trainer runs training with checkpointing, local and remote
// logging, and k-fold cross-validation with cached results.
//
// # Basic Usage
//
//	train, val := trainer.NewLoader(trainSet, cfg), trainer.NewLoader(valSet, cfg)
//	model, err := trainer.NewMLP(trainer.ModelConfig{Hidden: []int{64}, Classes: 3})
//	if err != nil {
//	    return err
//	}
//
//	t, err := trainer.New(trainer.Options{
//	    Project:   "demo",
//	    ModelName: "mlp_dataset=blobs&hidden=64",
//	    MaxEpochs: 10,
//	})
//	if err != nil {
//	    return err
//	}
//	folds, err := t.CrossValidate(ctx, model, train, val, 5)
//
// # Cross-validation
//
// CrossValidate merges the train and validation sets, splits them into k
// folds and trains each fold from the same initial weights. Every fold is
// tested on its best checkpoint and logged as its own tracking run grouped
// under the model name. Results are stored under
// <results_root>/<project>/<dataset>/<model_name>_crossval_results.pt,
// where the dataset is read from the "dataset=<name>" token of the model
// name; a later call with the same name returns them without training.
package trainer
