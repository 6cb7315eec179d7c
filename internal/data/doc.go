// Package data provides the datasets, loaders and data modules consumed by
// the training engine.
//
// A Dataset is an indexable collection of labeled feature vectors. A Loader
// groups a Dataset into batches, optionally shuffled with a seed derived from
// the epoch number. A DataModule hands the engine one loader per stage:
//
//	dm := data.NewPair(train, val, data.LoaderConfig{BatchSize: 32, Shuffle: true})
//	for _, b := range dm.TrainLoader().Epoch(0) {
//	    // b.X is [batch, features], b.Y holds class indices
//	}
//
// KFold implements k-fold cross-validation over the concatenation of two
// datasets; SetFold selects which partition is held out.
package data
