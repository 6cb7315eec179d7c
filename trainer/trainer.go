// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package trainer

import (
	"net/http"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/redis/go-redis/v9"

	"github.com/born-ml/trainer/internal/artifact"
	"github.com/born-ml/trainer/internal/data"
	"github.com/born-ml/trainer/internal/engine"
	"github.com/born-ml/trainer/internal/model"
	"github.com/born-ml/trainer/internal/results"
	"github.com/born-ml/trainer/internal/tracking"
	"github.com/born-ml/trainer/internal/trainer"
)

// Errors returned by the trainer.
var (
	ErrInvalidFolds   = trainer.ErrInvalidFolds
	ErrInvalidOptions = trainer.ErrInvalidOptions
	ErrNoDatasetToken = results.ErrNoDatasetToken
	ErrNoData         = engine.ErrNoData
	ErrNotFound       = results.ErrNotFound
	ErrRunNotFound    = tracking.ErrRunNotFound
	ErrRunFinished    = tracking.ErrRunFinished
	ErrInvalidRun     = tracking.ErrInvalidRun
)

// Trainer composes the training engine with a checkpoint policy and loggers.
type Trainer = trainer.Trainer

// Options configure a Trainer.
type Options = trainer.Options

// Engine is the training backend driven by a Trainer.
type Engine = trainer.Engine

// New validates opts and builds a Trainer.
func New(opts Options) (*Trainer, error) {
	return trainer.New(opts)
}

// FoldResult holds the test metrics of one fold.
type FoldResult = results.FoldResult

// Metrics maps metric names to values.
type Metrics = engine.Metrics

// Models

// Model is a trainable module that can build its optimizer and loss.
type Model = engine.Model

// ModelConfig describes a multilayer perceptron.
type ModelConfig = model.Config

// MLP is a multilayer perceptron classifier with a lazily sized input layer.
type MLP = model.MLP

// NewMLP builds an MLP classifier.
func NewMLP(cfg ModelConfig) (*MLP, error) {
	return model.NewMLP(cfg)
}

// Data

// Dataset is an indexable collection of samples.
type Dataset = data.Dataset

// Sample is one feature vector with its class label.
type Sample = data.Sample

// Loader batches a dataset.
type Loader = data.Loader

// LoaderConfig configures batching and shuffling.
type LoaderConfig = data.LoaderConfig

// NewLoader creates a loader over ds.
func NewLoader(ds Dataset, cfg LoaderConfig) *Loader {
	return data.NewLoader(ds, cfg)
}

// NewDataset wraps samples in an in-memory dataset.
func NewDataset(samples []Sample) (Dataset, error) {
	ds, err := data.NewInMemory(samples)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadCSV reads a labeled CSV file with the label in the first column.
// maxSamples of 0 reads every row; features are multiplied by scale.
func LoadCSV(filename string, maxSamples int, scale float32) (Dataset, error) {
	ds, err := data.LoadCSV(filename, maxSamples, scale)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// Tracking

// TrackingClient records runs on a remote tracking service.
type TrackingClient = tracking.Client

// RunSpec describes a run to create.
type RunSpec = tracking.RunSpec

// Run is a tracked training run.
type Run = tracking.Run

// RunStatus is the lifecycle state of a run.
type RunStatus = tracking.Status

// Run states.
const (
	RunRunning  = tracking.StatusRunning
	RunFinished = tracking.StatusFinished
	RunFailed   = tracking.StatusFailed
	RunKilled   = tracking.StatusKilled
)

// MaxGroupLen is the longest run group the tracking service accepts.
const MaxGroupLen = tracking.MaxGroupLen

// NopTracking is a TrackingClient that records nothing.
type NopTracking = tracking.Nop

// HTTPTrackingClient talks to a born-trainer tracking server.
type HTTPTrackingClient = tracking.HTTPClient

// NewHTTPTrackingClient creates a client for the server at baseURL. A nil hc
// uses a client with a 10s timeout.
func NewHTTPTrackingClient(baseURL string, hc *http.Client) *HTTPTrackingClient {
	return tracking.NewHTTPClient(baseURL, hc)
}

// Results cache

// Cache stores cross-validation results by key.
type Cache = results.Cache

// FileCache stores results as files; the key is the path.
type FileCache = results.FileCache

// LayeredCache reads from the first cache holding a key and writes to all.
type LayeredCache = results.Layered

// RedisCache stores results in redis.
type RedisCache = results.RedisCache

// NewRedisCache creates a cache whose keys are prefixed with prefix.
func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	return results.NewRedisCache(client, prefix)
}

// ResultsPath returns the cache key of a model's cross-validation results.
func ResultsPath(root, project, modelName string) (string, error) {
	return results.Path(root, project, modelName)
}

// Artifacts

// Uploader copies local files to remote storage.
type Uploader = artifact.Uploader

// NopUploader discards uploads.
type NopUploader = artifact.Nop

// S3Uploader uploads to an S3 bucket.
type S3Uploader = artifact.S3Uploader

// NewS3Uploader creates an uploader writing under prefix in bucket.
func NewS3Uploader(client s3iface.S3API, bucket, prefix string) *S3Uploader {
	return artifact.NewS3Uploader(client, bucket, prefix, nil)
}
