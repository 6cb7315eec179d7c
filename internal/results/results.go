// Package results locates and caches cross-validation results.
//
// Results are keyed by project, dataset and model name. The dataset is
// embedded in the model name as the token "dataset=<name>", terminated by
// '&' or the end of the name.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/born-ml/trainer/internal/floatjson"
)

// DefaultRoot is the default results directory.
const DefaultRoot = "assets/results/raw"

const (
	datasetToken = "dataset="
	suffix       = "_crossval_results.pt"
)

var (
	ErrNoDatasetToken = errors.New("results: model name has no dataset token")
	ErrNotFound       = errors.New("results: not found")
)

// FoldResult holds the test metrics of one fold. NaN and infinite values
// survive encoding.
type FoldResult map[string]float64

// MarshalJSON implements json.Marshaler.
func (r FoldResult) MarshalJSON() ([]byte, error) {
	return floatjson.Map(r).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *FoldResult) UnmarshalJSON(data []byte) error {
	var m floatjson.Map
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = FoldResult(m)
	return nil
}

// DatasetName extracts the dataset from a model name such as
// "mlp_dataset=CIFAR10&lr=0.01".
func DatasetName(modelName string) (string, error) {
	_, rest, ok := strings.Cut(modelName, datasetToken)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoDatasetToken, modelName)
	}
	name, _, _ := strings.Cut(rest, "&")
	if name == "" {
		return "", fmt.Errorf("%w: empty dataset in %q", ErrNoDatasetToken, modelName)
	}
	return name, nil
}

// Path returns "<root>/<project>/<dataset>/<model>_crossval_results.pt".
// The file content is JSON.
func Path(root, project, modelName string) (string, error) {
	dataset, err := DatasetName(modelName)
	if err != nil {
		return "", err
	}
	if root == "" {
		root = DefaultRoot
	}
	return filepath.Join(root, project, dataset, modelName+suffix), nil
}

// Cache stores result lists by key.
type Cache interface {
	// Load returns ErrNotFound when key has no entry.
	Load(ctx context.Context, key string) ([]FoldResult, error)
	Store(ctx context.Context, key string, results []FoldResult) error
}

// Layered reads from the first cache that has the key and writes to all.
type Layered []Cache

// Load returns the first hit.
func (l Layered) Load(ctx context.Context, key string) ([]FoldResult, error) {
	for _, c := range l {
		res, err := c.Load(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return res, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Store writes to every cache.
func (l Layered) Store(ctx context.Context, key string, results []FoldResult) error {
	var errs []error
	for _, c := range l {
		errs = append(errs, c.Store(ctx, key, results))
	}
	return errors.Join(errs...)
}

func encode(results []FoldResult) ([]byte, error) {
	return json.MarshalIndent(results, "", "  ")
}

func decode(raw []byte) ([]FoldResult, error) {
	var results []FoldResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode results failed: %w", err)
	}
	return results, nil
}
