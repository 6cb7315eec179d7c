package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileCache stores results as JSON files. The key is the file path.
type FileCache struct{}

// Load reads the results file at key.
func (FileCache) Load(_ context.Context, key string) ([]FoldResult, error) {
	raw, err := os.ReadFile(key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read results failed: %w", err)
	}
	return decode(raw)
}

// Store writes results to key, creating parent directories. The file is
// replaced atomically.
func (FileCache) Store(_ context.Context, key string, results []FoldResult) error {
	raw, err := encode(results)
	if err != nil {
		return fmt.Errorf("encode results failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return fmt.Errorf("create results dir failed: %w", err)
	}

	tmp := key + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write results failed: %w", err)
	}
	if err := os.Rename(tmp, key); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename results failed: %w", err)
	}
	return nil
}
