package loggers

import (
	"encoding/csv"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/trainer/internal/engine"
)

const (
	hparamsFile = "hparams.yaml"
	metricsFile = "metrics.csv"
)

type metricsRow struct {
	step   int64
	values engine.Metrics
}

// CSVLogger records a run as files in a versioned directory.
type CSVLogger struct {
	mu      sync.Mutex
	dir     string
	version int
	rows    []metricsRow
	keys    map[string]struct{}
}

// NewCSVLogger picks the next free version under saveDir/name.
func NewCSVLogger(saveDir, name string) (*CSVLogger, error) {
	root := filepath.Join(saveDir, name)
	version, err := nextVersion(root)
	if err != nil {
		return nil, err
	}
	return &CSVLogger{
		dir:     filepath.Join(root, "version_"+strconv.Itoa(version)),
		version: version,
		keys:    make(map[string]struct{}),
	}, nil
}

func nextVersion(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan log dir: %w", err)
	}
	next := 0
	for _, e := range entries {
		n, ok := strings.CutPrefix(e.Name(), "version_")
		if !ok || !e.IsDir() {
			continue
		}
		if v, err := strconv.Atoi(n); err == nil && v >= next {
			next = v + 1
		}
	}
	return next, nil
}

// Dir returns the version directory.
func (l *CSVLogger) Dir() string {
	return l.dir
}

// Version returns the version number.
func (l *CSVLogger) Version() int {
	return l.version
}

// LogHyperparams writes hparams.yaml.
func (l *CSVLogger) LogHyperparams(params map[string]any) error {
	raw, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode hparams: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	return os.WriteFile(filepath.Join(l.dir, hparamsFile), raw, 0o644)
}

// LogMetrics appends a row and rewrites metrics.csv. Columns are the union
// of all keys seen so far; missing values are empty.
func (l *CSVLogger) LogMetrics(metrics engine.Metrics, step int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, metricsRow{step: step, values: maps.Clone(metrics)})
	for k := range metrics {
		l.keys[k] = struct{}{}
	}
	return l.save()
}

// Finalize writes any pending rows.
func (l *CSVLogger) Finalize(string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.rows) == 0 {
		return nil
	}
	return l.save()
}

func (l *CSVLogger) save() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.Create(filepath.Join(l.dir, metricsFile))
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer f.Close()

	keys := slices.Sorted(maps.Keys(l.keys))
	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"step"}, keys...)); err != nil {
		return err
	}
	record := make([]string, len(keys)+1)
	for _, row := range l.rows {
		record[0] = strconv.FormatInt(row.step, 10)
		for i, k := range keys {
			record[i+1] = ""
			if v, ok := row.values[k]; ok {
				record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
