package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// CheckpointExt is the checkpoint file extension.
const CheckpointExt = ".ckpt"

// CheckpointConfig configures ModelCheckpoint.
type CheckpointConfig struct {
	Dir string

	// Filename is a template without extension. "{name}" and
	// "{name:spec}" placeholders are rendered as "name=<value>", where name
	// is "epoch", "step" or a metric, and spec is a printf verb without the
	// leading '%' ("02d", ".2f").
	Filename string

	// Prefix is prepended to the rendered Filename as is. Braces in it are
	// not placeholders.
	Prefix string

	Monitor  string // metric to rank checkpoints by (default "val_loss")
	Mode     string // "min" or "max" (default "min")
	SaveTopK int    // checkpoints to keep; -1 keeps all, 0 saves none (default 1)
	Logger   *slog.Logger
}

type scoredPath struct {
	path  string
	score float64
}

// ModelCheckpoint saves a checkpoint after validation when the monitored
// metric ranks among the best SaveTopK seen, and deletes the ones that drop
// out.
type ModelCheckpoint struct {
	BaseCallback
	cfg    CheckpointConfig
	best   []scoredPath // best first
	logger *slog.Logger
}

// NewModelCheckpoint validates cfg and creates the callback.
func NewModelCheckpoint(cfg CheckpointConfig) (*ModelCheckpoint, error) {
	if cfg.Monitor == "" {
		cfg.Monitor = "val_loss"
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = "min"
	case "min", "max":
	default:
		return nil, fmt.Errorf("invalid checkpoint mode %q (want min or max)", cfg.Mode)
	}
	if cfg.SaveTopK == 0 {
		cfg.SaveTopK = 1
	}
	if cfg.SaveTopK < -1 {
		return nil, fmt.Errorf("invalid save_top_k %d", cfg.SaveTopK)
	}
	if cfg.Filename == "" && cfg.Prefix == "" {
		cfg.Filename = "{epoch}-{step}"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelCheckpoint{cfg: cfg, logger: logger.With("component", "checkpoint")}, nil
}

// Monitor returns the monitored metric name.
func (c *ModelCheckpoint) Monitor() string {
	return c.cfg.Monitor
}

// Dir returns the checkpoint directory.
func (c *ModelCheckpoint) Dir() string {
	return c.cfg.Dir
}

// BestModelPath returns the path of the best checkpoint, or "" when none
// was saved since construction or the last Reset.
func (c *ModelCheckpoint) BestModelPath() string {
	if len(c.best) == 0 {
		return ""
	}
	return c.best[0].path
}

// BestModelScore returns the monitored value of the best checkpoint.
func (c *ModelCheckpoint) BestModelScore() (float64, bool) {
	if len(c.best) == 0 {
		return 0, false
	}
	return c.best[0].score, true
}

// Reset forgets all tracked checkpoints. Files stay on disk.
func (c *ModelCheckpoint) Reset() {
	c.best = nil
}

// OnValidationEnd saves a checkpoint if the monitored value qualifies.
func (c *ModelCheckpoint) OnValidationEnd(t *Trainer, m Model, metrics Metrics) error {
	if c.cfg.SaveTopK == 0 {
		return nil
	}
	score, ok := metrics[c.cfg.Monitor]
	if !ok {
		c.logger.Warn("monitored metric not found", "monitor", c.cfg.Monitor, "available", metrics.Keys())
		return nil
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		c.logger.Warn("monitored metric is not finite, skipping checkpoint", "monitor", c.cfg.Monitor, "value", score)
		return nil
	}
	if !c.qualifies(score) {
		return nil
	}

	name := c.cfg.Prefix + RenderFilename(c.cfg.Filename, t.Epoch(), t.GlobalStep(), metrics)
	path := c.availablePath(filepath.Join(c.cfg.Dir, name))
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	if err := t.saveCheckpoint(path, m, c.cfg.Monitor, score); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	c.insert(scoredPath{path: path, score: score})
	c.logger.Info("saved checkpoint", "path", path, c.cfg.Monitor, score)

	if c.cfg.SaveTopK > 0 && len(c.best) > c.cfg.SaveTopK {
		dropped := c.best[c.cfg.SaveTopK:]
		c.best = c.best[:c.cfg.SaveTopK]
		var errs []error
		for _, d := range dropped {
			if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return nil
}

func (c *ModelCheckpoint) better(a, b float64) bool {
	if c.cfg.Mode == "max" {
		return a > b
	}
	return a < b
}

func (c *ModelCheckpoint) qualifies(score float64) bool {
	if c.cfg.SaveTopK < 0 || len(c.best) < c.cfg.SaveTopK {
		return true
	}
	return c.better(score, c.best[len(c.best)-1].score)
}

func (c *ModelCheckpoint) insert(sp scoredPath) {
	i := slices.IndexFunc(c.best, func(b scoredPath) bool { return c.better(sp.score, b.score) })
	if i < 0 {
		i = len(c.best)
	}
	c.best = slices.Insert(c.best, i, sp)
}

// availablePath appends "-v1", "-v2", ... to base until it names neither a
// tracked checkpoint nor an existing file.
func (c *ModelCheckpoint) availablePath(base string) string {
	path := base + CheckpointExt
	for v := 1; c.taken(path); v++ {
		path = fmt.Sprintf("%s-v%d%s", base, v, CheckpointExt)
	}
	return path
}

func (c *ModelCheckpoint) taken(path string) bool {
	if slices.ContainsFunc(c.best, func(b scoredPath) bool { return b.path == path }) {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_/]*)(?::([^{}]*))?\}`)

// RenderFilename expands "{name:spec}" placeholders in tmpl. Unknown metrics
// render as zero.
func RenderFilename(tmpl string, epoch int, step int64, metrics Metrics) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholder.FindStringSubmatch(match)
		name, spec := sub[1], sub[2]

		var value float64
		switch name {
		case "epoch":
			value = float64(epoch)
		case "step":
			value = float64(step)
		default:
			value = metrics[name]
		}
		return name + "=" + formatValue(value, spec)
	})
}

func formatValue(v float64, spec string) string {
	if spec == "" {
		if v == math.Trunc(v) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	}
	if strings.HasSuffix(spec, "d") {
		return fmt.Sprintf("%"+spec, int64(v))
	}
	return fmt.Sprintf("%"+spec, v)
}
