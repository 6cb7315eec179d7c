// Package config loads the born-trainer YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/trainer/internal/artifact"
	"github.com/born-ml/trainer/internal/results"
	"github.com/born-ml/trainer/internal/tracking"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Config is the root of the configuration file.
type Config struct {
	Project       string `yaml:"project"`
	ModelName     string `yaml:"model_name"`
	MaxEpochs     int    `yaml:"max_epochs"`
	Devices       []int  `yaml:"devices"`
	Monitor       string `yaml:"monitor"`
	Mode          string `yaml:"mode"`
	RefreshRate   int    `yaml:"refresh_rate"`
	CheckpointDir string `yaml:"checkpoint_dir"`
	LogDir        string `yaml:"log_dir"`
	ResultsRoot   string `yaml:"results_root"`
	Folds         int    `yaml:"folds"`
	Seed          uint64 `yaml:"seed"`

	Data      DataConfig      `yaml:"data"`
	Model     ModelConfig     `yaml:"model"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Cache     CacheConfig     `yaml:"cache"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Log       LogConfig       `yaml:"log"`
}

// DataConfig selects the dataset.
type DataConfig struct {
	Source     string      `yaml:"source"` // "blobs" or "csv"
	TrainPath  string      `yaml:"train_path"`
	ValPath    string      `yaml:"val_path"`
	MaxSamples int         `yaml:"max_samples"`
	Scale      float32     `yaml:"scale"`
	BatchSize  int         `yaml:"batch_size"`
	Blobs      BlobsConfig `yaml:"blobs"`
}

// BlobsConfig sizes the synthetic dataset.
type BlobsConfig struct {
	Train    int     `yaml:"train"`
	Val      int     `yaml:"val"`
	Features int     `yaml:"features"`
	Classes  int     `yaml:"classes"`
	Spread   float32 `yaml:"spread"`
}

// ModelConfig describes the MLP.
type ModelConfig struct {
	Hidden    []int   `yaml:"hidden"`
	Classes   int     `yaml:"classes"`
	Optimizer string  `yaml:"optimizer"`
	LR        float32 `yaml:"lr"`
}

// TrackingConfig selects the tracking backend: a remote server when URL is
// set, a direct database connection when DB.Driver is set, otherwise none.
type TrackingConfig struct {
	URL    string            `yaml:"url"`
	DB     tracking.DBConfig `yaml:"db"`
	Listen string            `yaml:"listen"`
}

// CacheConfig enables the redis results cache when Redis.Host is set.
type CacheConfig struct {
	Redis results.RedisConfig `yaml:"redis"`
}

// ArtifactsConfig enables S3 uploads when S3.Bucket is set.
type ArtifactsConfig struct {
	S3 artifact.S3Config `yaml:"s3"`
}

// LogConfig configures the application log.
type LogConfig struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads and defaults the file at path without validating it.
func Read(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	return Decode(raw)
}

// Parse decodes, defaults and validates YAML bytes.
func Parse(raw []byte) (*Config, error) {
	cfg, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals YAML bytes and applies defaults.
func Decode(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	setDefault(&c.MaxEpochs, 10)
	setDefault(&c.Monitor, "val_loss")
	setDefault(&c.Mode, "min")
	setDefault(&c.CheckpointDir, "checkpoints/")
	setDefault(&c.LogDir, "lightning_logs/")
	setDefault(&c.ResultsRoot, results.DefaultRoot)
	setDefault(&c.Folds, 5)
	if len(c.Devices) == 0 {
		c.Devices = []int{0}
	}

	setDefault(&c.Data.Source, "blobs")
	setDefault(&c.Data.BatchSize, 32)
	setDefault(&c.Data.Blobs.Train, 600)
	setDefault(&c.Data.Blobs.Val, 200)
	setDefault(&c.Data.Blobs.Features, 8)
	setDefault(&c.Data.Blobs.Classes, 3)
	setDefault(&c.Data.Blobs.Spread, 1.0)

	setDefault(&c.Model.Optimizer, "adam")
	setDefault(&c.Model.LR, 0.001)
	if c.Model.Classes == 0 && c.Data.Source == "blobs" {
		c.Model.Classes = c.Data.Blobs.Classes
	}

	setDefault(&c.Tracking.Listen, ":8080")
	setDefault(&c.Log.Path, "logs/born-trainer.log")
	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.MaxSizeMB, 100)
	setDefault(&c.Log.MaxBackups, 3)
	setDefault(&c.Log.MaxAgeDays, 28)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate checks the fields needed by the training commands.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Project) == "" {
		problems = append(problems, "project is empty")
	}
	if strings.TrimSpace(c.ModelName) == "" {
		problems = append(problems, "model_name is empty")
	}
	if c.MaxEpochs < 1 {
		problems = append(problems, "max_epochs must be positive")
	}
	if c.Mode != "min" && c.Mode != "max" {
		problems = append(problems, fmt.Sprintf("mode %q is not min or max", c.Mode))
	}
	if c.RefreshRate < 0 {
		problems = append(problems, "refresh_rate must not be negative")
	}
	if c.Folds < 2 {
		problems = append(problems, "folds must be at least 2")
	}
	switch c.Data.Source {
	case "blobs":
	case "csv":
		if c.Data.TrainPath == "" || c.Data.ValPath == "" {
			problems = append(problems, "csv source needs data.train_path and data.val_path")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown data.source %q", c.Data.Source))
	}
	if c.Model.Classes < 2 {
		problems = append(problems, "model.classes must be at least 2")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateServer checks the fields needed by the tracking server.
func (c *Config) ValidateServer() error {
	var problems []string
	switch c.Tracking.DB.Driver {
	case "mysql", "sqlite":
	case "":
		problems = append(problems, "tracking.db.driver is empty")
	default:
		problems = append(problems, fmt.Sprintf("unknown tracking.db.driver %q", c.Tracking.DB.Driver))
	}
	if c.Tracking.DB.DBName == "" {
		problems = append(problems, "tracking.db.dbname is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
