// Package tracking records experiment runs and their metrics.
//
// A Client creates runs, appends metrics and finishes runs. Store persists
// runs with gorm; HTTPClient talks to a trackserver over REST; Nop discards
// everything.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrRunNotFound = errors.New("tracking: run not found")
	ErrRunFinished = errors.New("tracking: run already finished")
	ErrInvalidRun  = errors.New("tracking: invalid run")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
	StatusKilled   Status = "KILLED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusFinished, StatusFailed, StatusKilled:
		return true
	}
	return false
}

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusRunning
}

// MaxGroupLen is the longest accepted run group.
const MaxGroupLen = 127

// RunSpec describes a run to create.
type RunSpec struct {
	Project string         `json:"project"`
	Name    string         `json:"name"`
	Group   string         `json:"group,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// Validate checks required fields.
func (s RunSpec) Validate() error {
	switch {
	case s.Project == "":
		return errors.Join(ErrInvalidRun, errors.New("project is empty"))
	case s.Name == "":
		return errors.Join(ErrInvalidRun, errors.New("name is empty"))
	case len(s.Group) > MaxGroupLen:
		return errors.Join(ErrInvalidRun, errors.New("group longer than 127 bytes"))
	}
	return nil
}

// Run is a tracked experiment run.
type Run struct {
	ID        string          `gorm:"primaryKey;column:id;size:36" json:"id"`
	Project   string          `gorm:"column:project;size:255;index:idx_run_project_group" json:"project"`
	Name      string          `gorm:"column:name;size:512" json:"name"`
	Group     string          `gorm:"column:run_group;size:127;index:idx_run_project_group" json:"group,omitempty"`
	Config    json.RawMessage `gorm:"column:config;type:json" json:"config,omitempty"`
	Status    Status          `gorm:"column:status;size:16" json:"status"`
	StartTime time.Time       `gorm:"column:start_time" json:"start_time"`
	EndTime   *time.Time      `gorm:"column:end_time" json:"end_time,omitempty"`
	Metrics   []Metric        `gorm:"foreignKey:RunID" json:"metrics,omitempty"`
}

func (Run) TableName() string {
	return "born_tracking_run"
}

// Metric is one logged value.
type Metric struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"-"`
	RunID     string    `gorm:"column:run_id;size:36;index" json:"-"`
	Key       string    `gorm:"column:metric_key;size:255" json:"key"`
	Value     float64   `gorm:"column:value" json:"value"`
	Step      int64     `gorm:"column:step" json:"step"`
	Timestamp time.Time `gorm:"column:ts" json:"timestamp"`
}

func (Metric) TableName() string {
	return "born_tracking_metric"
}

// RunFilter selects runs. Empty fields match everything.
type RunFilter struct {
	Project string `form:"project"`
	Group   string `form:"group"`
}

// Client is the write side of a tracking backend.
type Client interface {
	CreateRun(ctx context.Context, spec RunSpec) (*Run, error)
	LogMetrics(ctx context.Context, runID string, metrics map[string]float64, step int64) error
	FinishRun(ctx context.Context, runID string, status Status) error
}

// Reader is the query side of a tracking backend.
type Reader interface {
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}
