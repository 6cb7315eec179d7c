package loggers

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/born-ml/trainer/internal/engine"
	"github.com/born-ml/trainer/internal/tracking"
)

const callTimeout = 30 * time.Second

// TrackingLogger mirrors one tracking run. The run is created on the first
// LogHyperparams or LogMetrics call; after Finalize the next call starts a
// new run.
type TrackingLogger struct {
	mu     sync.Mutex
	client tracking.Client
	spec   tracking.RunSpec
	run    *tracking.Run
	logger *slog.Logger
}

// NewTrackingLogger creates a logger for a run named name in project.
// group is truncated to tracking.MaxGroupLen bytes.
func NewTrackingLogger(client tracking.Client, project, name, group string, logger *slog.Logger) *TrackingLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackingLogger{
		client: client,
		spec: tracking.RunSpec{
			Project: project,
			Name:    name,
			Group:   TruncateGroup(group),
		},
		logger: logger.With("component", "tracking-logger", "run", name),
	}
}

// TruncateGroup cuts s to at most tracking.MaxGroupLen bytes without
// splitting a UTF-8 sequence.
func TruncateGroup(s string) string {
	if len(s) <= tracking.MaxGroupLen {
		return s
	}
	cut := tracking.MaxGroupLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Name returns the run name.
func (l *TrackingLogger) Name() string {
	return l.spec.Name
}

// Group returns the run group.
func (l *TrackingLogger) Group() string {
	return l.spec.Group
}

// RunID returns the active run ID, or "" when no run is open.
func (l *TrackingLogger) RunID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == nil {
		return ""
	}
	return l.run.ID
}

// LogHyperparams records params as the run config. Parameters logged after
// the run has started are kept for the next run.
func (l *TrackingLogger) LogHyperparams(params map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.spec.Config == nil {
		l.spec.Config = make(map[string]any, len(params))
	}
	maps.Copy(l.spec.Config, params)
	if l.run != nil {
		l.logger.Debug("hyperparameters logged after run start", "id", l.run.ID)
		return nil
	}
	_, err := l.ensureRun()
	return err
}

// LogMetrics sends metrics to the active run.
func (l *TrackingLogger) LogMetrics(metrics engine.Metrics, step int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, err := l.ensureRun()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := l.client.LogMetrics(ctx, run.ID, metrics, step); err != nil {
		return fmt.Errorf("failed to log metrics: %w", err)
	}
	return nil
}

// Finalize closes the active run. "success" maps to FINISHED, "failed" to
// FAILED and anything else to KILLED. Without an active run it does nothing.
func (l *TrackingLogger) Finalize(status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.run == nil {
		return nil
	}
	id := l.run.ID
	l.run = nil

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := l.client.FinishRun(ctx, id, RunStatus(status)); err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	l.logger.Info("run finalized", "id", id, "status", status)
	return nil
}

// RunStatus maps a Finalize status to a tracking status.
func RunStatus(status string) tracking.Status {
	switch status {
	case StatusSuccess:
		return tracking.StatusFinished
	case StatusFailed:
		return tracking.StatusFailed
	default:
		return tracking.StatusKilled
	}
}

func (l *TrackingLogger) ensureRun() (*tracking.Run, error) {
	if l.run != nil {
		return l.run, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	run, err := l.client.CreateRun(ctx, l.spec)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	l.run = run
	l.logger.Info("run started", "id", run.ID, "project", run.Project, "group", run.Group)
	return run, nil
}
