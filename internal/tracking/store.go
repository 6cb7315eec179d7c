package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/born-ml/trainer/internal/floatjson"
)

// DBConfig selects and addresses the tracking database.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"` // database name, or file path for sqlite
}

// Open connects to the database described by cfg.
func Open(cfg DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "mysql":
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=%s&timeout=5s&readTimeout=10s&writeTimeout=10s",
			cfg.User, cfg.Password, cfg.Host, port, cfg.DBName, url.QueryEscape("UTC"),
		)
		dialector = mysql.Open(dsn)
	case "sqlite":
		name := cfg.DBName
		if name == "" {
			name = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(name)
	default:
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s failed (host=%s db=%s): %w", cfg.Driver, cfg.Host, cfg.DBName, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB failed: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("%s ping failed: %w", cfg.Driver, err)
	}
	return db, nil
}

// Store is a Client and Reader backed by gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore migrates the tracking tables and returns a Store.
func NewStore(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("tracking: db is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, m := range []any{&Run{}, &Metric{}} {
		if err := db.AutoMigrate(m); err != nil {
			return nil, fmt.Errorf("auto migrate failed: %w", err)
		}
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "tracking-store"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateRun inserts a RUNNING run with a new UUID.
func (s *Store) CreateRun(ctx context.Context, spec RunSpec) (*Run, error) {
	logger := s.logger.With("method", "CreateRun")
	if err := spec.Validate(); err != nil {
		logger.Warn("create run skipped: invalid spec", "error", err)
		return nil, err
	}

	var cfg json.RawMessage
	if len(spec.Config) > 0 {
		raw, err := json.Marshal(spec.Config)
		if err != nil {
			return nil, fmt.Errorf("marshal run config failed: %w", err)
		}
		cfg = raw
	}

	run := &Run{
		ID:        uuid.NewString(),
		Project:   spec.Project,
		Name:      spec.Name,
		Group:     spec.Group,
		Config:    cfg,
		Status:    StatusRunning,
		StartTime: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		logger.Error("create run failed: db create", "error", err)
		return nil, fmt.Errorf("create run failed: %w", err)
	}
	logger.Info("run created", "id", run.ID, "project", run.Project, "name", run.Name, "group", run.Group)
	return run, nil
}

// LogMetrics appends metrics to a RUNNING run.
func (s *Store) LogMetrics(ctx context.Context, runID string, metrics map[string]float64, step int64) error {
	run, err := s.find(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}
	if len(metrics) == 0 {
		return nil
	}

	ts := s.now()
	rows := make([]Metric, 0, len(metrics))
	for k, v := range metrics {
		if !floatjson.Finite(v) {
			s.logger.Warn("metric value not stored: not finite", "id", runID, "key", k, "value", v, "step", step)
			continue
		}
		rows = append(rows, Metric{RunID: runID, Key: k, Value: v, Step: step, Timestamp: ts})
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		s.logger.Error("log metrics failed: db create", "id", runID, "error", err)
		return fmt.Errorf("log metrics failed: %w", err)
	}
	return nil
}

// FinishRun moves a RUNNING run to a terminal status.
func (s *Store) FinishRun(ctx context.Context, runID string, status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: status %q is not terminal", ErrInvalidRun, status)
	}
	end := s.now()
	res := s.db.WithContext(ctx).Model(&Run{}).
		Where("id = ? AND status = ?", runID, StatusRunning).
		Updates(map[string]any{"status": status, "end_time": end})
	if res.Error != nil {
		return fmt.Errorf("finish run failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.find(ctx, runID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}
	s.logger.Info("run finished", "id", runID, "status", status)
	return nil
}

// GetRun returns a run with its metrics ordered by step and key.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Preload("Metrics", func(db *gorm.DB) *gorm.DB { return db.Order("step, metric_key") }).
		First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run failed: %w", err)
	}
	return &run, nil
}

// ListRuns returns matching runs ordered by start time, without metrics.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	q := s.db.WithContext(ctx).Model(&Run{})
	if filter.Project != "" {
		q = q.Where("project = ?", filter.Project)
	}
	if filter.Group != "" {
		q = q.Where("run_group = ?", filter.Group)
	}
	var runs []Run
	if err := q.Order("start_time").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs failed: %w", err)
	}
	return runs, nil
}

func (s *Store) find(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("find run failed: %w", err)
	}
	return &run, nil
}
