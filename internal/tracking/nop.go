package tracking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Nop is a Client that records nothing.
type Nop struct{}

// CreateRun returns a RUNNING run that is not stored anywhere.
func (Nop) CreateRun(_ context.Context, spec RunSpec) (*Run, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Run{
		ID:        uuid.NewString(),
		Project:   spec.Project,
		Name:      spec.Name,
		Group:     spec.Group,
		Status:    StatusRunning,
		StartTime: time.Now().UTC(),
	}, nil
}

// LogMetrics does nothing.
func (Nop) LogMetrics(context.Context, string, map[string]float64, int64) error { return nil }

// FinishRun does nothing.
func (Nop) FinishRun(context.Context, string, Status) error { return nil }
