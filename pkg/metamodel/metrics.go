package metamodel

import (
	"context"
	"time"
)

// MetricsRecorder observes loader operations: specification builds and
// metamodel validation runs.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Operation names reported to MetricsRecorder.
const (
	OpLoad     = "load"
	OpValidate = "validate"
)

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
