package repository

import (
	"context"

	"AlphaLab/internal/domain/models"
)

// ICStore persists daily IC records.
type ICStore interface {
	Init(ctx context.Context) error
	SaveICRecords(ctx context.Context, alpha string, horizon int, records models.ICSeries) error
	Health(ctx context.Context) error
}

// ReportPublisher fans evaluation results out to downstream consumers.
type ReportPublisher interface {
	Publish(ctx context.Context, r *models.EvaluationReport) error
	Close() error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordIC(alpha string, ic float64)
	RecordRows(source string, rows int)
}

// JobPublisher queues evaluation jobs for asynchronous processing.
type JobPublisher interface {
	Submit(ctx context.Context, jobs []models.EvaluationJob) error
}
