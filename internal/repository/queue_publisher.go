package repository

import (
	"context"
	"fmt"

	"AlphaLab/internal/domain/models"
	"AlphaLab/pkg/queue"
)

// QueueJobPublisher submits evaluation jobs to the Redis queue.
type QueueJobPublisher struct {
	q queue.QueueService
}

func NewQueueJobPublisher(q queue.QueueService) *QueueJobPublisher {
	return &QueueJobPublisher{q: q}
}

func (p *QueueJobPublisher) Submit(ctx context.Context, jobs []models.EvaluationJob) error {
	for i := range jobs {
		if err := p.q.PublishMessage(ctx, models.EvaluationJobType, jobs[i]); err != nil {
			return fmt.Errorf("enqueue job %s: %w", jobs[i].ID, err)
		}
	}
	return nil
}
