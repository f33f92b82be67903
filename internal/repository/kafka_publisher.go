package repository

import (
	"context"
	"fmt"
	"time"

	"AlphaLab/internal/domain/models"
	pkgkafka "AlphaLab/pkg/kafka"
)

// producer is the subset of pkg/kafka.Producer used by the publishers.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaReportPublisher implements ReportPublisher for Kafka.
// The producer is owned by the caller and is not closed here.
type KafkaReportPublisher struct {
	producer producer
	topic    string
}

// NewKafkaReportPublisher creates a report publisher on topic.
func NewKafkaReportPublisher(p producer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: p, topic: topic}
}

func (p *KafkaReportPublisher) Publish(ctx context.Context, r *models.EvaluationReport) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	if err := p.producer.Publish(ctx, p.topic, reportKey(r), r); err != nil {
		return fmt.Errorf("publish %s report: %w", r.Kind, err)
	}
	return nil
}

func reportKey(r *models.EvaluationReport) []byte {
	switch {
	case r.Analysis != nil:
		return []byte(r.Analysis.Alpha)
	case r.JobID != "":
		return []byte(r.JobID)
	default:
		return []byte(r.Kind)
	}
}

func (p *KafkaReportPublisher) Close() error { return nil }

// NopReportPublisher drops reports; used when Kafka is disabled.
type NopReportPublisher struct{}

func (NopReportPublisher) Publish(context.Context, *models.EvaluationReport) error { return nil }
func (NopReportPublisher) Close() error                                            { return nil }

// KafkaJobPublisher submits evaluation jobs keyed by alpha, so jobs for one
// alpha land on one partition in submission order.
type KafkaJobPublisher struct {
	producer producer
	topic    string
}

func NewKafkaJobPublisher(p producer, topic string) *KafkaJobPublisher {
	return &KafkaJobPublisher{producer: p, topic: topic}
}

func (p *KafkaJobPublisher) Submit(ctx context.Context, jobs []models.EvaluationJob) error {
	msgs := make([]pkgkafka.Message, len(jobs))
	for i := range jobs {
		msgs[i] = pkgkafka.Message{Key: []byte(jobs[i].Alpha), Value: jobs[i]}
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("submit %d jobs: %w", len(jobs), err)
	}
	return nil
}
