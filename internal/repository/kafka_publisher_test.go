package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaLab/internal/domain/models"
	pkgkafka "AlphaLab/pkg/kafka"
)

type fakeProducer struct {
	topic string
	keys  []string
	batch []pkgkafka.Message
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, _ interface{}) error {
	f.topic = topic
	f.keys = append(f.keys, string(key))
	return nil
}

func (f *fakeProducer) PublishBatch(_ context.Context, topic string, messages []pkgkafka.Message) error {
	f.topic = topic
	f.batch = append(f.batch, messages...)
	return nil
}

func TestReportPublisherKeys(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaReportPublisher(fp, "alphalab.reports")

	r := &models.EvaluationReport{Kind: models.ReportKindAnalysis, Analysis: &models.AlphaAnalysis{Alpha: "alpha_007"}}
	require.NoError(t, pub.Publish(context.Background(), r))
	require.NoError(t, pub.Publish(context.Background(), &models.EvaluationReport{Kind: models.ReportKindScan}))

	assert.Equal(t, "alphalab.reports", fp.topic)
	assert.Equal(t, []string{"alpha_007", "scan"}, fp.keys)
	assert.False(t, r.FinishedAt.IsZero())
}

func TestJobPublisherKeysByAlpha(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaJobPublisher(fp, "alphalab.jobs")
	jobs := []models.EvaluationJob{{ID: "1", Alpha: "alpha_001"}, {ID: "2", Alpha: "alpha_002"}}

	require.NoError(t, pub.Submit(context.Background(), jobs))
	require.Len(t, fp.batch, 2)
	assert.Equal(t, "alpha_002", string(fp.batch[1].Key))
	assert.Equal(t, jobs[0], fp.batch[0].Value)
}

type fakeQueue struct {
	types    []string
	payloads []interface{}
}

func (f *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	f.types = append(f.types, msgType)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestQueueJobPublisherEnqueuesEachJob(t *testing.T) {
	fq := &fakeQueue{}
	pub := NewQueueJobPublisher(fq)
	jobs := []models.EvaluationJob{{ID: "a", Alpha: "alpha_010"}, {ID: "b", Alpha: "alpha_011"}}

	require.NoError(t, pub.Submit(context.Background(), jobs))
	assert.Equal(t, []string{models.EvaluationJobType, models.EvaluationJobType}, fq.types)
	assert.Equal(t, jobs[1], fq.payloads[1])
}
