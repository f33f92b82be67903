package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaLab/internal/domain/models"
)

// flakySink fails the first failures calls.
type flakySink struct {
	mu        sync.Mutex
	failures  int
	delivered []string
	closed    bool
}

func (s *flakySink) Publish(_ context.Context, r *models.EvaluationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink down")
	}
	s.delivered = append(s.delivered, r.JobID)
	return nil
}

func (s *flakySink) Close() error {
	s.closed = true
	return nil
}

func (s *flakySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func scanReport(id string) *models.EvaluationReport {
	return &models.EvaluationReport{JobID: id, Kind: models.ReportKindScan, Scan: &models.CrossSectionScan{}}
}

func TestReportPipelineRedeliversBufferedReports(t *testing.T) {
	sink := &flakySink{failures: 2}
	p := NewReportPipeline(sink, nil, WithBackoff(time.Millisecond, 5*time.Millisecond))
	p.Start(context.Background())
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), scanReport("a")))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, p.Pending())
}

func TestReportPipelineRejectsInvalidReports(t *testing.T) {
	p := NewReportPipeline(&flakySink{}, nil)
	defer p.Close()

	assert.Error(t, p.Publish(context.Background(), nil))
	assert.Error(t, p.Publish(context.Background(), &models.EvaluationReport{Kind: "weekly", Error: "x"}))
	assert.Error(t, p.Publish(context.Background(), &models.EvaluationReport{Kind: models.ReportKindAnalysis}))
	assert.NoError(t, p.Publish(context.Background(), &models.EvaluationReport{Kind: models.ReportKindAnalysis, Error: "unknown alpha"}))
}

func TestReportPipelineBufferFull(t *testing.T) {
	sink := &flakySink{failures: 100}
	p := NewReportPipeline(sink, nil, WithBufferSize(1), WithDrainWait(10*time.Millisecond))

	require.NoError(t, p.Publish(context.Background(), scanReport("a")))
	err := p.Publish(context.Background(), scanReport("b"))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Equal(t, 1, p.Pending())
}

func TestReportPipelineCloseDrainsAndClosesSink(t *testing.T) {
	sink := &flakySink{failures: 1}
	p := NewReportPipeline(sink, nil)

	require.NoError(t, p.Publish(context.Background(), scanReport("a")))
	require.NoError(t, p.Close())
	assert.Equal(t, 1, sink.count())
	assert.True(t, sink.closed)
	assert.NoError(t, p.Close())
}
