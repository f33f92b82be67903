package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	applogger "AlphaLab/pkg/logger"
)

// ErrBufferFull is returned when a report could neither be delivered nor buffered.
var ErrBufferFull = errors.New("report buffer full")

// ReportPipeline sits between the evaluators and a report sink. Reports the
// sink rejects are buffered and redelivered in the background, so a slow or
// unavailable sink does not fail the evaluation that produced them.
type ReportPipeline struct {
	next    domrepo.ReportPublisher
	metrics domrepo.Metrics
	l       *applogger.Logger

	bufSize    int
	backoffMin time.Duration
	backoffMax time.Duration
	drainWait  time.Duration

	bufCh   chan *models.EvaluationReport
	stopCh  chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	started bool
	closed  bool
}

type PipelineOption func(*ReportPipeline)

// WithBufferSize sets how many undelivered reports are held.
func WithBufferSize(n int) PipelineOption {
	return func(p *ReportPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff bounds the redelivery delay.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *ReportPipeline) {
		if min > 0 && max >= min {
			p.backoffMin, p.backoffMax = min, max
		}
	}
}

// WithDrainWait bounds the final redelivery attempt on Close.
func WithDrainWait(d time.Duration) PipelineOption {
	return func(p *ReportPipeline) { p.drainWait = d }
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *ReportPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewReportPipeline creates a pipeline in front of next. Call Start to enable redelivery.
func NewReportPipeline(next domrepo.ReportPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *ReportPipeline {
	p := &ReportPipeline{
		next:       next,
		metrics:    metrics,
		l:          applogger.Nop(),
		bufSize:    256,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 5 * time.Second,
		drainWait:  5 * time.Second,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.EvaluationReport, p.bufSize)
	return p
}

// Start launches background redelivery of buffered reports.
func (p *ReportPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := p.backoffMin
		for {
			select {
			case <-p.stopCh:
				return
			case r := <-p.bufCh:
				if err := p.next.Publish(ctx, r); err != nil {
					p.record("report_redeliver")
					p.requeue(r)
					if backoff < p.backoffMax {
						backoff *= 2
						if backoff > p.backoffMax {
							backoff = p.backoffMax
						}
					}
					select {
					case <-p.stopCh:
						return
					case <-time.After(backoff):
					}
					continue
				}
				backoff = p.backoffMin
			}
		}
	}()
}

// Publish validates r and forwards it, buffering on downstream errors.
func (p *ReportPipeline) Publish(ctx context.Context, r *models.EvaluationReport) error {
	if err := validateReport(r); err != nil {
		p.record("report_validate")
		return err
	}
	start := time.Now()
	if err := p.next.Publish(ctx, r); err != nil {
		p.record("report_publish")
		select {
		case p.bufCh <- r:
			p.l.Warn("report buffered for redelivery",
				applogger.String("kind", r.Kind),
				applogger.String("job", r.JobID),
				applogger.Int("depth", len(p.bufCh)),
				applogger.Error(err))
			return nil
		default:
			p.record("report_buffer_full")
			return fmt.Errorf("%w: %v", ErrBufferFull, err)
		}
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("report_publish", time.Since(start).Seconds())
	}
	return nil
}

// Pending reports the number of buffered reports.
func (p *ReportPipeline) Pending() int { return len(p.bufCh) }

// Close stops redelivery, makes one last bounded attempt at the buffer and
// closes the sink.
func (p *ReportPipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	close(p.stopCh)
	if started {
		<-p.done
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.drainWait)
	defer cancel()
	lost := 0
	for len(p.bufCh) > 0 {
		r := <-p.bufCh
		if ctx.Err() != nil || p.next.Publish(ctx, r) != nil {
			lost++
		}
	}
	if lost > 0 {
		p.l.Error("reports lost on close", applogger.Int("count", lost))
	}
	return p.next.Close()
}

func (p *ReportPipeline) requeue(r *models.EvaluationReport) {
	select {
	case p.bufCh <- r:
	default:
		p.record("report_buffer_drop")
		p.l.Error("report dropped", applogger.String("kind", r.Kind), applogger.String("job", r.JobID))
	}
}

func (p *ReportPipeline) record(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateReport(r *models.EvaluationReport) error {
	if r == nil {
		return fmt.Errorf("report nil")
	}
	switch r.Kind {
	case models.ReportKindAnalysis, models.ReportKindScan:
	default:
		return fmt.Errorf("unknown report kind %q", r.Kind)
	}
	if r.Analysis == nil && r.Scan == nil && r.Error == "" {
		return fmt.Errorf("%s report has no payload", r.Kind)
	}
	return nil
}
