package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	"AlphaLab/pkg/cache"
	applogger "AlphaLab/pkg/logger"
)

// Cache key prefixes shared by the HTTP layer and the jobs that invalidate them.
const (
	CacheKeyAlphas  = "alphas"
	CacheKeyScan    = "scan"
	CacheKeyAnalyze = "analyze"
	CacheKeySimilar = "similar"
)

var ErrJobsDisabled = errors.New("job queue disabled")

// EvaluationJobHandler runs queued single-alpha analyses, stores the daily
// ICs and publishes the report. It serves both the Kafka consumer and the
// Redis queue.
type EvaluationJobHandler struct {
	topic   string
	lab     *FactorLab
	ics     domrepo.ICStore
	reports domrepo.ReportPublisher
	l       *applogger.Logger
	metrics domrepo.Metrics
}

func NewEvaluationJobHandler(topic string, lab *FactorLab, ics domrepo.ICStore, reports domrepo.ReportPublisher) *EvaluationJobHandler {
	return &EvaluationJobHandler{topic: topic, lab: lab, ics: ics, reports: reports, l: applogger.Nop()}
}

func (h *EvaluationJobHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *EvaluationJobHandler) SetMetrics(m domrepo.Metrics) { h.metrics = m }

func (h *EvaluationJobHandler) Topic() string { return h.topic }

func (h *EvaluationJobHandler) Name() string { return "evaluation" }

func (h *EvaluationJobHandler) Type() string { return models.EvaluationJobType }

// Handle decodes one EvaluationJob. Jobs that can never succeed (bad payload,
// unknown alpha, non-trading date) are reported as failed and not retried.
func (h *EvaluationJobHandler) Handle(ctx context.Context, b []byte) error {
	var job models.EvaluationJob
	if err := json.Unmarshal(b, &job); err != nil {
		h.recordError("job_unmarshal")
		h.l.Warn("dropping malformed evaluation job", applogger.Error(err))
		return nil
	}

	analysis, series, err := h.lab.analyze(ctx, AnalyzeParams{
		Alpha:     job.Alpha,
		Date:      job.Date.Time(),
		Days:      job.Days,
		Quantiles: job.Quantiles,
		Top:       job.Top,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownAlpha) || errors.Is(err, ErrNoTradeDate) {
			h.recordError("job_rejected")
			h.l.Warn("evaluation job rejected", applogger.String("job", job.ID), applogger.Error(err))
			return h.publish(ctx, &models.EvaluationReport{JobID: job.ID, Kind: models.ReportKindAnalysis, Error: err.Error()})
		}
		h.recordError("job_analyze")
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	if err := h.ics.SaveICRecords(ctx, job.Alpha, h.lab.Horizon(), series); err != nil {
		h.recordError("job_store")
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	return h.publish(ctx, &models.EvaluationReport{JobID: job.ID, Kind: models.ReportKindAnalysis, Analysis: analysis})
}

func (h *EvaluationJobHandler) publish(ctx context.Context, r *models.EvaluationReport) error {
	if err := h.reports.Publish(ctx, r); err != nil {
		h.recordError("report_publish")
		return err
	}
	return nil
}

func (h *EvaluationJobHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

// JobSubmitter turns job requests into queued EvaluationJobs.
type JobSubmitter struct {
	lab *FactorLab
	pub domrepo.JobPublisher
}

// NewJobSubmitter returns a submitter; a nil publisher disables submission.
func NewJobSubmitter(lab *FactorLab, pub domrepo.JobPublisher) *JobSubmitter {
	return &JobSubmitter{lab: lab, pub: pub}
}

func (s *JobSubmitter) Enabled() bool { return s.pub != nil }

// Submit validates the alphas against the catalogue and queues one job per alpha.
func (s *JobSubmitter) Submit(ctx context.Context, alphas []string, params AnalyzeParams) ([]models.EvaluationJob, error) {
	if s.pub == nil {
		return nil, ErrJobsDisabled
	}
	catalog, err := s.lab.ListAlphas(ctx)
	if err != nil {
		return nil, err
	}
	if len(alphas) == 0 {
		alphas = catalog
	}
	jobs := make([]models.EvaluationJob, 0, len(alphas))
	seen := make(map[string]bool, len(alphas))
	for _, a := range alphas {
		if !contains(catalog, a) {
			return nil, fmt.Errorf("%q: %w", a, ErrUnknownAlpha)
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		jobs = append(jobs, models.EvaluationJob{
			ID:        uuid.NewString(),
			Alpha:     a,
			Date:      models.TradeDate(params.Date),
			Days:      params.Days,
			Quantiles: params.Quantiles,
			Top:       params.Top,
		})
	}
	if err := s.pub.Submit(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// DailyScanJob scans the most recent date with observable forward returns,
// stores one IC record per alpha and publishes the scan. A distributed lock
// keeps replicas from running it twice.
type DailyScanJob struct {
	lab     *FactorLab
	ics     domrepo.ICStore
	reports domrepo.ReportPublisher
	cache   cache.Service
	lockTTL time.Duration
	l       *applogger.Logger
}

func NewDailyScanJob(lab *FactorLab, ics domrepo.ICStore, reports domrepo.ReportPublisher, c cache.Service, lockTTL time.Duration) *DailyScanJob {
	return &DailyScanJob{lab: lab, ics: ics, reports: reports, cache: c, lockTTL: lockTTL, l: applogger.Nop()}
}

func (j *DailyScanJob) SetLogger(l *applogger.Logger) { j.l = l }

func (j *DailyScanJob) Name() string { return "daily_scan" }

func (j *DailyScanJob) Run(ctx context.Context) error {
	lockKey := cache.GenerateKey("lock", j.Name())
	if j.cache != nil {
		ok, err := j.cache.TryLock(ctx, lockKey, j.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			j.l.Info("daily scan already running elsewhere, skipping")
			return nil
		}
		defer func() {
			if err := j.cache.Unlock(context.Background(), lockKey); err != nil {
				j.l.Warn("release lock failed", applogger.Error(err))
			}
		}()
	}

	date, err := j.lab.ScanTargetDate(ctx)
	if err != nil {
		return err
	}
	scan, err := j.lab.ScanCrossSection(ctx, date)
	if err != nil {
		return err
	}

	saved := 0
	for _, r := range scan.Results {
		rec := models.ICSeries{{Date: date, IC: r.IC.Float(), Cumulative: math.NaN(), N: r.N}}
		if err := j.ics.SaveICRecords(ctx, r.Alpha, scan.Horizon, rec); err != nil {
			return fmt.Errorf("save %s: %w", r.Alpha, err)
		}
		saved++
	}
	if err := j.reports.Publish(ctx, &models.EvaluationReport{Kind: models.ReportKindScan, Scan: scan}); err != nil {
		j.l.Warn("publish scan report failed", applogger.Error(err))
	}
	if j.cache != nil {
		for _, prefix := range []string{CacheKeyAlphas, cache.GenerateKey(CacheKeyScan, date.Format(models.DateLayout))} {
			if err := j.cache.DeleteByPattern(ctx, cache.BuildPattern(prefix)); err != nil {
				j.l.Warn("cache invalidation failed", applogger.String("prefix", prefix), applogger.Error(err))
			}
		}
	}
	j.l.Info("daily scan stored", applogger.Date("date", date), applogger.Int("alphas", saved))
	return nil
}
