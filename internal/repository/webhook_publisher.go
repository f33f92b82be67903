package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AlphaLab/internal/domain/models"
	domrepo "AlphaLab/internal/domain/repository"
	xhttp "AlphaLab/pkg/http"
)

// WebhookReportPublisher posts every report as JSON to a fixed URL.
type WebhookReportPublisher struct {
	client *xhttp.Client
	url    string
}

func NewWebhookReportPublisher(client *xhttp.Client, url string) *WebhookReportPublisher {
	return &WebhookReportPublisher{client: client, url: url}
}

func (p *WebhookReportPublisher) Publish(ctx context.Context, r *models.EvaluationReport) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	if err := p.client.PostJSON(ctx, p.url, r); err != nil {
		return fmt.Errorf("webhook %s report: %w", r.Kind, err)
	}
	return nil
}

func (p *WebhookReportPublisher) Close() error { return nil }

// FanoutReportPublisher delivers a report to every sink and joins their errors.
type FanoutReportPublisher []domrepo.ReportPublisher

func (f FanoutReportPublisher) Publish(ctx context.Context, r *models.EvaluationReport) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f FanoutReportPublisher) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
