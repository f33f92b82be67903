package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaLab/internal/domain/models"
	xhttp "AlphaLab/pkg/http"
)

func TestWebhookReportPublisherPostsJSON(t *testing.T) {
	var got models.EvaluationReport
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewWebhookReportPublisher(xhttp.NewClient(xhttp.WithHeader("X-Token", "t1")), srv.URL)
	require.NoError(t, p.Publish(context.Background(), &models.EvaluationReport{JobID: "j1", Kind: models.ReportKindScan}))

	assert.Equal(t, "j1", got.JobID)
	assert.Equal(t, "t1", token)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestWebhookReportPublisherReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookReportPublisher(xhttp.NewClient(), srv.URL).Publish(context.Background(), &models.EvaluationReport{Kind: models.ReportKindScan})
	var se *xhttp.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
}

type failingPublisher struct{ n int }

func (f *failingPublisher) Publish(context.Context, *models.EvaluationReport) error {
	f.n++
	return errors.New("down")
}

func (f *failingPublisher) Close() error { return nil }

func TestFanoutReportPublisherReachesEverySink(t *testing.T) {
	a, b := &failingPublisher{}, &failingPublisher{}
	err := FanoutReportPublisher{a, NopReportPublisher{}, b}.Publish(context.Background(), &models.EvaluationReport{Kind: models.ReportKindScan})
	assert.Error(t, err)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
