package metrics

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	domrepo "AlphaLab/internal/domain/repository"
)

var _ domrepo.Metrics = (*Recorder)(nil)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordError("clickhouse_query")
	r.RecordError("clickhouse_query")
	r.RecordRows("alphas", 120)
	r.RecordIC("alpha_001", 0.07)
	r.RecordIC("alpha_001", math.NaN())
	r.RecordLatency("analyze", 0.3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("clickhouse_query")))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.rowsTotal.WithLabelValues("alphas")))
	assert.Equal(t, 0.07, testutil.ToFloat64(r.lastIC.WithLabelValues("alpha_001")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
