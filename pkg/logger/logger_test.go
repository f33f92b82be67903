package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("component", "evaluator"))
	l.Info("scan done", Int("alphas", 101), Float64("ic", 0.05), Date("date", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "scan done", got["message"])
	assert.Equal(t, "evaluator", got["component"])
	assert.Equal(t, float64(101), got["alphas"])
	assert.Equal(t, 0.05, got["ic"])
	assert.Equal(t, "2024-01-02", got["date"])
}

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]DigestEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]DigestEntry))
	return nil
}

func TestDigestDeduplicatesErrors(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDigest(DigestConfig{Interval: time.Hour, MaxUnique: 10, Topic: "alphalab.errors", Publisher: pub})
	l := NewWriter(&bytes.Buffer{})
	l.AttachDigest(d)

	for i := 0; i < 3; i++ {
		l.Error("query failed", Error(errors.New("timeout")))
	}
	l.Error("other failure")
	l.Info("not collected")
	assert.Equal(t, 2, d.Pending())

	l.DetachDigest()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "alphalab.errors", pub.topic)
	batch := pub.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "query failed", batch[0].Message)
	assert.Equal(t, 3, batch[0].Count)
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "alphalab.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, MaxSizeMB: 1})
	require.NoError(t, err)
	l.Info("started", String("env", "test"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"env":"test"`)

	_, err = New(&Config{Level: "loud"})
	assert.Error(t, err)
}
