package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evalPayload struct {
	Alpha string `json:"alpha"`
	Days  int    `json:"days"`
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[evalPayload]([]byte(`{"alpha":"alpha_001","days":30}`))
	require.NoError(t, err)
	assert.Equal(t, "alpha_001", p.Alpha)
	assert.Equal(t, 30, p.Days)

	_, err = ParsePayload[evalPayload](nil)
	assert.Error(t, err)
	_, err = ParsePayload[evalPayload]([]byte(`{`))
	assert.Error(t, err)
}

func TestEncodePayloadPassesRawBytesThrough(t *testing.T) {
	raw := json.RawMessage(`{"alpha":"alpha_002"}`)
	out, err := encodePayload(raw)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(out))

	out, err = encodePayload(evalPayload{Alpha: "alpha_003", Days: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"alpha":"alpha_003","days":5}`, string(out))
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	q := NewRedisQueue(nil, nil, client, ModeProducerOnly, WithKeyPrefix("test:queue"))

	_, err := q.Enqueue(context.Background(), "evaluate", evalPayload{Alpha: "alpha_001"})
	assert.ErrorContains(t, err, "not running")
	assert.Equal(t, "test:queue:messages", q.queueKey())
	assert.Equal(t, "test:queue:retry", q.retryKey())
	assert.Equal(t, "test:queue:dlq", q.deadLetterKey())
	assert.NoError(t, q.Stop(context.Background()))
}
