package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	name  string
	trail *[]string
	fail  bool
	panic bool
}

func (h recordingHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	*h.trail = append(*h.trail, "before:"+h.name)
	if h.panic {
		panic("boom")
	}
	if h.fail {
		return ctx, km, data, errors.New("rejected")
	}
	return ctx, km, append(data, h.name...), nil
}

func (h recordingHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	*h.trail = append(*h.trail, "after:"+h.name)
}

func (h recordingHook) OnError(context.Context, string, kafka.Message, []byte, error) {
	*h.trail = append(*h.trail, "error:"+h.name)
}

func TestHookChainOrder(t *testing.T) {
	var trail []string
	chain := NewHookChain(recordingHook{name: "a", trail: &trail}, nil, recordingHook{name: "b", trail: &trail})

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))

	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, trail)
}

func TestHookChainStopsOnError(t *testing.T) {
	var trail []string
	chain := NewHookChain(recordingHook{name: "a", trail: &trail, fail: true}, recordingHook{name: "b", trail: &trail})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.Error(t, err)
	assert.Equal(t, []string{"before:a", "error:a", "error:b"}, trail)
}

func TestHookChainRecoversPanic(t *testing.T) {
	var trail []string
	chain := NewHookChain(recordingHook{name: "a", trail: &trail, panic: true})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestTraceHookUsesHeaderThenKey(t *testing.T) {
	h := TraceHook{}
	ctx, _, _, err := h.BeforeHandle(context.Background(), "t", kafka.Message{
		Key:     []byte("alpha_001"),
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFrom(ctx))

	ctx, _, _, _ = h.BeforeHandle(context.Background(), "t", kafka.Message{Key: []byte("alpha_002")}, nil)
	assert.Equal(t, "alpha_002", TraceIDFrom(ctx))
	_, ok := ctx.Value(CtxStartTime).(time.Time)
	assert.True(t, ok)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestEncode(t *testing.T) {
	b, err := encode(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	b, err = encode("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer(nil)
	assert.Error(t, err)
}
