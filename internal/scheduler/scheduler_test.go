package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	name string
	runs atomic.Int32
	err  error
}

func (c *countingTask) Name() string { return c.name }

func (c *countingTask) Run(ctx context.Context) error {
	c.runs.Add(1)
	return c.err
}

func TestAddRejectsDuplicatesAndBadSpecs(t *testing.T) {
	s := New(nil, time.Second)

	require.NoError(t, s.Add("0 30 18 * * 1-5", &countingTask{name: "daily_scan"}))
	assert.Error(t, s.Add("0 0 * * * *", &countingTask{name: "daily_scan"}))
	assert.Error(t, s.Add("not a spec", &countingTask{name: "other"}))

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskStatusPending, tasks[0].Status)
}

func TestRunNowTracksStatus(t *testing.T) {
	s := New(nil, time.Second)
	ok := &countingTask{name: "a_ok"}
	bad := &countingTask{name: "b_bad", err: errors.New("boom")}
	require.NoError(t, s.Add("@daily", ok))
	require.NoError(t, s.Add("@daily", bad))

	require.NoError(t, s.RunNow("a_ok"))
	require.Error(t, s.RunNow("b_bad"))
	assert.Error(t, s.RunNow("missing"))

	tasks := s.ListTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, TaskStatusCompleted, tasks[0].Status)
	assert.Equal(t, TaskStatusFailed, tasks[1].Status)
	assert.Equal(t, "boom", tasks[1].Error)
	assert.EqualValues(t, 1, ok.runs.Load())
}

func TestScheduledTaskFires(t *testing.T) {
	s := New(nil, time.Second)
	task := &countingTask{name: "tick"}
	require.NoError(t, s.Add("@every 1s", task))

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool { return task.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	tasks := s.ListTasks()
	assert.False(t, tasks[0].NextRunTime.IsZero())
}

func TestFuncTaskRunsWithTimeout(t *testing.T) {
	s := New(nil, 50*time.Millisecond)
	var deadline bool
	require.NoError(t, s.Add("@every 1h", Func("sweep", func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return nil
	})))

	require.NoError(t, s.RunNow("sweep"))
	assert.True(t, deadline)
	assert.Error(t, s.RunNow("missing"))
}
