// Package scheduler runs periodic tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	applogger "AlphaLab/pkg/logger"
)

// TaskHandler is one schedulable unit of work.
type TaskHandler interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// Func adapts a plain function to TaskHandler.
func Func(name string, fn func(ctx context.Context) error) TaskHandler {
	return funcTask{name: name, fn: fn}
}

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is the observable state of a scheduled handler.
type Task struct {
	Name        string        `json:"name"`
	Schedule    string        `json:"schedule"`
	Status      TaskStatus    `json:"status"`
	LastRunTime time.Time     `json:"last_run,omitempty"`
	LastTook    time.Duration `json:"last_took_ns,omitempty"`
	NextRunTime time.Time     `json:"next_run,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Scheduler wraps cron with per-task status, overlap protection and panic recovery.
type Scheduler struct {
	cron    *cron.Cron
	l       *applogger.Logger
	timeout time.Duration

	mu       sync.RWMutex
	tasks    map[string]*Task
	handlers map[string]TaskHandler
	entries  map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a scheduler whose specs carry a leading seconds field.
// timeout bounds a single run; zero means unbounded.
func New(l *applogger.Logger, timeout time.Duration) *Scheduler {
	if l == nil {
		l = applogger.Nop()
	}
	cl := cronLogger{l: l}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		l:        l,
		timeout:  timeout,
		tasks:    make(map[string]*Task),
		handlers: make(map[string]TaskHandler),
		entries:  make(map[string]cron.EntryID),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add registers h under spec. Names must be unique.
func (s *Scheduler) Add(spec string, h TaskHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[h.Name()]; ok {
		return fmt.Errorf("task %s already scheduled", h.Name())
	}
	task := &Task{Name: h.Name(), Schedule: spec, Status: TaskStatusPending}
	id, err := s.cron.AddFunc(spec, func() { s.run(task, h) })
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", h.Name(), err)
	}
	s.tasks[h.Name()] = task
	s.handlers[h.Name()] = h
	s.entries[h.Name()] = id
	return nil
}

// RunNow executes a registered task synchronously outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	task, ok := s.tasks[name]
	h := s.handlers[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task not found: %s", name)
	}
	return s.run(task, h)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", applogger.Int("tasks", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running ones within ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) run(task *Task, h TaskHandler) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.mu.Lock()
	task.Status = TaskStatusRunning
	task.LastRunTime = start
	s.mu.Unlock()

	err := h.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	task.LastTook = time.Since(start)
	if err != nil {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		s.l.Error("scheduled task failed", applogger.String("task", task.Name), applogger.Error(err))
		return err
	}
	task.Status = TaskStatusCompleted
	task.Error = ""
	s.l.Info("scheduled task done", applogger.String("task", task.Name), applogger.Duration("took", task.LastTook))
	return nil
}

// ListTasks returns a snapshot of every task with its next run time.
func (s *Scheduler) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.tasks))
	for name, t := range s.tasks {
		cp := *t
		if id, ok := s.entries[name]; ok {
			cp.NextRunTime = s.cron.Entry(id).Next
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, applogger.Any(key, kv[i+1]))
	}
	return fields
}
