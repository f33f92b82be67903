package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"AlphaLab/internal/scheduler"
	"AlphaLab/internal/usecase"
	"AlphaLab/pkg/config"
	xhttp "AlphaLab/pkg/http"
	pkgkafka "AlphaLab/pkg/kafka"
	applogger "AlphaLab/pkg/logger"
	"AlphaLab/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	sched      *scheduler.Scheduler
	jobs       *usecase.EvaluationJobHandler

	consumer *pkgkafka.Consumer
	queue    *queue.RedisQueue
}

// Option attaches optional components to App.
type Option func(*App)

// WithConsumer runs the evaluation handler on a Kafka consumer.
func WithConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) { a.consumer = c }
}

// WithQueue runs the evaluation handler on a Redis queue.
func WithQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.queue = q }
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	jobs *usecase.EvaluationJobHandler,
	opts ...Option,
) *App {
	a := &App{cfg: cfg, l: l, httpServer: httpServer, sched: sched, jobs: jobs}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start launches the job workers, the scheduler and the HTTP server.
func (a *App) Start() error {
	if a.consumer != nil && a.jobs != nil {
		a.consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook{L: a.l}))
		a.consumer.RegisterHandler(a.jobs)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.l.Info("evaluation jobs consumed from kafka", applogger.String("topic", a.jobs.Topic()))
	}

	if a.queue != nil {
		if a.jobs != nil {
			a.queue.RegisterJob(a.jobs)
		}
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("start redis queue: %w", err)
		}
	}

	if a.sched != nil {
		a.sched.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

// Run starts the application and blocks until interrupted or the HTTP
// listener fails.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		a.l.Error("startup failed", applogger.Error(err))
		_ = a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.l.Info("shutdown signal received", applogger.String("signal", sig.String()))
	case runErr = <-a.httpServer.Errors():
		a.l.Error("http server stopped", applogger.Error(runErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops intake first, then the workers. Shared clients are closed
// by the injector cleanup.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		keep(err)
	}
	if a.sched != nil {
		if err := a.sched.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
			keep(err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			keep(err)
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.l.Warn("redis queue stop error", applogger.Error(err))
			keep(err)
		}
	}

	a.l.Info("shutdown complete")
	return firstErr
}
