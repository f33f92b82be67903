package di

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"AlphaLab/internal/domain/repository"
	"AlphaLab/internal/handler/api"
	"AlphaLab/internal/middleware"
	internalrepo "AlphaLab/internal/repository"
	"AlphaLab/internal/scheduler"
	"AlphaLab/internal/service/ratelimit"
	"AlphaLab/internal/usecase"
	"AlphaLab/pkg/cache"
	pkgch "AlphaLab/pkg/clickhouse"
	"AlphaLab/pkg/config"
	xhttp "AlphaLab/pkg/http"
	pkgkafka "AlphaLab/pkg/kafka"
	applogger "AlphaLab/pkg/logger"
	"AlphaLab/pkg/metrics"
	"AlphaLab/pkg/queue"
	"AlphaLab/pkg/server"
)

// ProvideLogger builds the application logger. With the digest enabled,
// error events are batched to Kafka through producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.File.MaxSizeMB,
		MaxBackups: cfg.Log.File.MaxBackups,
		MaxAgeDays: cfg.Log.File.MaxAgeDays,
		Compress:   cfg.Log.File.Compress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Digest.Enabled && producer != nil {
		l.AttachDigest(applogger.NewDigest(applogger.DigestConfig{
			Interval:  cfg.Log.Digest.Interval,
			MaxUnique: cfg.Log.Digest.MaxUnique,
			Topic:     cfg.Log.Digest.Topic,
			Publisher: producer,
		}))
	}
	return l, l.DetachDigest, nil
}

// ProvideClickHouseClient creates a ClickHouse client and makes sure the
// factor database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.FactorDatabase,
	}); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() { _ = client.Close() }, nil
}

// ProvideTables lays out the market and factor tables.
func ProvideTables(cfg *config.Config) internalrepo.Tables {
	return internalrepo.DefaultTables(cfg.ClickHouse.Database, cfg.ClickHouse.FactorDatabase)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideStore builds the ClickHouse panel store behind a circuit breaker.
func ProvideStore(ch *pkgch.Client, tables internalrepo.Tables, cfg *config.Config, l *applogger.Logger, m repository.Metrics) *internalrepo.BreakerStore {
	store := internalrepo.NewCHPanelStore(ch, tables)
	store.SetLogger(l)
	store.SetMetrics(m)
	return internalrepo.NewBreakerStore(store, internalrepo.BreakerSettings{
		Name:         "clickhouse",
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		FailureRatio: cfg.Breaker.FailureRatio,
		MinRequests:  cfg.Breaker.MinRequests,
	}, l)
}

// ProvideICStore creates the IC table on first use.
func ProvideICStore(ch *pkgch.Client, tables internalrepo.Tables, l *applogger.Logger) (repository.ICStore, error) {
	store := internalrepo.NewCHICStore(ch, tables.IC)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideKafkaConsumer creates the evaluation job consumer when jobs run on Kafka.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.JobBackend() != config.JobsKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedis connects to Redis, or returns nil when Redis is disabled.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache layers a small in-process LRU over Redis, or runs memory-only.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if rc != nil {
		// the remote layer is closed by the ProvideRedis cleanup
		return cache.NewLayeredCache(rc, cache.WithLayeredMemory(cfg.Cache.MemoryItems, time.Minute)), func() {}
	}
	mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryItems))
	return mc, func() { _ = mc.Close() }
}

func ProvideCacheLoader(c cache.Service, l *applogger.Logger) *cache.Loader {
	return cache.NewLoader(c, l)
}

// ProvideRedisQueue builds the Redis job queue when jobs run on Redis.
func ProvideRedisQueue(cfg *config.Config, l *applogger.Logger, rc *cache.RedisCache) *queue.RedisQueue {
	if cfg.JobBackend() != config.JobsRedis || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		RetryLimit: cfg.Jobs.RetryLimit,
		RetryDelay: cfg.Jobs.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

// ProvideReportPublisher fans reports out to Kafka and the webhook, whichever
// are configured, behind a redelivery buffer.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger, m repository.Metrics) (repository.ReportPublisher, func()) {
	var sinks internalrepo.FanoutReportPublisher
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaReportPublisher(producer, cfg.Kafka.ReportsTopic))
	}
	if cfg.Reports.WebhookURL != "" {
		opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Reports.Timeout)}
		if cfg.Reports.WebhookToken != "" {
			opts = append(opts, xhttp.WithHeader("Authorization", "Bearer "+cfg.Reports.WebhookToken))
		}
		sinks = append(sinks, internalrepo.NewWebhookReportPublisher(xhttp.NewClient(opts...), cfg.Reports.WebhookURL))
	}

	var sink repository.ReportPublisher
	switch len(sinks) {
	case 0:
		return internalrepo.NopReportPublisher{}, func() {}
	case 1:
		sink = sinks[0]
	default:
		sink = sinks
	}
	p := middleware.NewReportPipeline(sink, m,
		middleware.WithBufferSize(cfg.Reports.BufferSize),
		middleware.WithLogger(l),
	)
	p.Start(context.Background())
	return p, func() { _ = p.Close() }
}

// ProvideJobPublisher selects the job transport. A nil publisher disables
// asynchronous jobs.
func ProvideJobPublisher(cfg *config.Config, producer *pkgkafka.Producer, q *queue.RedisQueue) repository.JobPublisher {
	switch cfg.JobBackend() {
	case config.JobsKafka:
		if producer != nil {
			return internalrepo.NewKafkaJobPublisher(producer, cfg.Kafka.JobsTopic)
		}
	case config.JobsRedis:
		if q != nil {
			return internalrepo.NewQueueJobPublisher(q)
		}
	}
	return nil
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, 10*time.Minute)
}

func ProvideFactorLab(store *internalrepo.BreakerStore, cfg *config.Config, l *applogger.Logger, m repository.Metrics) *usecase.FactorLab {
	lab := usecase.NewFactorLab(store, store, usecase.FactorLabConfig{
		Horizon:      cfg.Evaluator.Horizon,
		Quantiles:    cfg.Evaluator.Quantiles,
		LookbackDays: cfg.Evaluator.LookbackDays,
		TopN:         cfg.Evaluator.TopN,
		AlphaPrefix:  cfg.Evaluator.AlphaPrefix,
		AlphaCount:   cfg.Evaluator.AlphaCount,
	})
	lab.SetLogger(l)
	lab.SetMetrics(m)
	return lab
}

func ProvidePatternSearch(store *internalrepo.BreakerStore, cfg *config.Config, l *applogger.Logger, m repository.Metrics) *usecase.PatternSearch {
	ps := usecase.NewPatternSearch(store, usecase.PatternSearchConfig{
		Indicators: cfg.Similarity.Indicators,
		TopN:       cfg.Similarity.TopN,
		DaysBefore: cfg.Similarity.DaysBefore,
		DaysAfter:  cfg.Similarity.DaysAfter,
	})
	ps.SetLogger(l)
	ps.SetMetrics(m)
	return ps
}

func ProvideJobSubmitter(lab *usecase.FactorLab, pub repository.JobPublisher) *usecase.JobSubmitter {
	return usecase.NewJobSubmitter(lab, pub)
}

func ProvideEvaluationJobHandler(cfg *config.Config, lab *usecase.FactorLab, ics repository.ICStore, reports repository.ReportPublisher, l *applogger.Logger, m repository.Metrics) *usecase.EvaluationJobHandler {
	h := usecase.NewEvaluationJobHandler(cfg.Kafka.JobsTopic, lab, ics, reports)
	h.SetLogger(l)
	h.SetMetrics(m)
	return h
}

func ProvideDailyScanJob(cfg *config.Config, lab *usecase.FactorLab, ics repository.ICStore, reports repository.ReportPublisher, c cache.Service, l *applogger.Logger) *usecase.DailyScanJob {
	j := usecase.NewDailyScanJob(lab, ics, reports, c, cfg.Cache.LockTTL)
	j.SetLogger(l)
	return j
}

// ProvideScheduler registers the daily scan and the rate-limiter sweep.
func ProvideScheduler(cfg *config.Config, l *applogger.Logger, scan *usecase.DailyScanJob, rl *ratelimit.Limiter) (*scheduler.Scheduler, error) {
	s := scheduler.New(l, cfg.Cache.LockTTL)
	if cfg.Evaluator.ScanEnabled {
		if err := s.Add(cfg.Evaluator.Schedule, scan); err != nil {
			return nil, err
		}
	}
	sweep := scheduler.Func("ratelimit_sweep", func(context.Context) error {
		if n := rl.Sweep(); n > 0 {
			l.Debug("rate limiter swept", applogger.Int("dropped", n))
		}
		return nil
	})
	if err := s.Add("0 */5 * * * *", sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func ProvideCacheTTL(cfg *config.Config) api.CacheTTL {
	return api.CacheTTL{
		Catalog: cfg.Cache.CatalogTTL,
		Scan:    cfg.Cache.ScanTTL,
		Analyze: cfg.Cache.AnalyzeTTL,
		Similar: cfg.Cache.SimilarTTL,
	}
}

func ProvideFactorHandler(lab *usecase.FactorLab, jobs *usecase.JobSubmitter, loader *cache.Loader, rl *ratelimit.Limiter, ttl api.CacheTTL, l *applogger.Logger) *api.FactorHandler {
	return api.NewFactorHandler(lab, jobs, loader, rl, ttl, l)
}

func ProvidePatternHandler(search *usecase.PatternSearch, loader *cache.Loader, rl *ratelimit.Limiter, ttl api.CacheTTL, l *applogger.Logger) *api.PatternHandler {
	return api.NewPatternHandler(search, loader, rl, ttl, l)
}

// ProvideHealthHandler probes ClickHouse, the storage breaker and Redis.
func ProvideHealthHandler(ch *pkgch.Client, store *internalrepo.BreakerStore, rc *cache.RedisCache, sched *scheduler.Scheduler) *api.HealthHandler {
	checks := map[string]api.HealthCheck{
		"clickhouse": ch.Health,
		"breaker": func(context.Context) error {
			if st := store.State(); st == gobreaker.StateOpen {
				return fmt.Errorf("storage breaker %s", st)
			}
			return nil
		},
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}
	}
	return api.NewHealthHandler(checks, sched)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, factor *api.FactorHandler, pattern *api.PatternHandler, health *api.HealthHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{factor, pattern, health},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(cfg.Server.CORS.Enabled),
		xhttp.WithCORSOrigins(cfg.Server.CORS.AllowOrigins, cfg.Server.CORS.MaxAge),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	jobs *usecase.EvaluationJobHandler,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
) *server.App {
	var opts []server.Option
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer))
	}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
	}
	return server.New(cfg, l, httpServer, sched, jobs, opts...)
}

// CLI bundles the use cases run by one-shot commands.
type CLI struct {
	Lab    *usecase.FactorLab
	Search *usecase.PatternSearch
	L      *applogger.Logger
}

// ProvideCLILogger logs to stderr so command output on stdout stays parseable.
func ProvideCLILogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
}
